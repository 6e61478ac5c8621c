package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Order        OrderConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPHUB_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SHOPHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPHUB_DB_DSN"`
	Driver string `envconfig:"SHOPHUB_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SHOPHUB_DB_HOST"`
	Port     int    `envconfig:"SHOPHUB_DB_PORT" default:"5432"`
	User     string `envconfig:"SHOPHUB_DB_USER"`
	Password string `envconfig:"SHOPHUB_DB_PASSWORD"`
	Name     string `envconfig:"SHOPHUB_DB_NAME"`
	SSLMode  string `envconfig:"SHOPHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPHUB_REDIS_URL"`
	Address      string        `envconfig:"SHOPHUB_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPHUB_JWT_ISSUER" default:"shophub"`
	ExpirationMinutes int    `envconfig:"SHOPHUB_JWT_EXPIRATION_MINUTES" default:"1440"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHOPHUB_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHOPHUB_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHOPHUB_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHOPHUB_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHOPHUB_ARGON_KEY_LEN" default:"32"`
}

type OrderConfig struct {
	// NumberRetries bounds how many times checkout regenerates the order
	// number after a uniqueness violation before giving up.
	NumberRetries  int           `envconfig:"SHOPHUB_ORDER_NUMBER_RETRIES" default:"3"`
	IdempotencyTTL time.Duration `envconfig:"SHOPHUB_ORDER_IDEMPOTENCY_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPHUB_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	fallbackValues := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range fallbackDBEnvVars {
		if fallbackValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
