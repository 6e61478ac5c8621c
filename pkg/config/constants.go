package config

const (
	// EnvPrefix scopes every envconfig lookup.
	EnvPrefix = "SHOPHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SHOPHUB_DB_DSN"
	EnvDBHost = "SHOPHUB_DB_HOST"
	EnvDBUser = "SHOPHUB_DB_USER"
	EnvDBName = "SHOPHUB_DB_NAME"
)

var fallbackDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
