package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linyuhan/shophub-backend/api/controllers"
	"github.com/linyuhan/shophub-backend/api/middleware"
	"github.com/linyuhan/shophub-backend/internal/cart"
	"github.com/linyuhan/shophub-backend/internal/orders"
	"github.com/linyuhan/shophub-backend/internal/products"
	"github.com/linyuhan/shophub-backend/internal/users"
	"github.com/linyuhan/shophub-backend/pkg/config"
	"github.com/linyuhan/shophub-backend/pkg/logger"
	pkgredis "github.com/linyuhan/shophub-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *pkgredis.Client,
	gatherer prometheus.Gatherer,
	usersService users.Service,
	productsService products.Service,
	cartService cart.Service,
	ordersService orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.Register(usersService, logg))
		r.Post("/login", controllers.Login(usersService, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(productsService, logg))
		r.Get("/{productId}", controllers.GetProduct(productsService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, cfg.Order.IdempotencyTTL, logg))

		r.Route("/seller/products", func(r chi.Router) {
			r.Get("/", controllers.ListMyProducts(productsService, logg))
			r.Post("/", controllers.CreateProduct(productsService, logg))
			r.Patch("/{productId}", controllers.UpdateProduct(productsService, logg))
			r.Delete("/{productId}", controllers.DeleteProduct(productsService, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(cartService, logg))
			r.Post("/items", controllers.AddCartItem(cartService, logg))
			r.Patch("/items/{itemId}", controllers.UpdateCartItem(cartService, logg))
			r.Delete("/items/{itemId}", controllers.RemoveCartItem(cartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(ordersService, logg))
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Get("/{orderId}", controllers.GetOrder(ordersService, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(ordersService, logg))
		})
	})

	return r
}
