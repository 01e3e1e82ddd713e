package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/linemk/jersey-shop/internal/app/handlers"
	"github.com/linemk/jersey-shop/internal/config"
	"github.com/linemk/jersey-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/jersey-shop/internal/lib/logger/handlers/urllog"
	"github.com/linemk/jersey-shop/internal/service"
)

// Services - зависимости обработчиков
type Services struct {
	Auth    service.AuthServiceInterface
	Orders  service.OrderService
	Catalog service.CatalogService
	DB      handlers.Pinger
}

// NewRouter собирает маршруты API. cfg.JWT.Secret должен быть задан.
func NewRouter(log *slog.Logger, cfg *config.Config, svc Services) http.Handler {
	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTPServer.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: cfg.HTTPServer.CORS.AllowCredentials,
		MaxAge:           cfg.HTTPServer.CORS.MaxAge,
	}))

	userPaging := handlers.Paging{Default: cfg.Orders.DefaultPageSize, Max: cfg.Orders.MaxPageSize}
	adminPaging := handlers.Paging{Default: cfg.Orders.AdminPageSize, Max: cfg.Orders.MaxPageSize}

	router.Get("/health", handlers.HealthHandler(log, svc.DB))

	// эндпоинты для аутентификации
	router.Post("/api/auth/register", handlers.RegisterHandler(log, svc.Auth))
	router.Post("/api/auth/login", handlers.LoginHandler(log, svc.Auth))

	// каталог открыт без токена
	router.Get("/api/products", handlers.ListProductsHandler(log, svc.Catalog, userPaging))
	router.Get("/api/products/{slug}", handlers.GetProductHandler(log, svc.Catalog))
	router.Get("/api/variants/{variantID}", handlers.GetVariantHandler(log, svc.Catalog))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware(cfg.JWT.Secret))

		r.Get("/api/users/profile", handlers.ProfileHandler(log, svc.Auth))

		r.Route("/api/orders", func(r chi.Router) {
			r.Get("/", handlers.ListOrdersHandler(log, svc.Orders, userPaging))
			r.Post("/", handlers.CreateOrderHandler(log, svc.Orders))
			r.Get("/{orderID}", handlers.GetOrderHandler(log, svc.Orders))
			r.Post("/{orderID}/cancel", handlers.CancelOrderHandler(log, svc.Orders))
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(jwtmiddleware.RequireAdmin)
			r.Get("/orders", handlers.AdminListOrdersHandler(log, svc.Orders, adminPaging))
			r.Put("/orders/{orderID}/status", handlers.UpdateOrderStatusHandler(log, svc.Orders))
			r.Post("/products", handlers.CreateProductHandler(log, svc.Catalog))
			r.Post("/products/{productID}/variants", handlers.CreateVariantHandler(log, svc.Catalog))
			r.Delete("/products/{productID}", handlers.DeactivateProductHandler(log, svc.Catalog))
		})
	})

	return router
}
