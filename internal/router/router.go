package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jcr-pos/api/internal/config"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/enum"
	"github.com/jcr-pos/api/internal/gateway"
	"github.com/jcr-pos/api/internal/handler"
	mw "github.com/jcr-pos/api/internal/middleware"
	"github.com/jcr-pos/api/internal/service"
	"github.com/jcr-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Returns the payment watchdog alongside the router so the caller can
// run it on its own context.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) (chi.Router, *service.Watchdog) {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			"https://order.jcreatery.com",
			"https://staff.jcreatery.com",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Services share the pool-backed queries for reads and build
	// transaction-scoped stores through the factories.
	gw := gateway.NewClient(cfg.PayMongoBaseURL, cfg.PayMongoSecretKey)

	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, queries, newOrderStore, gw, hub, cfg.PublicBaseURL)

	newPaymentStore := func(db database.DBTX) service.PaymentStore {
		return database.New(db)
	}
	paymentService := service.NewPaymentService(pool, queries, newPaymentStore, gw, hub)

	inventoryService := service.NewInventoryService(queries, hub)

	watchdog := service.NewWatchdog(queries, orderService, cfg.PaymentTimeout, cfg.WatchdogSweepInterval)
	orderService.SetWatcher(watchdog)
	paymentService.SetWatcher(watchdog)

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	orderHandler := handler.NewOrderHandler(orderService, queries)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	menuHandler := handler.NewMenuHandler(inventoryService, queries)
	inventoryHandler := handler.NewInventoryHandler(inventoryService)

	// Public routes: kiosk ordering, menu browsing, gateway redirects.
	authHandler.RegisterRoutes(r)
	orderHandler.RegisterPublicRoutes(r)
	paymentHandler.RegisterRoutes(r)
	menuHandler.RegisterRoutes(r)

	// WebSocket routes. The staff feed authenticates via query param,
	// the per-table feed is open to the kiosk.
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeOrders(hub, cfg.JWTSecret, w, r)
	})
	r.Get("/ws/tables/{number}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeTable(hub, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		orderHandler.RegisterStaffRoutes(r)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))

			authHandler.RegisterAdminRoutes(r)
			r.Route("/inventory/{catalog}", inventoryHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r, watchdog
}
