package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/restaurant/internal/config"
	"github.com/kiwari-pos/restaurant/internal/database"
	"github.com/kiwari-pos/restaurant/internal/enum"
	"github.com/kiwari-pos/restaurant/internal/handler"
	"github.com/kiwari-pos/restaurant/internal/metrics"
	mw "github.com/kiwari-pos/restaurant/internal/middleware"
	"github.com/kiwari-pos/restaurant/internal/service"
	"github.com/kiwari-pos/restaurant/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, outlet scoping, and role-based middleware as needed.
// splits is owned by the caller, which also runs its expiry loop.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, splits *service.SplitService) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger(slog.Default()))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Instrument)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`)) //nolint:errcheck
	})
	r.Method("GET", "/metrics", metrics.Handler())

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/outlets/{oid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	orderService := service.NewOrderService(pool, service.QueriesStore, hub)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Outlet-scoped routes
		r.Route("/outlets/{oid}", func(r chi.Router) {
			r.Use(mw.RequireOutlet)

			// Floor plan is readable by every role, kitchen included.
			floorHandler := handler.NewFloorHandler(queries)
			r.Route("/floors", floorHandler.RegisterRoutes)

			// Front of house
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager, enum.UserRoleCashier))

				orderHandler := handler.NewOrderHandler(orderService)
				splitHandler := handler.NewSplitHandler(splits)
				r.Route("/orders", func(r chi.Router) {
					orderHandler.RegisterRoutes(r)
					splitHandler.RegisterOrderRoutes(r)
				})
				r.Route("/split-sessions", splitHandler.RegisterRoutes)
			})
		})
	})

	slog.Info("router initialized")
	return r
}
