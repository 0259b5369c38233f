package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/chefenplace/internal/api/handlers"
	"github.com/hugh/chefenplace/internal/api/middleware"
	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/metrics"
	"github.com/hugh/chefenplace/internal/permission"
	"github.com/hugh/chefenplace/internal/tenant"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          redis.UniversalClient
	Logger         *slog.Logger
	Engine         *auth.Engine
	Tenants        *tenant.Registry
	Metrics        *metrics.Collector
	Development    bool
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	TrustedProxies *middleware.ProxyTrust
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.ClientAddress(cfg.TrustedProxies))
	var observer middleware.ResponseObserver
	if cfg.Metrics != nil {
		observer = cfg.Metrics
	}
	r.Use(middleware.Logging(cfg.Logger, observer))

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	errs := handlers.NewErrors(cfg.Logger, cfg.Development)

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.Engine, errs)
	chefHandler := handlers.NewChefHandler(cfg.Engine, errs)
	teamHandler := handlers.NewTeamHandler(cfg.Engine, errs)
	userHandler := handlers.NewUserHandler(cfg.Engine, errs)
	restaurantHandler := handlers.NewRestaurantHandler(cfg.Engine, cfg.Tenants, errs)
	adminHandler := handlers.NewAdminHandler(cfg.Tenants, errs)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/login-by-name", authHandler.LoginByName)
			r.Post("/team-login", authHandler.TeamLogin)
			r.Post("/login/{organizationId}/{memberId}", authHandler.LoginWithMemberID)
			r.Post("/qr/{orgId}", authHandler.QREntry)
			r.Post("/refresh-token", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		r.Post("/chefs/request-access", chefHandler.RequestAccess)
		r.Post("/chefs/invite/{token}", chefHandler.AcceptInvite)

		r.Post("/restaurants/signup", restaurantHandler.Signup)
		r.Get("/restaurants/verify-email/{token}", restaurantHandler.VerifyEmail)

		r.Get("/users/status/{id}", userHandler.Status)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Engine))

			r.Get("/me", authHandler.Me)
			r.Put("/users/password", userHandler.ChangePassword)

			r.Get("/restaurants/mine", restaurantHandler.Mine)
			r.With(middleware.RequireRole(permission.RoleHeadChef)).
				Put("/restaurants/mine", restaurantHandler.UpdateMine)

			r.Route("/team", func(r chi.Router) {
				r.Use(middleware.RequirePermission(permission.CanManageTeam))

				r.Get("/", teamHandler.List)
				r.Get("/pending", teamHandler.Pending)
				r.Put("/pending/{id}", teamHandler.Decide)
				r.Get("/invite-link", teamHandler.InviteLink)
				r.Get("/login-links", teamHandler.LoginLinks)
				r.Put("/{id}", teamHandler.Update)
				r.Delete("/{id}", teamHandler.Remove)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(permission.RoleSuperAdmin))
				r.Use(middleware.RequirePermission(permission.CanAccessAdmin))

				r.Get("/restaurants", adminHandler.List)
				r.Get("/restaurants/stats", adminHandler.Stats)
				r.Put("/restaurants/{slug}/status", adminHandler.SetStatus)
				r.Put("/restaurants/{slug}/plan", adminHandler.ApplyPlan)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Not found","code":"not_found"}`))
	})

	return &Router{r}
}
