package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hugh/chefenplace/internal/api"
	"github.com/hugh/chefenplace/internal/api/middleware"
	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/database"
	"github.com/hugh/chefenplace/internal/guard"
	"github.com/hugh/chefenplace/internal/metrics"
	"github.com/hugh/chefenplace/internal/tasks"
	"github.com/hugh/chefenplace/internal/tenant"
	"github.com/hugh/chefenplace/pkg/config"
	"github.com/hugh/chefenplace/pkg/crypto"
	"github.com/hugh/chefenplace/pkg/queue"
	"github.com/hugh/chefenplace/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting Chef en Place server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Redis backs the task queue and, optionally, the login attempt store.
	var redisClient *redis.Client
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis", "error", err)
		_ = client.Close()
	} else {
		redisClient = client
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - billing references will be unreadable after restart")
	}

	collector := metrics.New()

	var attempts guard.Store
	switch {
	case cfg.Security.AttemptStore == "redis" && redisClient != nil:
		attempts = guard.NewRedisStore(redisClient, "chefenplace:login", cfg.Security.AttemptWindow())
	default:
		if cfg.Security.AttemptStore == "redis" {
			logger.Warn("redis attempt store requested but Redis is unavailable, counting attempts in memory")
		}
		mem := guard.NewMemoryStore(cfg.Security.AttemptWindow(), time.Minute)
		defer mem.Close()
		attempts = mem
	}

	loginGuard := guard.New(guard.Config{
		MaxFailures: cfg.Security.MaxFailedAttempts,
		Window:      cfg.Security.AttemptWindow(),
	}, attempts, guard.MultiSink{guard.NewLogSink(logger), guard.NewDBSink(db, logger)}, collector, logger)

	tenants := tenant.NewRegistry(db, encryptor, logger)

	// Mail goes through the queue; without Redis it is rendered inline.
	var notifier auth.Notifier = tasks.NewInlineNotifier(
		tasks.NewHandler(tenants, tasks.NewLogMailer(logger), cfg.App.FrontendURL, logger))
	if redisClient != nil {
		asynqClient := queue.NewClient(&cfg.Redis)
		defer asynqClient.Close()
		notifier = tasks.NewEnqueuer(asynqClient, logger)
	}

	users := auth.NewUserStore(db, auth.NewHasher(cfg.Security.BcryptCost, cfg.Security.HashTimeout()))

	engine := auth.NewEngine(auth.Options{
		DB:             db,
		Users:          users,
		Tenants:        tenants,
		Tokens:         auth.NewJWTService(auth.TokenConfigFrom(cfg.JWT)),
		Guard:          loginGuard,
		Metrics:        collector,
		Notifier:       notifier,
		Logger:         logger,
		FrontendURL:    cfg.App.FrontendURL,
		ResetTokenTTL:  cfg.Security.ResetTokenTTL(),
		VerifyTokenTTL: cfg.Security.VerifyTokenTTL(),
	})

	proxies, err := middleware.NewProxyTrust(cfg.Security.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}

	routerCfg := api.RouterConfig{
		DB:             db,
		Logger:         logger,
		Engine:         engine,
		Tenants:        tenants,
		Metrics:        collector,
		Development:    cfg.Server.IsDevelopment(),
		AllowedOrigins: cfg.App.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		TrustedProxies: proxies,
	}
	if redisClient != nil {
		routerCfg.Redis = redisClient
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
