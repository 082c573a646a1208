// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelamos/consultancy-api/internal/admin"
	"github.com/angelamos/consultancy-api/internal/auth"
	"github.com/angelamos/consultancy-api/internal/config"
	"github.com/angelamos/consultancy-api/internal/core"
	"github.com/angelamos/consultancy-api/internal/feedback"
	"github.com/angelamos/consultancy-api/internal/health"
	"github.com/angelamos/consultancy-api/internal/identity"
	"github.com/angelamos/consultancy-api/internal/instructor"
	"github.com/angelamos/consultancy-api/internal/jobs"
	"github.com/angelamos/consultancy-api/internal/mail"
	"github.com/angelamos/consultancy-api/internal/middleware"
	"github.com/angelamos/consultancy-api/internal/migrations"
	"github.com/angelamos/consultancy-api/internal/registration"
	"github.com/angelamos/consultancy-api/internal/server"
	"github.com/angelamos/consultancy-api/internal/storage"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	generateKeys := flag.Bool(
		"generate-keys",
		false,
		"write a new ES256 key pair to the configured paths and exit",
	)
	flag.Parse()

	if *generateKeys {
		if err := writeKeys(*configPath); err != nil {
			slog.Error("key generation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func writeKeys(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := auth.GenerateKeyPair(
		cfg.JWT.PrivateKeyPath,
		cfg.JWT.PublicKeyPath,
	); err != nil {
		return err
	}

	slog.Info("key pair written",
		"private", cfg.JWT.PrivateKeyPath,
		"public", cfg.JWT.PublicKeyPath,
	)
	return nil
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(ctx, db.DB, logger); err != nil {
			return err
		}
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	store, err := storage.NewStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	logger.Info("document storage ready", "type", cfg.Storage.Type)

	mailer := mail.New(cfg.Mail, cfg.App.Name, logger)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	identityRepo := identity.NewRepository(db.DB)
	identitySvc := identity.NewService(identityRepo)
	identityHandler := identity.NewHandler(identitySvc)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(
		authRepo,
		jwtManager,
		identitySvc,
		mailer,
		redis.Client,
		auth.ServiceConfig{
			PublicURL:      cfg.App.PublicURL,
			TokenTTL:       cfg.Verification.TokenTTL,
			ResendCooldown: cfg.Verification.ResendCooldown,
		},
		logger,
	)
	authHandler := auth.NewHandler(authSvc, jwtManager, auth.HandlerConfig{
		SecureCookies:     cfg.IsProduction(),
		VerifyRedirectURL: cfg.App.VerifyRedirectURL,
	})

	instructorRepo := instructor.NewRepository(db.DB)

	registrationRepo := registration.NewRepository(db.DB)
	registrationSvc := registration.NewService(
		registrationRepo,
		instructorRepo,
		store,
		registration.NewCatalog(cfg.Catalog),
		logger,
	)
	registrationHandler := registration.NewHandler(
		registrationSvc,
		cfg.Server.MaxUploadBytes,
	)

	instructorSvc := instructor.NewService(
		instructorRepo,
		registrationSvc,
		store,
		logger,
	)
	instructorHandler := instructor.NewHandler(
		instructorSvc,
		cfg.Server.MaxUploadBytes,
	)

	feedbackRepo := feedback.NewRepository(db.DB)
	feedbackSvc := feedback.NewService(feedbackRepo)
	feedbackHandler := feedback.NewHandler(feedbackSvc)

	scheduler := jobs.NewScheduler(cfg.Jobs, authSvc, redis, logger)
	if err := scheduler.Start(); err != nil {
		return err
	}

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: db},
		health.Check{Name: "redis", Checker: redis},
		health.Check{Name: "storage", Checker: store},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Registrations: registrationSvc,
		Instructors:   instructorSvc,
		Identities:    identitySvc,
		DBStats:       db.Stats,
		RedisStats:    redis.PoolStats,
		DBPing:        db.Ping,
		RedisPing:     redis.Ping,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recoverer(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerWindow(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(jwtManager)
	optionalAuth := middleware.OptionalAuth(jwtManager)
	authLimiter := middleware.NewRateLimiter(
		redis.Client,
		middleware.RateLimitConfig{
			Scope: "auth",
			Limit: middleware.PerMinute(
				cfg.RateLimit.AuthRequests,
				cfg.RateLimit.AuthBurst,
			),
			KeyFunc:  middleware.KeyByIPAndEndpoint,
			FailOpen: true,
		},
	)

	writeLimiter := middleware.NewRateLimiter(
		redis.Client,
		middleware.RateLimitConfig{
			Scope: "writes",
			Limit: middleware.PerMinute(
				cfg.RateLimit.WriteRequests,
				cfg.RateLimit.WriteBurst,
			),
			KeyFunc:    middleware.KeyByIdentity,
			FailOpen:   true,
			WritesOnly: true,
		},
	)
	member := func(next http.Handler) http.Handler {
		return authenticator(writeLimiter.Handler(next))
	}

	router.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Handler)
			authHandler.RegisterRoutes(r, authenticator, optionalAuth)
		})

		identityHandler.RegisterRoutes(r, authenticator)
		registrationHandler.RegisterRoutes(r, member)
		instructorHandler.RegisterRoutes(r, member)
		feedbackHandler.RegisterRoutes(r, optionalAuth)

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticator)
			r.Use(middleware.RequireAdmin)

			identityHandler.RegisterAdminRoutes(r)
			registrationHandler.RegisterAdminRoutes(r)
			instructorHandler.RegisterAdminRoutes(r)
			feedbackHandler.RegisterAdminRoutes(r)
			adminHandler.RegisterRoutes(r)
		})
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	scheduler.Stop(shutdownCtx)

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
