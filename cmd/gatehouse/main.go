package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gatehouselabs/gatehouse/pkg/api"
	"github.com/gatehouselabs/gatehouse/pkg/authz"
	"github.com/gatehouselabs/gatehouse/pkg/config"
	"github.com/gatehouselabs/gatehouse/pkg/credentials"
	"github.com/gatehouselabs/gatehouse/pkg/members"
	"github.com/gatehouselabs/gatehouse/pkg/middleware"
	"github.com/gatehouselabs/gatehouse/pkg/observability"
	"github.com/gatehouselabs/gatehouse/pkg/permissions"
	"github.com/gatehouselabs/gatehouse/pkg/schema"
	"github.com/gatehouselabs/gatehouse/pkg/session"
	"github.com/gatehouselabs/gatehouse/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	promRegistry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(promRegistry)
	}

	// Database
	connCfg := postgres.DefaultConnectionConfig(cfg.Database.URL)
	connCfg.MaxConns = cfg.Database.MaxConns
	connCfg.MinConns = cfg.Database.MinConns
	connCfg.Timeout = cfg.Database.Timeout
	db, err := postgres.Connect(connCfg)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to PostgreSQL")
		os.Exit(1)
	}
	logger.Info("Connected to PostgreSQL")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), cfg.Database.Timeout)
	if err := members.RunMigrations(migrateCtx, db); err != nil {
		logger.WithError(err).Error("Member migrations failed")
		os.Exit(1)
	}
	if err := permissions.RunMigrations(migrateCtx, db); err != nil {
		logger.WithError(err).Error("Permission migrations failed")
		os.Exit(1)
	}
	cancelMigrate()

	poolCtx, cancelPool := context.WithCancel(context.Background())
	defer cancelPool()
	if metrics != nil {
		postgres.StartPoolStatsRoutine(poolCtx, db, metrics, 0)
	}

	// Redis, used only by the sign-in rate limiter. Optional: without it
	// sign-in runs unthrottled.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.WithError(err).Error("Invalid Redis URL")
			os.Exit(1)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		opts.DB = cfg.Redis.DB
		opts.PoolSize = cfg.Redis.PoolSize
		redisClient = redis.NewClient(opts)
		logger.Info("Sign-in rate limiting enabled")
	} else {
		logger.Warn("No Redis configured, sign-in rate limiting disabled")
	}

	// Storage schema and its views
	schemaRegistry := schema.NewRegistry()
	if err := schema.RegisterDefaults(schemaRegistry); err != nil {
		logger.WithError(err).Error("Schema registration failed")
		os.Exit(1)
	}
	schemaRegistry.Freeze()

	// Permission registry
	permRegistry := permissions.NewRegistry()
	if err := api.RegisterBootPermissions(permRegistry); err != nil {
		logger.WithError(err).Error("Permission registration failed")
		os.Exit(1)
	}
	permRegistry.Freeze()

	issuer, err := credentials.NewIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.WithError(err).Error("Token issuer setup failed")
		os.Exit(1)
	}

	permStore := permissions.NewPostgresStore(db)
	dispatcher := authz.NewDispatcher(permRegistry, permStore, cfg.Auth.SignInURL,
		authz.WithLogger(logger), authz.WithMetrics(metrics))

	limiter := middleware.NewSignInRateLimiter(redisClient, &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Auth.SignInRateLimit,
		WindowDuration:    cfg.Auth.SignInRateWindow,
	}, metrics)

	server, err := api.NewServer(api.ServerDeps{
		Members:       members.NewManager(db, schemaRegistry),
		Issuer:        issuer,
		PermStore:     permStore,
		Dispatcher:    dispatcher,
		Materializer:  session.NewMaterializer(issuer),
		SignInLimiter: limiter,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		logger.WithError(err).Error("Server setup failed")
		os.Exit(1)
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probes and metrics on their own port
	healthChecker := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.MetricsHandler(promRegistry))
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	go func() {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.Infof("Gatehouse listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	sm := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return db.Close()
	})
	if redisClient != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}
