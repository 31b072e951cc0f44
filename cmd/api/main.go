package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/passpolicy/config"
	"github.com/jwalitptl/passpolicy/internal/handler/health"
	"github.com/jwalitptl/passpolicy/internal/handler/hooks"
	"github.com/jwalitptl/passpolicy/internal/handler/prometheus"
	settingsHandler "github.com/jwalitptl/passpolicy/internal/handler/settings"
	"github.com/jwalitptl/passpolicy/internal/middleware"
	"github.com/jwalitptl/passpolicy/internal/repository/postgres"
	"github.com/jwalitptl/passpolicy/internal/router"
	"github.com/jwalitptl/passpolicy/internal/service/lifecycle"
	"github.com/jwalitptl/passpolicy/internal/service/password"
	settingsService "github.com/jwalitptl/passpolicy/internal/service/settings"
	"github.com/jwalitptl/passpolicy/pkg/auth"
	"github.com/jwalitptl/passpolicy/pkg/event"
	"github.com/jwalitptl/passpolicy/pkg/logger"
	"github.com/jwalitptl/passpolicy/pkg/messaging/redis"
	"github.com/jwalitptl/passpolicy/pkg/metrics"
	"github.com/jwalitptl/passpolicy/pkg/security"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	}).With("service", "passpolicy-api")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		appLog.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	// Redis carries settings cache invalidations between replicas.
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLog.ZL)
	if err != nil {
		appLog.Fatal(err, "failed to create redis broker")
	}
	defer broker.Close()

	// Metrics
	registry := prom.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New("passpolicy", registry)

	// Repositories and services
	settingsRepo := postgres.NewSettingsRepository(db)
	userRepo := postgres.NewUserRepository(db)
	metaRepo := postgres.NewPasswordMetaRepository(db)

	settingsSvc := settingsService.NewService(settingsRepo, cfg.Reminder.CacheTTL, appLog)
	settingsSvc.PublishChanges(broker, cfg.Reminder.SettingsTopic)
	go func() {
		if err := settingsSvc.Listen(ctx, broker, cfg.Reminder.SettingsTopic); err != nil {
			appLog.Error(err, "settings change listener stopped")
		}
	}()
	hasher := security.NewBcryptHasher(cfg.Reminder.BcryptCost)
	passwordSvc := password.NewService(settingsSvc, userRepo, metaRepo, security.Verifier(hasher), appLog, appMetrics)
	// The worker owns the reminder schedule; the API only seeds settings
	// and never dispatches deactivation.
	lifecycleMgr := lifecycle.NewManager(settingsSvc, nil, appLog)

	// Hook table
	builder := event.NewBuilder()
	passwordSvc.Subscribe(builder)
	lifecycleMgr.Subscribe(builder)
	table := builder.Build()

	activateCtx, cancelActivate := context.WithTimeout(context.Background(), 10*time.Second)
	err = table.Dispatch(activateCtx, &event.Event{Kind: event.KindActivate, OccurredAt: time.Now()})
	cancelActivate()
	if err != nil {
		appLog.Fatal(err, "failed to activate password policy")
	}

	// Handlers and router
	gin.SetMode(gin.ReleaseMode)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)
	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwtSvc),
		settingsHandler.NewHandler(settingsSvc),
		hooks.NewHandler(table),
		health.NewHandler(
			health.Check{Name: "database", Ping: db.PingContext},
			health.Check{Name: "redis", Ping: broker.Ping},
		),
		prometheus.New(registry, appMetrics),
		appLog,
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			HookSecret:       cfg.Hooks.Secret,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLog.ZL.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(err, "server forced to shutdown")
	}
	stop()

	appLog.Info("server exited properly")
}
