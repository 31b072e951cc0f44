package main

import (
	"context"
	"errors"
	"flag"
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

	"github.com/jwalitptl/passpolicy/config"
	"github.com/jwalitptl/passpolicy/internal/email"
	"github.com/jwalitptl/passpolicy/internal/handler/health"
	"github.com/jwalitptl/passpolicy/internal/handler/prometheus"
	"github.com/jwalitptl/passpolicy/internal/middleware"
	"github.com/jwalitptl/passpolicy/internal/repository/postgres"
	"github.com/jwalitptl/passpolicy/internal/service/lifecycle"
	"github.com/jwalitptl/passpolicy/internal/service/reminder"
	settingsService "github.com/jwalitptl/passpolicy/internal/service/settings"
	"github.com/jwalitptl/passpolicy/internal/worker"
	"github.com/jwalitptl/passpolicy/pkg/event"
	"github.com/jwalitptl/passpolicy/pkg/logger"
	"github.com/jwalitptl/passpolicy/pkg/messaging/redis"
	"github.com/jwalitptl/passpolicy/pkg/metrics"
)

func main() {
	once := flag.Bool("once", false, "run a single reminder pass and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	}).With("service", "passpolicy-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		appLog.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLog.ZL)
	if err != nil {
		appLog.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	registry := prom.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New("passpolicy", registry)

	settingsSvc := settingsService.NewService(postgres.NewSettingsRepository(db), cfg.Reminder.CacheTTL, appLog)
	metaRepo := postgres.NewPasswordMetaRepository(db)
	mail := email.NewSMTPService(cfg.SMTP, appLog)

	runner := reminder.NewRunner(reminder.EmailSender{Mail: mail}, metaRepo, appLog)
	reminderSvc := reminder.NewService(
		settingsSvc,
		postgres.NewUserRepository(db),
		runner,
		broker,
		broker,
		reminder.Config{LockTTL: cfg.Reminder.LockTTL, Topic: cfg.Reminder.EventsTopic},
		appLog,
		appMetrics,
	)

	if *once {
		summary, err := reminderSvc.RunOnce(ctx, time.Now())
		if err != nil && !errors.Is(err, reminder.ErrPassAlreadyRunning) {
			appLog.Fatal(err, "Reminder pass failed")
		}
		appLog.ZL.Info().Int("evaluated", summary.Evaluated).Int("sent", summary.Sent).Int("failed", summary.Failed).Msg("Single pass done")
		return
	}

	// The scheduler dispatches through the table it is itself registered on.
	var table *event.Table
	scheduler := worker.NewReminderScheduler(
		worker.DispatchFunc(func(ctx context.Context, evt *event.Event) error {
			return table.Dispatch(ctx, evt)
		}),
		worker.ReminderSchedulerConfig{Interval: cfg.Reminder.Interval, RunOnStart: cfg.Reminder.RunOnStart},
		appLog,
	)

	go func() {
		if err := settingsSvc.Listen(ctx, broker, cfg.Reminder.SettingsTopic); err != nil {
			appLog.Error(err, "Settings change listener stopped")
		}
	}()

	builder := event.NewBuilder()
	reminderSvc.Subscribe(builder)
	lifecycle.NewManager(settingsSvc, scheduler, appLog).Subscribe(builder)
	table = builder.Build()

	healthSrv := startHealthServer(cfg.Reminder.HealthPort, registry, appMetrics, appLog,
		health.Check{Name: "database", Ping: db.PingContext},
		health.Check{Name: "redis", Ping: broker.Ping},
	)

	if err := table.Dispatch(ctx, &event.Event{Kind: event.KindActivate, OccurredAt: time.Now()}); err != nil {
		appLog.Fatal(err, "Failed to activate reminder schedule")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := table.Dispatch(shutdownCtx, &event.Event{Kind: event.KindDeactivate, OccurredAt: time.Now()}); err != nil {
		appLog.Error(err, "Deactivation failed")
	}
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(err, "Health server shutdown failed")
	}
	cancel()
}

func startHealthServer(port int, registry *prom.Registry, m *metrics.Metrics, appLog *logger.Logger, checks ...health.Check) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery(appLog))
	health.NewHandler(checks...).RegisterRoutes(engine)
	prometheus.New(registry, m).RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}
