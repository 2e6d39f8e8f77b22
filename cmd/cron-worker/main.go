package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/awesometech/webinar-backoffice/internal/activation"
	"github.com/awesometech/webinar-backoffice/internal/attendees"
	"github.com/awesometech/webinar-backoffice/internal/cron"
	"github.com/awesometech/webinar-backoffice/internal/crm"
	"github.com/awesometech/webinar-backoffice/internal/occurrences"
	"github.com/awesometech/webinar-backoffice/pkg/config"
	"github.com/awesometech/webinar-backoffice/pkg/db"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
	"github.com/awesometech/webinar-backoffice/pkg/metrics"
	"github.com/awesometech/webinar-backoffice/pkg/migrate"
	"github.com/awesometech/webinar-backoffice/pkg/redis"
)

const lockKeyFormat = "wb:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 2*cfg.Cron.Interval)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	attendeeRepo := attendees.NewRepository(dbClient.DB())
	occurrenceRepo := occurrences.NewRepository(dbClient.DB())

	activationClient, err := activation.NewClient(cfg.Activation, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create activation client", err)
		os.Exit(1)
	}

	activationJob, err := cron.NewActivationJob(cron.ActivationJobParams{
		Logger:      logg,
		Attendees:   attendeeRepo,
		Occurrences: occurrenceRepo,
		Activation:  activationClient,
		BatchLimit:  cfg.Cron.ActivationBatchLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create activation job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(activationJob)

	if cfg.CRM.BaseURL != "" && cfg.CRM.TokenURL != "" {
		crmClient, err := crm.NewClient(cfg.CRM, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create crm client", err)
			os.Exit(1)
		}
		crmSyncJob, err := cron.NewCRMSyncJob(cron.CRMSyncJobParams{
			Logger:     logg,
			Attendees:  attendeeRepo,
			CRM:        crmClient,
			BatchLimit: cfg.Cron.SyncBatchLimit,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create crm sync job", err)
			os.Exit(1)
		}
		registry.Register(crmSyncJob)
	} else {
		logg.Warn(context.Background(), "crm not configured, skipping crm-sync job")
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
