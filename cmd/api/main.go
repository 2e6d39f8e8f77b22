package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/awesometech/webinar-backoffice/api/routes"
	"github.com/awesometech/webinar-backoffice/internal/activation"
	"github.com/awesometech/webinar-backoffice/internal/attendees"
	"github.com/awesometech/webinar-backoffice/internal/calendar"
	"github.com/awesometech/webinar-backoffice/internal/conference"
	"github.com/awesometech/webinar-backoffice/internal/dateparse"
	"github.com/awesometech/webinar-backoffice/internal/mailer"
	"github.com/awesometech/webinar-backoffice/internal/occurrences"
	"github.com/awesometech/webinar-backoffice/internal/offerings"
	kajabiwebhook "github.com/awesometech/webinar-backoffice/internal/webhooks/kajabi"
	"github.com/awesometech/webinar-backoffice/internal/webhooklog"
	"github.com/awesometech/webinar-backoffice/pkg/config"
	"github.com/awesometech/webinar-backoffice/pkg/db"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
	"github.com/awesometech/webinar-backoffice/pkg/metrics"
	"github.com/awesometech/webinar-backoffice/pkg/migrate"
	"github.com/awesometech/webinar-backoffice/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	service, err := buildWebhookService(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DBPinger:       dbClient,
			RedisPinger:    redisClient,
			WebhookService: service,
			WebhookLogs:    webhooklog.NewRepository(dbClient.DB()),
			ReplayGuard:    redisClient,
			WebhookMetrics: webhookMetrics,
			Gatherer:       prometheus.DefaultGatherer,
		}),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-stopCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func buildWebhookService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*kajabiwebhook.Service, error) {
	loc, err := time.LoadLocation(cfg.Webhook.Timezone)
	if err != nil {
		logg.Warn(context.Background(), "unknown webhook timezone, falling back to UTC")
		loc = time.UTC
	}

	var calendarClient *calendar.Client
	if cfg.Calendar.BaseURL != "" {
		calendarClient, err = calendar.NewClient(cfg.Calendar, logg)
		if err != nil {
			return nil, err
		}
	}

	occurrenceRepo := occurrences.NewRepository(dbClient.DB())
	resolverParams := occurrences.ResolverParams{
		Repo:       occurrenceRepo,
		Logger:     logg,
		AutoCreate: cfg.Webhook.AutoCreateDates,
	}
	if calendarClient != nil {
		resolverParams.Calendar = calendarClient
	}
	resolver, err := occurrences.NewResolver(resolverParams)
	if err != nil {
		return nil, err
	}

	attendeeRepo := attendees.NewRepository(dbClient.DB())
	upserter, err := attendees.NewUpserter(attendeeRepo)
	if err != nil {
		return nil, err
	}

	params := kajabiwebhook.ServiceParams{
		Offerings:         offerings.NewRepository(dbClient.DB()),
		Matcher:           offerings.NewMatcher(logg),
		Resolver:          resolver,
		OccurrenceRepo:    occurrenceRepo,
		Upserter:          upserter,
		AttendeeStore:     attendeeRepo,
		Parser:            dateparse.NewParser(loc),
		Logger:            logg,
		DefaultErrorEmail: cfg.Webhook.DefaultErrorEmail,
	}

	activationClient, err := activation.NewClient(cfg.Activation, logg)
	if err != nil {
		return nil, err
	}
	params.Activation = activationClient

	if cfg.Conference.Configured() {
		conferenceClient, err := conference.NewClient(cfg.Conference, logg)
		if err != nil {
			return nil, err
		}
		params.Conference = conferenceClient
	}

	mailClient, err := mailer.NewClient(cfg.Mail, logg)
	if err != nil {
		return nil, err
	}
	params.Mailer = mailClient

	return kajabiwebhook.NewService(params)
}
