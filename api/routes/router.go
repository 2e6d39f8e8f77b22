package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/awesometech/webinar-backoffice/api/controllers"
	webhookcontrollers "github.com/awesometech/webinar-backoffice/api/controllers/webhooks"
	"github.com/awesometech/webinar-backoffice/api/middleware"
	"github.com/awesometech/webinar-backoffice/pkg/config"
	"github.com/awesometech/webinar-backoffice/pkg/db"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
	"github.com/awesometech/webinar-backoffice/pkg/metrics"
	"github.com/awesometech/webinar-backoffice/pkg/redis"
)

type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DBPinger       db.Pinger
	RedisPinger    redis.Pinger
	WebhookService webhookcontrollers.KajabiWebhookService
	WebhookLogs    webhookcontrollers.WebhookLogWriter
	ReplayGuard    webhookcontrollers.ReplayGuard
	WebhookMetrics *metrics.WebhookMetrics
	Gatherer       prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DBPinger, params.RedisPinger))
	})

	// The platform probes this endpoint with GET before saving the webhook
	// configuration, so every method routes to the same handler.
	webhook := webhookcontrollers.KajabiWebhook(
		params.WebhookService,
		params.WebhookLogs,
		params.ReplayGuard,
		params.WebhookMetrics,
		logg,
	)
	r.HandleFunc("/webhooks/kajabi", webhook)
	r.HandleFunc("/webhooks/kajabi/", webhook)

	if params.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
