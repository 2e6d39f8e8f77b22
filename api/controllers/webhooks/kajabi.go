package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"gorm.io/datatypes"

	"github.com/awesometech/webinar-backoffice/api/validators"
	kajabiwebhook "github.com/awesometech/webinar-backoffice/internal/webhooks/kajabi"
	"github.com/awesometech/webinar-backoffice/pkg/db/models"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
	"github.com/awesometech/webinar-backoffice/pkg/metrics"
)

const webhookSource = "kajabi"

// replayWindow bounds how long a payload fingerprint suppresses duplicate
// warnings. Replays are logged, never rejected: the platform retries on
// timeouts and a retry must still be answered.
const replayWindow = 10 * time.Minute

type KajabiWebhookService interface {
	Process(ctx context.Context, in kajabiwebhook.Inbound) kajabiwebhook.Outcome
}

type WebhookLogWriter interface {
	Create(ctx context.Context, log *models.WebhookLog) error
}

type ReplayGuard interface {
	CheckAndMark(ctx context.Context, scope, fingerprint string, window time.Duration) (bool, error)
}

// KajabiWebhook is the registration intake endpoint. Every inbound call,
// whatever its method or outcome, produces exactly one webhook log row.
func KajabiWebhook(svc KajabiWebhookService, logs WebhookLogWriter, guard ReplayGuard, webhookMetrics *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		// Health probes and platform verification send GET/HEAD; answer
		// plainly so the endpoint never looks broken to them.
		if r.Method != http.MethodPost {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, "OK")

			writeLog(ctx, logs, logg, r, "", http.StatusOK, "OK", true, "", start)
			webhookMetrics.ObserveDuration(webhookSource, time.Since(start))
			webhookMetrics.IncOutcome(webhookSource, "passthrough")
			return
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			raw = nil
		}
		body := string(raw)

		data := decodeBody(raw)

		if guard != nil && len(raw) > 0 {
			sum := sha256.Sum256(raw)
			seen, guardErr := guard.CheckAndMark(ctx, webhookSource, hex.EncodeToString(sum[:]), replayWindow)
			if guardErr != nil {
				logg.Error(ctx, "webhook replay check failed", guardErr)
			} else if seen {
				logg.Warn(ctx, "duplicate webhook payload received")
			}
		}

		if _, inBody := data["webinar_date_id"]; inBody || r.URL.Query().Get("webinar_date_id") != "" {
			reg := validators.DirectRegistrationFrom(data, r.URL.Query())
			if err := validators.CheckStruct(reg); err != nil {
				message := "Missing required fields: webinar_date_id, first_name, email"
				responseBody, _ := json.Marshal(kajabiwebhook.Response{Status: "error", Message: message})
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write(responseBody)

				writeLog(ctx, logs, logg, r, body, http.StatusBadRequest, string(responseBody), false, message, start)
				webhookMetrics.ObserveDuration(webhookSource, time.Since(start))
				webhookMetrics.IncOutcome(webhookSource, "error")
				return
			}
		}

		outcome := svc.Process(ctx, kajabiwebhook.Inbound{
			Data:    data,
			Query:   r.URL.Query(),
			RawBody: body,
		})

		responseBody, err := json.Marshal(outcome.Response)
		if err != nil {
			logg.Error(ctx, "encode webhook response", err)
			responseBody = []byte(`{"status":"error","message":"internal error"}`)
			outcome.StatusCode = http.StatusInternalServerError
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(outcome.StatusCode)
		w.Write(responseBody)

		writeLog(ctx, logs, logg, r, body, outcome.StatusCode, string(responseBody), outcome.Success, outcome.ErrorMessage, start)
		webhookMetrics.ObserveDuration(webhookSource, time.Since(start))
		if outcome.Success {
			webhookMetrics.IncOutcome(webhookSource, "success")
		} else {
			webhookMetrics.IncOutcome(webhookSource, "error")
		}
	}
}

// decodeBody parses the payload as JSON, falling back to form encoding the
// way the upstream platform sometimes delivers it.
func decodeBody(raw []byte) map[string]any {
	data := map[string]any{}
	if len(raw) == 0 {
		return data
	}
	if err := json.Unmarshal(raw, &data); err == nil {
		return data
	}

	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return map[string]any{}
	}
	parsed := make(map[string]any, len(values))
	for key := range values {
		parsed[key] = values.Get(key)
	}
	return parsed
}

// writeLog records the call. A failed write never alters the response the
// caller already received.
func writeLog(ctx context.Context, logs WebhookLogWriter, logg *logger.Logger, r *http.Request, body string, status int, responseBody string, success bool, errorMessage string, start time.Time) {
	if logs == nil {
		return
	}

	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	headerJSON, err := json.Marshal(headers)
	if err != nil {
		headerJSON = []byte("{}")
	}

	elapsed := time.Since(start).Milliseconds()
	entry := &models.WebhookLog{
		Method:           r.Method,
		Path:             r.URL.Path,
		Headers:          datatypes.JSON(headerJSON),
		Body:             body,
		ResponseStatus:   status,
		ResponseBody:     responseBody,
		Success:          success,
		ErrorMessage:     errorMessage,
		ProcessingTimeMS: &elapsed,
	}
	if err := logs.Create(ctx, entry); err != nil {
		logg.Error(ctx, "persist webhook log", err)
	}
}
