package activation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/awesometech/webinar-backoffice/pkg/config"
	"github.com/awesometech/webinar-backoffice/pkg/enums"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
)

var errLoggerRequired = errors.New("activation logger is required")

// Request is the payload delivered to an offering's activation hook.
type Request struct {
	Email     string               `json:"email"`
	FirstName string               `json:"first_name"`
	LastName  string               `json:"last_name"`
	Type      enums.ActivationType `json:"activation_type"`
	Timestamp string               `json:"timestamp"`
}

// Client delivers course-access activation requests to per-offering hook URLs.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *logger.Logger
	now        func() time.Time
}

func NewClient(cfg config.ActivationConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		userAgent:  cfg.UserAgent,
		logger:     logg,
		now:        time.Now,
	}, nil
}

// Send posts the activation payload to hookURL. The boolean reports whether
// the hook accepted it; message carries the outcome either way so callers can
// persist it verbatim.
func (c *Client) Send(ctx context.Context, hookURL string, email, firstName, lastName string, activationType enums.ActivationType) (bool, string) {
	if strings.TrimSpace(hookURL) == "" {
		return false, "no activation hook configured"
	}

	payload := Request{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Type:      activationType,
		Timestamp: c.now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Sprintf("encoding activation payload: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hookURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Sprintf("building activation request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(ctx, "activation hook request failed", err)
		return false, err.Error()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	logCtx := c.logger.WithFields(ctx, map[string]any{
		"status": resp.StatusCode,
		"type":   activationType.String(),
	})
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		c.logger.Info(logCtx, "activation hook accepted")
		return true, fmt.Sprintf("activation hook returned %d", resp.StatusCode)
	default:
		c.logger.Warn(logCtx, "activation hook rejected")
		return false, fmt.Sprintf("activation hook returned %d", resp.StatusCode)
	}
}
