package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/awesometech/webinar-backoffice/pkg/config"
	pkgerrors "github.com/awesometech/webinar-backoffice/pkg/errors"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
)

var errLoggerRequired = errors.New("mailer logger is required")

// Client sends plain-text operational email through the transactional mail
// API. It carries no templating; callers compose the body.
type Client struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	fromEmail  string
	logger     *logger.Logger
}

func NewClient(cfg config.MailConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		fromEmail:  cfg.FromEmail,
		logger:     logg,
	}, nil
}

// Send delivers one message. An unconfigured API URL is an error so callers
// can decide whether missing mail matters to them.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	if strings.TrimSpace(c.apiURL) == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "mail api url not configured")
	}

	payload := map[string]string{
		"from":    c.fromEmail,
		"to":      to,
		"subject": subject,
		"text":    body,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding mail payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(encoded))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building mail request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mail request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("mail api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	logCtx := c.logger.WithFields(ctx, map[string]any{"to": to, "subject": subject})
	c.logger.Info(logCtx, "mail sent")
	return nil
}
