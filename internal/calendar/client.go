package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/awesometech/webinar-backoffice/pkg/config"
	pkgerrors "github.com/awesometech/webinar-backoffice/pkg/errors"
	"github.com/awesometech/webinar-backoffice/pkg/db/models"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
)

var errLoggerRequired = errors.New("calendar logger is required")

const (
	tokenSkew = time.Minute

	// webinarDuration is the calendar block reserved for a live session.
	webinarDuration = time.Hour
)

// Client creates calendar events on the operations calendar so staff see
// occurrences the moment a registration materializes them.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	tokenURL       string
	clientID       string
	clientSecret   string
	organizerEmail string
	logger         *logger.Logger
	now            func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg config.CalendarConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		tokenURL:       cfg.TokenURL,
		clientID:       cfg.ClientID,
		clientSecret:   cfg.ClientSecret,
		organizerEmail: cfg.OrganizerEmail,
		logger:         logg,
		now:            time.Now,
	}, nil
}

// CreateWebinarInvite books a timed event for the occurrence.
func (c *Client) CreateWebinarInvite(ctx context.Context, webinarName string, date *models.WebinarDate, autoCreated bool) error {
	event := map[string]any{
		"summary":     webinarName,
		"description": eventDescription("webinar", autoCreated),
		"start":       map[string]string{"dateTime": date.DateTime.UTC().Format(time.RFC3339)},
		"end":         map[string]string{"dateTime": date.DateTime.Add(webinarDuration).UTC().Format(time.RFC3339)},
	}
	return c.createEvent(ctx, event)
}

// CreateBundleInvite books an all-day event for the cohort date.
func (c *Client) CreateBundleInvite(ctx context.Context, bundleName string, date *models.BundleDate, autoCreated bool) error {
	day := date.Date.Format("2006-01-02")
	event := map[string]any{
		"summary":     bundleName,
		"description": eventDescription("bundle", autoCreated),
		"start":       map[string]string{"date": day},
		"end":         map[string]string{"date": date.Date.AddDate(0, 0, 1).Format("2006-01-02")},
	}
	return c.createEvent(ctx, event)
}

func eventDescription(kind string, autoCreated bool) string {
	if autoCreated {
		return fmt.Sprintf("Auto-created %s date from an inbound registration.", kind)
	}
	return fmt.Sprintf("Scheduled %s date.", kind)
}

func (c *Client) createEvent(ctx context.Context, event map[string]any) error {
	if c.organizerEmail != "" {
		event["attendees"] = []map[string]string{{"email": c.organizerEmail}}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding calendar event")
	}

	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + "/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building calendar request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calendar request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("calendar returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	c.logger.Info(ctx, "calendar event created")
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building calendar token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calendar token request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("calendar token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeParse, err, "decoding calendar token response")
	}
	if decoded.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "calendar token response missing access_token")
	}

	expiresIn := time.Duration(decoded.ExpiresIn) * time.Second
	if expiresIn <= tokenSkew {
		expiresIn = 30 * time.Minute
	}
	c.accessToken = decoded.AccessToken
	c.tokenExpiry = c.now().Add(expiresIn - tokenSkew)
	return c.accessToken, nil
}
