package conference

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

	"github.com/golang-jwt/jwt/v5"

	"github.com/awesometech/webinar-backoffice/pkg/config"
	pkgerrors "github.com/awesometech/webinar-backoffice/pkg/errors"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
)

var (
	errLoggerRequired      = errors.New("conference logger is required")
	errCredentialsRequired = errors.New("conference client id and secret are required")
)

// tokenSkew is subtracted from a token's lifetime so a request never goes out
// with a token about to expire mid-flight.
const tokenSkew = time.Minute

// RejectionError reports the provider refusing a registration request, as
// opposed to the request not reaching it at all.
type RejectionError struct {
	StatusCode int
	Detail     string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("conference registration returned %d: %s", e.StatusCode, e.Detail)
}

// Registration is the provider's record for a registered attendee.
type Registration struct {
	RegistrantID string
	JoinURL      string
	InviteLink   string
}

// Client registers attendees on scheduled meetings. Authentication uses
// server-to-server OAuth when an account ID is configured, and falls back to
// the provider's legacy signed-JWT scheme when it is not.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	tokenURL     string
	accountID    string
	clientID     string
	clientSecret string
	logger       *logger.Logger
	now          func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg config.ConferenceConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if !cfg.Configured() {
		return nil, errCredentialsRequired
	}
	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		tokenURL:     cfg.TokenURL,
		accountID:    cfg.AccountID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		logger:       logg,
		now:          time.Now,
	}, nil
}

// Register adds the attendee as a meeting registrant. A stale cached token is
// refreshed and the call retried once before the failure is surfaced.
func (c *Client) Register(ctx context.Context, meetingID, firstName, lastName, email string) (*Registration, error) {
	reg, status, err := c.register(ctx, meetingID, firstName, lastName, email)
	if status == http.StatusUnauthorized {
		c.invalidateToken()
		reg, _, err = c.register(ctx, meetingID, firstName, lastName, email)
	}
	if err != nil {
		return nil, err
	}

	logCtx := c.logger.WithFields(ctx, map[string]any{
		"meeting_id":    meetingID,
		"registrant_id": reg.RegistrantID,
	})
	c.logger.Info(logCtx, "conference registrant created")
	return reg, nil
}

func (c *Client) register(ctx context.Context, meetingID, firstName, lastName, email string) (*Registration, int, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, 0, err
	}

	payload := map[string]string{
		"email":      email,
		"first_name": firstName,
		"last_name":  lastName,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding registrant payload")
	}

	endpoint := fmt.Sprintf("%s/meetings/%s/registrants", c.baseURL, url.PathEscape(meetingID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building registrant request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "conference registrant request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading registrant response")
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, &RejectionError{
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(raw)),
		}
	}

	var decoded struct {
		RegistrantID string `json:"registrant_id"`
		ID           any    `json:"id"`
		JoinURL      string `json:"join_url"`
		InviteLink   string `json:"invite_link"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, resp.StatusCode, pkgerrors.Wrap(pkgerrors.CodeParse, err, "decoding registrant response")
	}

	reg := &Registration{
		RegistrantID: decoded.RegistrantID,
		JoinURL:      decoded.JoinURL,
		InviteLink:   decoded.InviteLink,
	}
	if reg.InviteLink == "" {
		reg.InviteLink = decoded.JoinURL
	}
	return reg, resp.StatusCode, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.accountID == "" {
		return c.legacyJWT()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", c.accountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "conference token request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("conference token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeParse, err, "decoding token response")
	}
	if decoded.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "conference token response missing access_token")
	}

	c.accessToken = decoded.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(decoded.ExpiresIn)*time.Second - tokenSkew)
	return c.accessToken, nil
}

func (c *Client) legacyJWT() (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"iss": c.clientID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
		"aud": "zoom",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.clientSecret))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "signing legacy conference token")
	}
	return signed, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}
