package crm

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
	"github.com/awesometech/webinar-backoffice/pkg/logger"
)

var errLoggerRequired = errors.New("crm logger is required")

const tokenSkew = time.Minute

// SyncInput is one attendee's identity as it should appear in the CRM.
type SyncInput struct {
	FirstName    string
	LastName     string
	Email        string
	Organization string
	Topic        string
}

// SyncResult carries the CRM record IDs linked to a synced attendee.
type SyncResult struct {
	ContactID string
	AccountID string
	TaskID    string
}

// Client pushes attendee registrations into the CRM: an account for the
// organization, a contact under it, and a completed task recording the
// registration.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	username     string
	password     string
	taskOwnerID  string
	logger       *logger.Logger
	now          func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg config.CRMConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		username:     cfg.Username,
		password:     cfg.Password,
		taskOwnerID:  cfg.TaskOwnerID,
		logger:       logg,
		now:          time.Now,
	}, nil
}

// SyncAttendee runs the full account, contact, task pipeline. Organizations
// without a name are filed under the contact's email domain so every contact
// still hangs off an account.
func (c *Client) SyncAttendee(ctx context.Context, input SyncInput) (*SyncResult, error) {
	accountName := strings.TrimSpace(input.Organization)
	if accountName == "" {
		accountName = emailDomain(input.Email)
	}

	accountID, err := c.findOrCreateAccount(ctx, accountName)
	if err != nil {
		return nil, err
	}

	contactID, err := c.findOrCreateContact(ctx, input, accountID)
	if err != nil {
		return nil, err
	}

	taskID, err := c.createCompletedTask(ctx, contactID, input.Topic)
	if err != nil {
		return nil, err
	}

	logCtx := c.logger.WithFields(ctx, map[string]any{
		"account_id": accountID,
		"contact_id": contactID,
		"task_id":    taskID,
	})
	c.logger.Info(logCtx, "crm sync complete")
	return &SyncResult{ContactID: contactID, AccountID: accountID, TaskID: taskID}, nil
}

func (c *Client) findOrCreateAccount(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("SELECT Id FROM Account WHERE Name = '%s' LIMIT 1", escapeQueryValue(name))
	id, err := c.queryFirstID(ctx, query)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	return c.createRecord(ctx, "Account", map[string]any{
		"Name": name,
		"Type": "Customer",
	})
}

func (c *Client) findOrCreateContact(ctx context.Context, input SyncInput, accountID string) (string, error) {
	query := fmt.Sprintf("SELECT Id FROM Contact WHERE Email = '%s' LIMIT 1", escapeQueryValue(input.Email))
	id, err := c.queryFirstID(ctx, query)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	lastName := strings.TrimSpace(input.LastName)
	if lastName == "" {
		lastName = input.FirstName
	}
	return c.createRecord(ctx, "Contact", map[string]any{
		"FirstName": input.FirstName,
		"LastName":  lastName,
		"Email":     input.Email,
		"AccountId": accountID,
	})
}

func (c *Client) createCompletedTask(ctx context.Context, contactID, topic string) (string, error) {
	subject := "Webinar registration"
	if topic != "" {
		subject = fmt.Sprintf("Webinar registration: %s", topic)
	}
	fields := map[string]any{
		"Subject":      subject,
		"Status":       "Completed",
		"WhoId":        contactID,
		"ActivityDate": c.now().UTC().Format("2006-01-02"),
	}
	if c.taskOwnerID != "" {
		fields["OwnerId"] = c.taskOwnerID
	}
	return c.createRecord(ctx, "Task", fields)
}

func (c *Client) queryFirstID(ctx context.Context, query string) (string, error) {
	endpoint := fmt.Sprintf("%s/query?q=%s", c.baseURL, url.QueryEscape(query))
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	var decoded struct {
		Records []struct {
			ID string `json:"Id"`
		} `json:"records"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeParse, err, "decoding crm query response")
	}
	if len(decoded.Records) == 0 {
		return "", nil
	}
	return decoded.Records[0].ID, nil
}

func (c *Client) createRecord(ctx context.Context, sobject string, fields map[string]any) (string, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding crm record")
	}

	endpoint := fmt.Sprintf("%s/sobjects/%s", c.baseURL, sobject)
	raw, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}

	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeParse, err, "decoding crm create response")
	}
	if decoded.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("crm %s create returned no id", sobject))
	}
	return decoded.ID, nil
}

// do attaches the bearer token and runs the request, refreshing the token and
// retrying once on 401.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	raw, status, err := c.doOnce(ctx, method, endpoint, body)
	if status == http.StatusUnauthorized {
		c.invalidateToken()
		raw, status, err = c.doOnce(ctx, method, endpoint, body)
	}
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("crm returned %d: %s", status, strings.TrimSpace(string(raw))))
	}
	return raw, nil
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body []byte) ([]byte, int, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, 0, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building crm request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "crm request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading crm response")
	}
	return raw, resp.StatusCode, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building crm token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "crm token request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("crm token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeParse, err, "decoding crm token response")
	}
	if decoded.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "crm token response missing access_token")
	}

	expiresIn := time.Duration(decoded.ExpiresIn) * time.Second
	if expiresIn <= tokenSkew {
		expiresIn = 30 * time.Minute
	}
	c.accessToken = decoded.AccessToken
	c.tokenExpiry = c.now().Add(expiresIn - tokenSkew)
	return c.accessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

func emailDomain(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 && at < len(email)-1 {
		return email[at+1:]
	}
	return email
}

func escapeQueryValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, "'", `\'`)
}
