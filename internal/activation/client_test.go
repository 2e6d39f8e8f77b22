package activation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/awesometech/webinar-backoffice/pkg/config"
	"github.com/awesometech/webinar-backoffice/pkg/enums"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
)

func testActivationClient(t *testing.T) *Client {
	t.Helper()
	logg := logger.New(logger.Options{Output: io.Discard})
	client, err := NewClient(config.ActivationConfig{Timeout: 5 * time.Second, UserAgent: "Webinar-Backoffice/1.0"}, logg)
	require.NoError(t, err)
	client.now = func() time.Time {
		return time.Date(2025, time.June, 24, 10, 0, 0, 0, time.UTC)
	}
	return client
}

func TestSendPostsActivationPayload(t *testing.T) {
	var got Request
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		userAgent = r.Header.Get("User-Agent")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := testActivationClient(t)
	ok, msg := client.Send(context.Background(), srv.URL, "ada@example.com", "Ada", "Lovelace", enums.ActivationTypeWebinar)
	require.True(t, ok)
	require.Equal(t, "activation hook returned 200", msg)
	require.Equal(t, "ada@example.com", got.Email)
	require.Equal(t, "Ada", got.FirstName)
	require.Equal(t, "Lovelace", got.LastName)
	require.Equal(t, enums.ActivationTypeWebinar, got.Type)
	require.Equal(t, "2025-06-24T10:00:00Z", got.Timestamp)
	require.Equal(t, "Webinar-Backoffice/1.0", userAgent)
}

func TestSendReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := testActivationClient(t)
	ok, msg := client.Send(context.Background(), srv.URL, "ada@example.com", "Ada", "", enums.ActivationTypeBundle)
	require.False(t, ok)
	require.Equal(t, "activation hook returned 500", msg)
}

func TestSendWithoutHookURL(t *testing.T) {
	client := testActivationClient(t)
	ok, msg := client.Send(context.Background(), "  ", "ada@example.com", "Ada", "", enums.ActivationTypeWebinar)
	require.False(t, ok)
	require.Equal(t, "no activation hook configured", msg)
}
