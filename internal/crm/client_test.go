package crm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/awesometech/webinar-backoffice/pkg/config"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
)

type fakeCRM struct {
	tokenCalls   int
	accounts     map[string]string
	contacts     map[string]string
	createdTasks []map[string]any
	created      []string
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		accounts: map[string]string{},
		contacts: map[string]string{},
	}
}

func (f *fakeCRM) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		require.NoError(t, r.ParseForm())
		require.Equal(t, "password", r.FormValue("grant_type"))
		json.NewEncoder(w).Encode(map[string]any{"access_token": "crm-tok", "expires_in": 3600})
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer crm-tok", r.Header.Get("Authorization"))
		q := r.URL.Query().Get("q")
		records := []map[string]string{}
		switch {
		case strings.Contains(q, "FROM Account"):
			for name, id := range f.accounts {
				if strings.Contains(q, "'"+name+"'") {
					records = append(records, map[string]string{"Id": id})
				}
			}
		case strings.Contains(q, "FROM Contact"):
			for email, id := range f.contacts {
				if strings.Contains(q, "'"+email+"'") {
					records = append(records, map[string]string{"Id": id})
				}
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"records": records})
	})
	mux.HandleFunc("/sobjects/Account", func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
		require.Equal(t, "Customer", fields["Type"])
		id := "acc-new"
		f.accounts[fields["Name"].(string)] = id
		f.created = append(f.created, "Account")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": id})
	})
	mux.HandleFunc("/sobjects/Contact", func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
		id := "con-new"
		f.contacts[fields["Email"].(string)] = id
		f.created = append(f.created, "Contact")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": id, "accountId": fields["AccountId"]})
	})
	mux.HandleFunc("/sobjects/Task", func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
		f.createdTasks = append(f.createdTasks, fields)
		f.created = append(f.created, "Task")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "task-new"})
	})
	return mux
}

func newCRMTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(config.CRMConfig{
		BaseURL:  baseURL,
		TokenURL: baseURL + "/oauth/token",
		ClientID: "id", ClientSecret: "secret",
		Username: "ops", Password: "pw",
		TaskOwnerID: "owner-1",
		Timeout:     5 * time.Second,
	}, logger.New(logger.Options{Output: io.Discard}))
	require.NoError(t, err)
	return client
}

func TestSyncAttendeeCreatesFullChain(t *testing.T) {
	fake := newFakeCRM()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := newCRMTestClient(t, srv.URL)
	result, err := client.SyncAttendee(context.Background(), SyncInput{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "ada@example.com",
		Organization: "Analytical Engines Ltd",
		Topic:        "Fire Safety",
	})
	require.NoError(t, err)
	require.Equal(t, "acc-new", result.AccountID)
	require.Equal(t, "con-new", result.ContactID)
	require.Equal(t, "task-new", result.TaskID)
	require.Equal(t, []string{"Account", "Contact", "Task"}, fake.created)

	task := fake.createdTasks[0]
	require.Equal(t, "Webinar registration: Fire Safety", task["Subject"])
	require.Equal(t, "Completed", task["Status"])
	require.Equal(t, "con-new", task["WhoId"])
	require.Equal(t, "owner-1", task["OwnerId"])

	require.Equal(t, 1, fake.tokenCalls)
}

func TestSyncAttendeeReusesExistingRecords(t *testing.T) {
	fake := newFakeCRM()
	fake.accounts["Analytical Engines Ltd"] = "acc-1"
	fake.contacts["ada@example.com"] = "con-1"
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := newCRMTestClient(t, srv.URL)
	result, err := client.SyncAttendee(context.Background(), SyncInput{
		FirstName:    "Ada",
		Email:        "ada@example.com",
		Organization: "Analytical Engines Ltd",
	})
	require.NoError(t, err)
	require.Equal(t, "acc-1", result.AccountID)
	require.Equal(t, "con-1", result.ContactID)
	require.Equal(t, []string{"Task"}, fake.created)
}

func TestSyncAttendeeFallsBackToEmailDomainAccount(t *testing.T) {
	fake := newFakeCRM()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := newCRMTestClient(t, srv.URL)
	_, err := client.SyncAttendee(context.Background(), SyncInput{
		FirstName: "Ada",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)
	_, ok := fake.accounts["example.com"]
	require.True(t, ok)
}

func TestSyncAttendeeSurfacesCRMFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "crm-tok", "expires_in": 3600})
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newCRMTestClient(t, srv.URL)
	_, err := client.SyncAttendee(context.Background(), SyncInput{FirstName: "Ada", Email: "ada@example.com"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}
