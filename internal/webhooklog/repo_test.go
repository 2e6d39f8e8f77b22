package webhooklog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/awesometech/webinar-backoffice/pkg/db/models"
)

func setupWebhookLogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS webhook_logs (
  id TEXT PRIMARY KEY,
  method TEXT NOT NULL,
  path TEXT NOT NULL,
  headers TEXT,
  body TEXT,
  response_status INTEGER NOT NULL,
  response_body TEXT,
  success INTEGER NOT NULL DEFAULT 0,
  error_message TEXT,
  processing_time_ms INTEGER,
  created_at DATETIME
);`
	require.NoError(t, db.Exec("DROP TABLE IF EXISTS webhook_logs").Error)
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func TestCreateAndListRecent(t *testing.T) {
	db := setupWebhookLogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	elapsed := int64(42)
	first := &models.WebhookLog{
		ID:               uuid.New(),
		Method:           "POST",
		Path:             "/webhooks/kajabi",
		Headers:          datatypes.JSON(`{"Content-Type":"application/json"}`),
		Body:             `{"event":"form_submission.created"}`,
		ResponseStatus:   200,
		ResponseBody:     `{"status":"success"}`,
		Success:          true,
		ProcessingTimeMS: &elapsed,
		CreatedAt:        time.Now().UTC().Add(-time.Minute),
	}
	second := &models.WebhookLog{
		ID:             uuid.New(),
		Method:         "GET",
		Path:           "/webhooks/kajabi",
		ResponseStatus: 200,
		ResponseBody:   "OK",
		Success:        true,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	got, err := repo.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, second.ID, got[0].ID)

	all, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[1].ProcessingTimeMS)
	require.Equal(t, elapsed, *all[1].ProcessingTimeMS)
}
