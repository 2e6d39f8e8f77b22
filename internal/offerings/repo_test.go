package offerings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/awesometech/webinar-backoffice/pkg/db/models"
)

func setupOfferingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	webinars := `
CREATE TABLE IF NOT EXISTS webinars (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  aliases TEXT,
  activation_hook_url TEXT NOT NULL DEFAULT '',
  form_date_field TEXT NOT NULL DEFAULT 'Webinar options',
  checkout_date_field TEXT NOT NULL DEFAULT '',
  error_notification_email TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`
	bundles := `
CREATE TABLE IF NOT EXISTS bundles (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  aliases TEXT,
  activation_hook_url TEXT NOT NULL DEFAULT '',
  form_date_field TEXT NOT NULL DEFAULT 'Bundle options',
  checkout_date_field TEXT NOT NULL DEFAULT '',
  error_notification_email TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`
	require.NoError(t, db.Exec("DROP TABLE IF EXISTS webinars").Error)
	require.NoError(t, db.Exec("DROP TABLE IF EXISTS bundles").Error)
	require.NoError(t, db.Exec(webinars).Error)
	require.NoError(t, db.Exec(bundles).Error)
	return db
}

func TestListWebinarsSkipsDeletedAndOrders(t *testing.T) {
	db := setupOfferingsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	older := &models.Webinar{ID: uuid.New(), Name: "First", Aliases: pq.StringArray{"one"}, CreatedAt: base}
	newer := &models.Webinar{ID: uuid.New(), Name: "Second", CreatedAt: base.Add(time.Hour)}
	deleted := &models.Webinar{ID: uuid.New(), Name: "Gone", CreatedAt: base.Add(2 * time.Hour)}
	require.NoError(t, db.Create(older).Error)
	require.NoError(t, db.Create(newer).Error)
	require.NoError(t, db.Create(deleted).Error)
	require.NoError(t, db.Delete(deleted).Error)

	got, err := repo.ListWebinars(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "First", got[0].Name)
	require.Equal(t, "Second", got[1].Name)
	require.Equal(t, pq.StringArray{"one"}, got[0].Aliases)
}

func TestListBundlesSkipsDeleted(t *testing.T) {
	db := setupOfferingsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	active := &models.Bundle{ID: uuid.New(), Name: "Bundle A"}
	deleted := &models.Bundle{ID: uuid.New(), Name: "Bundle B"}
	require.NoError(t, db.Create(active).Error)
	require.NoError(t, db.Create(deleted).Error)
	require.NoError(t, db.Delete(deleted).Error)

	got, err := repo.ListBundles(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Bundle A", got[0].Name)
}
