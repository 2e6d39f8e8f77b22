package occurrences

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/awesometech/webinar-backoffice/pkg/db/models"
)

func setupOccurrencesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	webinarDates := `
CREATE TABLE IF NOT EXISTS webinar_dates (
  id TEXT PRIMARY KEY,
  webinar_id TEXT NOT NULL,
  date_time DATETIME NOT NULL,
  on_demand INTEGER NOT NULL DEFAULT 0,
  meeting_id TEXT NOT NULL DEFAULT '',
  calendar_invite_sent_at DATETIME,
  calendar_invite_success INTEGER,
  calendar_invite_error TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`
	bundleDates := `
CREATE TABLE IF NOT EXISTS bundle_dates (
  id TEXT PRIMARY KEY,
  bundle_id TEXT NOT NULL,
  date DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`
	require.NoError(t, db.Exec("DROP TABLE IF EXISTS webinar_dates").Error)
	require.NoError(t, db.Exec("DROP TABLE IF EXISTS bundle_dates").Error)
	require.NoError(t, db.Exec(webinarDates).Error)
	require.NoError(t, db.Exec(bundleDates).Error)
	return db
}

func TestFindWebinarDatesInWindow(t *testing.T) {
	db := setupOccurrencesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	webinarID := uuid.New()
	target := time.Date(2025, time.June, 24, 10, 0, 0, 0, time.UTC)

	inside := &models.WebinarDate{ID: uuid.New(), WebinarID: webinarID, DateTime: target.Add(45 * time.Minute)}
	outside := &models.WebinarDate{ID: uuid.New(), WebinarID: webinarID, DateTime: target.Add(3 * time.Hour)}
	otherWebinar := &models.WebinarDate{ID: uuid.New(), WebinarID: uuid.New(), DateTime: target}
	require.NoError(t, db.Create(inside).Error)
	require.NoError(t, db.Create(outside).Error)
	require.NoError(t, db.Create(otherWebinar).Error)

	got, err := repo.FindWebinarDatesInWindow(ctx, webinarID, target.Add(-time.Hour), target.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, inside.ID, got[0].ID)
}

func TestFindWebinarDatesInWindowSkipsDeleted(t *testing.T) {
	db := setupOccurrencesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	webinarID := uuid.New()
	target := time.Date(2025, time.June, 24, 10, 0, 0, 0, time.UTC)

	deleted := &models.WebinarDate{ID: uuid.New(), WebinarID: webinarID, DateTime: target}
	require.NoError(t, db.Create(deleted).Error)
	require.NoError(t, db.Delete(deleted).Error)

	got, err := repo.FindWebinarDatesInWindow(ctx, webinarID, target.Add(-time.Hour), target.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestGetWebinarDateMissingReturnsNil(t *testing.T) {
	db := setupOccurrencesTestDB(t)
	repo := NewRepository(db)

	got, err := repo.GetWebinarDate(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestFindBundleDatesOn(t *testing.T) {
	db := setupOccurrencesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	bundleID := uuid.New()
	day := time.Date(2025, time.June, 24, 0, 0, 0, 0, time.UTC)

	match := &models.BundleDate{ID: uuid.New(), BundleID: bundleID, Date: day}
	otherDay := &models.BundleDate{ID: uuid.New(), BundleID: bundleID, Date: day.AddDate(0, 0, 1)}
	require.NoError(t, db.Create(match).Error)
	require.NoError(t, db.Create(otherDay).Error)

	got, err := repo.FindBundleDatesOn(ctx, bundleID, day.Add(10*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, match.ID, got[0].ID)
}

func TestLatestWebinarDateOn(t *testing.T) {
	db := setupOccurrencesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	day := time.Date(2025, time.June, 24, 0, 0, 0, 0, time.UTC)
	morning := &models.WebinarDate{ID: uuid.New(), WebinarID: uuid.New(), DateTime: day.Add(9 * time.Hour)}
	afternoon := &models.WebinarDate{ID: uuid.New(), WebinarID: uuid.New(), DateTime: day.Add(15 * time.Hour)}
	nextDay := &models.WebinarDate{ID: uuid.New(), WebinarID: uuid.New(), DateTime: day.Add(26 * time.Hour)}
	require.NoError(t, db.Create(morning).Error)
	require.NoError(t, db.Create(afternoon).Error)
	require.NoError(t, db.Create(nextDay).Error)

	got, err := repo.LatestWebinarDateOn(ctx, day)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, afternoon.ID, got.ID)

	empty, err := repo.LatestWebinarDateOn(ctx, day.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Nil(t, empty)
}
