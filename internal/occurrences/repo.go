package occurrences

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/awesometech/webinar-backoffice/pkg/db/models"
)

// Repository exposes occurrence persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetWebinarDate loads a webinar date by ID with its webinar attached.
func (r *Repository) GetWebinarDate(ctx context.Context, id uuid.UUID) (*models.WebinarDate, error) {
	var date models.WebinarDate
	err := r.db.WithContext(ctx).
		Preload("Webinar").
		First(&date, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &date, nil
}

// FindWebinarDatesInWindow returns non-deleted dates for the webinar whose
// start time falls inside [from, to], earliest first.
func (r *Repository) FindWebinarDatesInWindow(ctx context.Context, webinarID uuid.UUID, from, to time.Time) ([]models.WebinarDate, error) {
	var dates []models.WebinarDate
	err := r.db.WithContext(ctx).
		Where("webinar_id = ? AND date_time >= ? AND date_time <= ?", webinarID, from, to).
		Order("date_time").
		Find(&dates).Error
	if err != nil {
		return nil, err
	}
	return dates, nil
}

// CreateWebinarDate persists a new webinar occurrence.
func (r *Repository) CreateWebinarDate(ctx context.Context, date *models.WebinarDate) error {
	return r.db.WithContext(ctx).Create(date).Error
}

// UpdateWebinarDate saves changes to an existing occurrence.
func (r *Repository) UpdateWebinarDate(ctx context.Context, date *models.WebinarDate) error {
	return r.db.WithContext(ctx).Save(date).Error
}

// FindBundleDatesOn returns non-deleted bundle dates matching the calendar day.
func (r *Repository) FindBundleDatesOn(ctx context.Context, bundleID uuid.UUID, day time.Time) ([]models.BundleDate, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var dates []models.BundleDate
	err := r.db.WithContext(ctx).
		Where("bundle_id = ? AND date >= ? AND date < ?", bundleID, start, end).
		Order("created_at").
		Find(&dates).Error
	if err != nil {
		return nil, err
	}
	return dates, nil
}

// CreateBundleDate persists a new bundle cohort date.
func (r *Repository) CreateBundleDate(ctx context.Context, date *models.BundleDate) error {
	return r.db.WithContext(ctx).Create(date).Error
}

// LatestWebinarDateOn returns the latest-starting webinar occurrence on the
// given calendar day, or nil when the day has none. Bundle activation timing
// keys off this occurrence.
func (r *Repository) LatestWebinarDateOn(ctx context.Context, day time.Time) (*models.WebinarDate, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var date models.WebinarDate
	err := r.db.WithContext(ctx).
		Where("date_time >= ? AND date_time < ?", start, end).
		Order("date_time DESC").
		First(&date).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &date, nil
}
