package webhooklog

import (
	"context"

	"gorm.io/gorm"

	"github.com/awesometech/webinar-backoffice/pkg/db/models"
)

// Repository persists webhook call records. Logs are append-only; nothing in
// the system updates or deletes them.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create writes one log row for an inbound webhook call.
func (r *Repository) Create(ctx context.Context, log *models.WebhookLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListRecent returns the newest log rows, bounded by limit.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]models.WebhookLog, error) {
	var rows []models.WebhookLog
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
