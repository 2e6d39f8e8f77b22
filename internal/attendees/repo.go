package attendees

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/awesometech/webinar-backoffice/pkg/db/models"
	"github.com/awesometech/webinar-backoffice/pkg/enums"
)

// Repository exposes attendee persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func scopeClause(kind enums.AttendeeKind) string {
	switch kind {
	case enums.AttendeeKindRegular:
		return "webinar_date_id = ?"
	case enums.AttendeeKindOnDemand:
		return "webinar_id = ?"
	case enums.AttendeeKindBundle:
		return "bundle_date_id = ?"
	}
	return "id = ?"
}

// FindByScope looks up an attendee by scope and email, including soft-deleted
// rows so callers can restore them.
func (r *Repository) FindByScope(ctx context.Context, kind enums.AttendeeKind, scopeID uuid.UUID, email string) (*models.Attendee, error) {
	var attendee models.Attendee
	err := r.db.WithContext(ctx).
		Unscoped().
		Where("kind = ?", kind).
		Where(scopeClause(kind), scopeID).
		Where("email = ?", email).
		Order("created_at").
		First(&attendee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attendee, nil
}

// Create persists a new attendee.
func (r *Repository) Create(ctx context.Context, attendee *models.Attendee) error {
	return r.db.WithContext(ctx).Create(attendee).Error
}

// Save writes the attendee back including a cleared DeletedAt, which plain
// Save would keep filtering on.
func (r *Repository) Save(ctx context.Context, attendee *models.Attendee) error {
	return r.db.WithContext(ctx).Unscoped().Save(attendee).Error
}

// ListActivationPending returns non-deleted attendees that have never had an
// activation attempt, oldest first, bounded by limit. Regular attendees whose
// occurrence starts after dueBefore are excluded in the query itself, so a
// backlog of future sessions cannot fill the batch and crowd out attendees
// that are already due. On-demand and bundle attendees are always returned;
// bundle due-ness depends on other occurrences and is decided by the caller.
func (r *Repository) ListActivationPending(ctx context.Context, limit int, dueBefore time.Time) ([]models.Attendee, error) {
	var rows []models.Attendee
	q := r.db.WithContext(ctx).
		Preload("WebinarDate").
		Preload("WebinarDate.Webinar").
		Preload("Webinar").
		Preload("BundleDate").
		Preload("BundleDate.Bundle").
		Joins("LEFT JOIN webinar_dates ON webinar_dates.id = attendees.webinar_date_id").
		Where("attendees.activation_sent_at IS NULL").
		Where("attendees.kind <> ? OR webinar_dates.date_time <= ?", enums.AttendeeKindRegular, dueBefore).
		Order("attendees.created_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListCRMSyncPending returns non-deleted attendees flagged for CRM sync,
// oldest first, bounded by limit.
func (r *Repository) ListCRMSyncPending(ctx context.Context, limit int) ([]models.Attendee, error) {
	var rows []models.Attendee
	q := r.db.WithContext(ctx).
		Preload("WebinarDate").
		Preload("WebinarDate.Webinar").
		Preload("Webinar").
		Preload("BundleDate").
		Preload("BundleDate.Bundle").
		Where("crm_sync_pending = ?", true).
		Order("created_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// RecordActivation stores the outcome of an activation attempt.
func (r *Repository) RecordActivation(ctx context.Context, id uuid.UUID, sentAt time.Time, success bool, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&models.Attendee{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"activation_sent_at": sentAt,
			"activation_success": success,
			"activation_error":   errMsg,
		}).Error
}

// RecordCRMSuccess fills the CRM linkage fields and clears the pending flag.
func (r *Repository) RecordCRMSuccess(ctx context.Context, id uuid.UUID, contactID, accountID, taskID string, syncedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Attendee{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"crm_contact_id":   contactID,
			"crm_account_id":   accountID,
			"crm_task_id":      taskID,
			"crm_synced_at":    syncedAt,
			"crm_sync_error":   "",
			"crm_sync_pending": false,
		}).Error
}

// RecordCRMFailure stores the sync error and keeps the attendee pending.
func (r *Repository) RecordCRMFailure(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&models.Attendee{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"crm_sync_error":   errMsg,
			"crm_sync_pending": true,
		}).Error
}
