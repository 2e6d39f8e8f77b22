package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BundleDate is a calendar date on which a bundle cohort runs. The component
// webinar occurrences on that day hang off the join table.
type BundleDate struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BundleID uuid.UUID `gorm:"column:bundle_id;type:uuid;not null;index"`
	Bundle   *Bundle   `gorm:"foreignKey:BundleID"`
	Date     time.Time `gorm:"column:date;type:date;not null;index"`

	WebinarDates []WebinarDate `gorm:"many2many:bundle_date_webinar_dates"`

	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}
