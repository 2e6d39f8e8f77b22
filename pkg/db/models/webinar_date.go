package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebinarDate is a scheduled occurrence of a webinar. On-demand occurrences
// carry no meaningful start time and never receive calendar invites.
type WebinarDate struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WebinarID uuid.UUID `gorm:"column:webinar_id;type:uuid;not null;index"`
	Webinar   *Webinar  `gorm:"foreignKey:WebinarID"`
	DateTime  time.Time `gorm:"column:date_time;not null;index"`
	OnDemand  bool      `gorm:"column:on_demand;not null;default:false"`
	MeetingID string    `gorm:"column:meeting_id"`

	CalendarInviteSentAt  *time.Time `gorm:"column:calendar_invite_sent_at"`
	CalendarInviteSuccess *bool      `gorm:"column:calendar_invite_success"`
	CalendarInviteError   string     `gorm:"column:calendar_invite_error"`

	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}
