package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Webinar is a recurring training offering that attendees register for via
// marketing-platform webhooks.
type Webinar struct {
	ID                     uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                   string         `gorm:"column:name;not null"`
	Aliases                pq.StringArray `gorm:"column:aliases;type:text[]"`
	ActivationHookURL      string         `gorm:"column:activation_hook_url;not null"`
	FormDateField          string         `gorm:"column:form_date_field;not null;default:'Webinar options'"`
	CheckoutDateField      string         `gorm:"column:checkout_date_field;not null;default:''"`
	ErrorNotificationEmail string         `gorm:"column:error_notification_email;not null;default:'info@awesometechtraining.com'"`
	CreatedAt              time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt              gorm.DeletedAt `gorm:"column:deleted_at;index"`
}
