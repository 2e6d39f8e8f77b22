package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// WebhookLog records every inbound webhook call, successful or not. Rows are
// write-once.
type WebhookLog struct {
	ID               uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Method           string         `gorm:"column:method;not null"`
	Path             string         `gorm:"column:path;not null"`
	Headers          datatypes.JSON `gorm:"column:headers;type:jsonb"`
	Body             string         `gorm:"column:body"`
	ResponseStatus   int            `gorm:"column:response_status;not null"`
	ResponseBody     string         `gorm:"column:response_body"`
	Success          bool           `gorm:"column:success;not null;default:false;index"`
	ErrorMessage     string         `gorm:"column:error_message"`
	ProcessingTimeMS *int64         `gorm:"column:processing_time_ms"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime;index:,sort:desc"`
}
