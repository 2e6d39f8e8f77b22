package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/awesometech/webinar-backoffice/pkg/enums"
)

// Attendee is a single registration. Kind determines which scope column is
// populated: WebinarDateID for regular, WebinarID for on-demand and
// BundleDateID for bundle registrations.
type Attendee struct {
	ID   uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind enums.AttendeeKind `gorm:"column:kind;type:attendee_kind;not null"`

	WebinarDateID *uuid.UUID   `gorm:"column:webinar_date_id;type:uuid;index"`
	WebinarDate   *WebinarDate `gorm:"foreignKey:WebinarDateID"`
	WebinarID     *uuid.UUID   `gorm:"column:webinar_id;type:uuid;index"`
	Webinar       *Webinar     `gorm:"foreignKey:WebinarID"`
	BundleDateID  *uuid.UUID   `gorm:"column:bundle_date_id;type:uuid;index"`
	BundleDate    *BundleDate  `gorm:"foreignKey:BundleDateID"`

	FirstName    string `gorm:"column:first_name;not null"`
	LastName     string `gorm:"column:last_name"`
	Email        string `gorm:"column:email;not null;index"`
	Organization string `gorm:"column:organization"`

	ActivationSentAt  *time.Time `gorm:"column:activation_sent_at"`
	ActivationSuccess *bool      `gorm:"column:activation_success"`
	ActivationError   string     `gorm:"column:activation_error"`

	ConferenceRegistrantID    string     `gorm:"column:conference_registrant_id"`
	ConferenceJoinURL         string     `gorm:"column:conference_join_url"`
	ConferenceInviteLink      string     `gorm:"column:conference_invite_link"`
	ConferenceRegisteredAt    *time.Time `gorm:"column:conference_registered_at"`
	ConferenceRegistrationErr string     `gorm:"column:conference_registration_error"`

	CRMContactID   string     `gorm:"column:crm_contact_id"`
	CRMAccountID   string     `gorm:"column:crm_account_id"`
	CRMTaskID      string     `gorm:"column:crm_task_id"`
	CRMSyncError   string     `gorm:"column:crm_sync_error"`
	CRMSyncedAt    *time.Time `gorm:"column:crm_synced_at"`
	CRMSyncPending bool       `gorm:"column:crm_sync_pending;not null;default:true;index"`

	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// ScopeID returns whichever scope key is set for the attendee's kind.
func (a Attendee) ScopeID() *uuid.UUID {
	switch a.Kind {
	case enums.AttendeeKindRegular:
		return a.WebinarDateID
	case enums.AttendeeKindOnDemand:
		return a.WebinarID
	case enums.AttendeeKindBundle:
		return a.BundleDateID
	}
	return nil
}
