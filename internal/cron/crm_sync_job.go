package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/awesometech/webinar-backoffice/internal/crm"
	"github.com/awesometech/webinar-backoffice/pkg/db/models"
	"github.com/awesometech/webinar-backoffice/pkg/enums"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
)

const defaultSyncBatchLimit = 50

// CRMSyncJobParams configures the pending-sync sweep.
type CRMSyncJobParams struct {
	Logger     *logger.Logger
	Attendees  crmAttendeeStore
	CRM        crmSyncer
	BatchLimit int
}

type crmAttendeeStore interface {
	ListCRMSyncPending(ctx context.Context, limit int) ([]models.Attendee, error)
	RecordCRMSuccess(ctx context.Context, id uuid.UUID, contactID, accountID, taskID string, syncedAt time.Time) error
	RecordCRMFailure(ctx context.Context, id uuid.UUID, errMsg string) error
}

type crmSyncer interface {
	SyncAttendee(ctx context.Context, input crm.SyncInput) (*crm.SyncResult, error)
}

// NewCRMSyncJob constructs the job that pushes flagged attendees into the CRM.
func NewCRMSyncJob(params CRMSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Attendees == nil {
		return nil, fmt.Errorf("attendee repository required")
	}
	if params.CRM == nil {
		return nil, fmt.Errorf("crm client required")
	}
	limit := params.BatchLimit
	if limit <= 0 {
		limit = defaultSyncBatchLimit
	}
	return &crmSyncJob{
		logg:      params.Logger,
		attendees: params.Attendees,
		crm:       params.CRM,
		limit:     limit,
		now:       time.Now,
	}, nil
}

type crmSyncJob struct {
	logg      *logger.Logger
	attendees crmAttendeeStore
	crm       crmSyncer
	limit     int
	now       func() time.Time
}

func (j *crmSyncJob) Name() string { return "crm-sync" }

func (j *crmSyncJob) Run(ctx context.Context) error {
	rows, err := j.attendees.ListCRMSyncPending(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("query pending syncs: %w", err)
	}

	var errs []error
	synced := 0
	for _, attendee := range rows {
		result, err := j.crm.SyncAttendee(ctx, crm.SyncInput{
			FirstName:    attendee.FirstName,
			LastName:     attendee.LastName,
			Email:        attendee.Email,
			Organization: attendee.Organization,
			Topic:        topicFor(attendee),
		})
		if err != nil {
			if recErr := j.attendees.RecordCRMFailure(ctx, attendee.ID, err.Error()); recErr != nil {
				errs = append(errs, fmt.Errorf("record sync failure for %s: %w", attendee.ID, recErr))
			}
			errs = append(errs, fmt.Errorf("sync attendee %s: %w", attendee.ID, err))
			continue
		}
		if err := j.attendees.RecordCRMSuccess(ctx, attendee.ID, result.ContactID, result.AccountID, result.TaskID, j.now().UTC()); err != nil {
			errs = append(errs, fmt.Errorf("record sync success for %s: %w", attendee.ID, err))
			continue
		}
		synced++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"pending": len(rows), "synced": synced})
	j.logg.Info(logCtx, "crm sync sweep complete")
	return multierr.Combine(errs...)
}

// topicFor names the offering for the CRM task subject.
func topicFor(attendee models.Attendee) string {
	switch attendee.Kind {
	case enums.AttendeeKindRegular:
		if attendee.WebinarDate != nil && attendee.WebinarDate.Webinar != nil {
			return attendee.WebinarDate.Webinar.Name
		}
	case enums.AttendeeKindOnDemand:
		if attendee.Webinar != nil {
			return attendee.Webinar.Name
		}
	case enums.AttendeeKindBundle:
		if attendee.BundleDate != nil && attendee.BundleDate.Bundle != nil {
			return attendee.BundleDate.Bundle.Name
		}
	}
	return ""
}
