package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/awesometech/webinar-backoffice/pkg/db/models"
	"github.com/awesometech/webinar-backoffice/pkg/enums"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
)

// activationDelay keeps the hook from firing until the session has wrapped up.
const activationDelay = 2 * time.Hour

const defaultActivationBatchLimit = 100

// ActivationJobParams configures the pending-activation sweep.
type ActivationJobParams struct {
	Logger      *logger.Logger
	Attendees   activationAttendeeStore
	Occurrences latestOccurrenceFinder
	Activation  activationSender
	BatchLimit  int
}

type activationAttendeeStore interface {
	ListActivationPending(ctx context.Context, limit int, dueBefore time.Time) ([]models.Attendee, error)
	RecordActivation(ctx context.Context, id uuid.UUID, sentAt time.Time, success bool, errMsg string) error
}

type latestOccurrenceFinder interface {
	LatestWebinarDateOn(ctx context.Context, day time.Time) (*models.WebinarDate, error)
}

type activationSender interface {
	Send(ctx context.Context, hookURL, email, firstName, lastName string, activationType enums.ActivationType) (bool, string)
}

// NewActivationJob constructs the job that delivers activation hooks for
// attendees whose sessions have ended.
func NewActivationJob(params ActivationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Attendees == nil {
		return nil, fmt.Errorf("attendee repository required")
	}
	if params.Occurrences == nil {
		return nil, fmt.Errorf("occurrence repository required")
	}
	if params.Activation == nil {
		return nil, fmt.Errorf("activation client required")
	}
	limit := params.BatchLimit
	if limit <= 0 {
		limit = defaultActivationBatchLimit
	}
	return &activationJob{
		logg:        params.Logger,
		attendees:   params.Attendees,
		occurrences: params.Occurrences,
		activation:  params.Activation,
		limit:       limit,
		now:         time.Now,
	}, nil
}

type activationJob struct {
	logg        *logger.Logger
	attendees   activationAttendeeStore
	occurrences latestOccurrenceFinder
	activation  activationSender
	limit       int
	now         func() time.Time
}

func (j *activationJob) Name() string { return "activation-pending" }

func (j *activationJob) Run(ctx context.Context) error {
	dueBefore := j.now().UTC().Add(-activationDelay)
	rows, err := j.attendees.ListActivationPending(ctx, j.limit, dueBefore)
	if err != nil {
		return fmt.Errorf("query pending activations: %w", err)
	}

	var errs []error
	sent := 0
	for _, attendee := range rows {
		due, hookURL, activationType, err := j.resolve(ctx, attendee)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !due {
			continue
		}

		sentAt := j.now().UTC()
		ok, msg := j.activation.Send(ctx, hookURL, attendee.Email, attendee.FirstName, attendee.LastName, activationType)
		errMsg := ""
		if !ok {
			errMsg = msg
		}
		if err := j.attendees.RecordActivation(ctx, attendee.ID, sentAt, ok, errMsg); err != nil {
			errs = append(errs, fmt.Errorf("record activation for %s: %w", attendee.ID, err))
			continue
		}
		sent++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"pending": len(rows), "sent": sent})
	j.logg.Info(logCtx, "activation sweep complete")
	return multierr.Combine(errs...)
}

// resolve decides whether the attendee's activation is due yet and which hook
// receives it. Bundle attendees wait for the last webinar occurrence on their
// cohort date.
func (j *activationJob) resolve(ctx context.Context, attendee models.Attendee) (bool, string, enums.ActivationType, error) {
	now := j.now().UTC()

	switch attendee.Kind {
	case enums.AttendeeKindOnDemand:
		if attendee.Webinar == nil {
			return false, "", "", fmt.Errorf("attendee %s has no webinar loaded", attendee.ID)
		}
		return true, attendee.Webinar.ActivationHookURL, enums.ActivationTypeWebinar, nil

	case enums.AttendeeKindRegular:
		if attendee.WebinarDate == nil || attendee.WebinarDate.Webinar == nil {
			return false, "", "", fmt.Errorf("attendee %s has no webinar date loaded", attendee.ID)
		}
		due := !attendee.WebinarDate.DateTime.Add(activationDelay).After(now)
		return due, attendee.WebinarDate.Webinar.ActivationHookURL, enums.ActivationTypeWebinar, nil

	case enums.AttendeeKindBundle:
		if attendee.BundleDate == nil || attendee.BundleDate.Bundle == nil {
			return false, "", "", fmt.Errorf("attendee %s has no bundle date loaded", attendee.ID)
		}
		last, err := j.occurrences.LatestWebinarDateOn(ctx, attendee.BundleDate.Date)
		if err != nil {
			return false, "", "", fmt.Errorf("find last webinar on %s: %w", attendee.BundleDate.Date.Format("2006-01-02"), err)
		}
		if last == nil {
			return false, "", "", nil
		}
		due := !last.DateTime.Add(activationDelay).After(now)
		return due, attendee.BundleDate.Bundle.ActivationHookURL, enums.ActivationTypeBundle, nil
	}

	return false, "", "", fmt.Errorf("attendee %s has unknown kind %q", attendee.ID, attendee.Kind)
}
