package occurrences

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/awesometech/webinar-backoffice/pkg/db/models"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
)

// matchWindow is how far a parsed start time may drift from a configured
// occurrence and still be treated as the same event.
const matchWindow = time.Hour

// NoOccurrenceError signals that no occurrence matched and auto-creation was
// disabled. The pipeline turns it into an operator notification.
type NoOccurrenceError struct {
	OfferingName string
	At           time.Time
}

func (e *NoOccurrenceError) Error() string {
	return fmt.Sprintf("no occurrence for %s at %s", e.OfferingName, e.At)
}

type resolverRepository interface {
	FindWebinarDatesInWindow(ctx context.Context, webinarID uuid.UUID, from, to time.Time) ([]models.WebinarDate, error)
	CreateWebinarDate(ctx context.Context, date *models.WebinarDate) error
	UpdateWebinarDate(ctx context.Context, date *models.WebinarDate) error
	FindBundleDatesOn(ctx context.Context, bundleID uuid.UUID, day time.Time) ([]models.BundleDate, error)
	CreateBundleDate(ctx context.Context, date *models.BundleDate) error
}

type calendarInviter interface {
	CreateWebinarInvite(ctx context.Context, webinarName string, date *models.WebinarDate, autoCreated bool) error
	CreateBundleInvite(ctx context.Context, bundleName string, date *models.BundleDate, autoCreated bool) error
}

// ResolverParams configures an occurrence resolver.
type ResolverParams struct {
	Repo       resolverRepository
	Calendar   calendarInviter
	Logger     *logger.Logger
	AutoCreate bool
}

// Resolver maps parsed start times onto stored occurrences, creating them on
// the fly when permitted.
type Resolver struct {
	repo       resolverRepository
	calendar   calendarInviter
	logg       *logger.Logger
	autoCreate bool
	now        func() time.Time
}

func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("occurrence repository required")
	}
	return &Resolver{
		repo:       params.Repo,
		calendar:   params.Calendar,
		logg:       params.Logger,
		autoCreate: params.AutoCreate,
		now:        time.Now,
	}, nil
}

// ResolveWebinarDate finds the occurrence within an hour of t, or creates one
// at exactly t when auto-creation is on. The created flag reports the latter.
func (r *Resolver) ResolveWebinarDate(ctx context.Context, webinar *models.Webinar, t time.Time) (*models.WebinarDate, bool, error) {
	dates, err := r.repo.FindWebinarDatesInWindow(ctx, webinar.ID, t.Add(-matchWindow), t.Add(matchWindow))
	if err != nil {
		return nil, false, err
	}
	if len(dates) > 0 {
		if len(dates) > 1 && r.logg != nil {
			logCtx := r.logg.WithFields(ctx, map[string]any{
				"webinar": webinar.Name,
				"matches": len(dates),
				"at":      t,
			})
			r.logg.Warn(logCtx, "multiple occurrences inside match window, using earliest")
		}
		return &dates[0], false, nil
	}

	if !r.autoCreate {
		return nil, false, &NoOccurrenceError{OfferingName: webinar.Name, At: t}
	}

	date := &models.WebinarDate{WebinarID: webinar.ID, DateTime: t}
	if err := r.repo.CreateWebinarDate(ctx, date); err != nil {
		return nil, false, err
	}
	if r.logg != nil {
		logCtx := r.logg.WithFields(ctx, map[string]any{"webinar": webinar.Name, "at": t})
		r.logg.Info(logCtx, "auto-created webinar occurrence")
	}

	r.sendWebinarInvite(ctx, webinar.Name, date)
	return date, true, nil
}

// ResolveBundleDate finds the cohort date matching t's calendar day, or
// creates one when auto-creation is on.
func (r *Resolver) ResolveBundleDate(ctx context.Context, bundle *models.Bundle, t time.Time) (*models.BundleDate, bool, error) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())

	dates, err := r.repo.FindBundleDatesOn(ctx, bundle.ID, day)
	if err != nil {
		return nil, false, err
	}
	if len(dates) > 0 {
		return &dates[0], false, nil
	}

	if !r.autoCreate {
		return nil, false, &NoOccurrenceError{OfferingName: bundle.Name, At: t}
	}

	date := &models.BundleDate{BundleID: bundle.ID, Date: day}
	if err := r.repo.CreateBundleDate(ctx, date); err != nil {
		return nil, false, err
	}
	if r.logg != nil {
		logCtx := r.logg.WithFields(ctx, map[string]any{"bundle": bundle.Name, "date": day.Format("2006-01-02")})
		r.logg.Info(logCtx, "auto-created bundle cohort date")
	}

	if r.calendar != nil {
		if err := r.calendar.CreateBundleInvite(ctx, bundle.Name, date, true); err != nil && r.logg != nil {
			r.logg.Error(ctx, "bundle calendar invite failed", err)
		}
	}
	return date, true, nil
}

// Calendar invite results are recorded on the occurrence row and never block
// registration.
func (r *Resolver) sendWebinarInvite(ctx context.Context, webinarName string, date *models.WebinarDate) {
	if r.calendar == nil {
		return
	}

	sentAt := r.now().UTC()
	date.CalendarInviteSentAt = &sentAt

	err := r.calendar.CreateWebinarInvite(ctx, webinarName, date, true)
	success := err == nil
	date.CalendarInviteSuccess = &success
	if err != nil {
		date.CalendarInviteError = err.Error()
		if r.logg != nil {
			r.logg.Error(ctx, "webinar calendar invite failed", err)
		}
	}

	if updateErr := r.repo.UpdateWebinarDate(ctx, date); updateErr != nil && r.logg != nil {
		r.logg.Error(ctx, "persist calendar invite status", updateErr)
	}
}
