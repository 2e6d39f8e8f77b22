package attendees

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/awesometech/webinar-backoffice/pkg/db"
	"github.com/awesometech/webinar-backoffice/pkg/db/models"
	"github.com/awesometech/webinar-backoffice/pkg/enums"
)

// Scope identifies what an attendee registered against.
type Scope struct {
	Kind enums.AttendeeKind
	ID   uuid.UUID
}

// ScopeWebinarDate scopes a registration to a scheduled occurrence.
func ScopeWebinarDate(id uuid.UUID) Scope {
	return Scope{Kind: enums.AttendeeKindRegular, ID: id}
}

// ScopeWebinar scopes an on-demand registration to the webinar itself.
func ScopeWebinar(id uuid.UUID) Scope {
	return Scope{Kind: enums.AttendeeKindOnDemand, ID: id}
}

// ScopeBundleDate scopes a registration to a bundle cohort date.
func ScopeBundleDate(id uuid.UUID) Scope {
	return Scope{Kind: enums.AttendeeKindBundle, ID: id}
}

type upsertRepository interface {
	FindByScope(ctx context.Context, kind enums.AttendeeKind, scopeID uuid.UUID, email string) (*models.Attendee, error)
	Create(ctx context.Context, attendee *models.Attendee) error
	Save(ctx context.Context, attendee *models.Attendee) error
}

// Upserter implements the registration get-or-create semantics: an existing
// active row has its name fields refreshed, a soft-deleted row is restored
// with fresh names, anything else becomes a new row.
type Upserter struct {
	repo upsertRepository
}

func NewUpserter(repo upsertRepository) (*Upserter, error) {
	if repo == nil {
		return nil, fmt.Errorf("attendee repository required")
	}
	return &Upserter{repo: repo}, nil
}

// Upsert registers (first, last, email, org) under scope. The created flag is
// true only for a brand new row; restores and refreshes count as updates.
func (u *Upserter) Upsert(ctx context.Context, scope Scope, firstName, lastName, email, organization string) (*models.Attendee, bool, error) {
	existing, err := u.repo.FindByScope(ctx, scope.Kind, scope.ID, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return u.refresh(ctx, existing, firstName, lastName, organization)
	}

	attendee := &models.Attendee{
		Kind:           scope.Kind,
		FirstName:      firstName,
		LastName:       lastName,
		Email:          email,
		Organization:   organization,
		CRMSyncPending: true,
	}
	switch scope.Kind {
	case enums.AttendeeKindRegular:
		id := scope.ID
		attendee.WebinarDateID = &id
	case enums.AttendeeKindOnDemand:
		id := scope.ID
		attendee.WebinarID = &id
	case enums.AttendeeKindBundle:
		id := scope.ID
		attendee.BundleDateID = &id
	default:
		return nil, false, fmt.Errorf("invalid attendee scope kind %q", scope.Kind)
	}

	if err := u.repo.Create(ctx, attendee); err != nil {
		// A concurrent registration can hit the partial unique index first;
		// fall back to updating the row that won.
		if db.IsUniqueViolation(err, "") {
			winner, findErr := u.repo.FindByScope(ctx, scope.Kind, scope.ID, email)
			if findErr != nil {
				return nil, false, findErr
			}
			if winner != nil {
				return u.refresh(ctx, winner, firstName, lastName, organization)
			}
		}
		return nil, false, err
	}
	return attendee, true, nil
}

func (u *Upserter) refresh(ctx context.Context, attendee *models.Attendee, firstName, lastName, organization string) (*models.Attendee, bool, error) {
	attendee.FirstName = firstName
	attendee.LastName = lastName
	if organization != "" {
		attendee.Organization = organization
	}
	if attendee.DeletedAt.Valid {
		attendee.DeletedAt.Valid = false
	}
	if err := u.repo.Save(ctx, attendee); err != nil {
		return nil, false, err
	}
	return attendee, false, nil
}
