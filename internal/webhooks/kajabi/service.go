package kajabiwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/awesometech/webinar-backoffice/internal/attendees"
	"github.com/awesometech/webinar-backoffice/internal/conference"
	"github.com/awesometech/webinar-backoffice/internal/dateparse"
	"github.com/awesometech/webinar-backoffice/internal/occurrences"
	"github.com/awesometech/webinar-backoffice/pkg/db/models"
	"github.com/awesometech/webinar-backoffice/pkg/enums"
	pkgerrors "github.com/awesometech/webinar-backoffice/pkg/errors"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
)

const errorEmailSubject = "Kajabi Webhook Processing Error"

type offeringsRepository interface {
	ListWebinars(ctx context.Context) ([]models.Webinar, error)
	ListBundles(ctx context.Context) ([]models.Bundle, error)
}

type offeringMatcher interface {
	MatchWebinar(ctx context.Context, title string, webinars []models.Webinar) *models.Webinar
	MatchBundle(ctx context.Context, title string, bundles []models.Bundle) *models.Bundle
}

type occurrenceResolver interface {
	ResolveWebinarDate(ctx context.Context, webinar *models.Webinar, t time.Time) (*models.WebinarDate, bool, error)
	ResolveBundleDate(ctx context.Context, bundle *models.Bundle, t time.Time) (*models.BundleDate, bool, error)
}

type occurrenceGetter interface {
	GetWebinarDate(ctx context.Context, id uuid.UUID) (*models.WebinarDate, error)
}

type attendeeUpserter interface {
	Upsert(ctx context.Context, scope attendees.Scope, firstName, lastName, email, organization string) (*models.Attendee, bool, error)
}

type attendeeStore interface {
	Save(ctx context.Context, attendee *models.Attendee) error
	RecordActivation(ctx context.Context, id uuid.UUID, sentAt time.Time, success bool, errMsg string) error
}

type activationSender interface {
	Send(ctx context.Context, hookURL, email, firstName, lastName string, activationType enums.ActivationType) (bool, string)
}

type conferenceRegistrar interface {
	Register(ctx context.Context, meetingID, firstName, lastName, email string) (*conference.Registration, error)
}

type errorMailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type dateParser interface {
	Parse(raw string) dateparse.Result
}

type ServiceParams struct {
	Offerings      offeringsRepository
	Matcher        offeringMatcher
	Resolver       occurrenceResolver
	OccurrenceRepo occurrenceGetter
	Upserter       attendeeUpserter
	AttendeeStore  attendeeStore
	Parser         dateParser
	Logger         *logger.Logger

	// Activation, Conference, and Mailer are best-effort side channels and
	// may be nil when the deployment has not configured them.
	Activation activationSender
	Conference conferenceRegistrar
	Mailer     errorMailer

	DefaultErrorEmail string
}

// Service turns decoded webhook calls into attendee registrations.
type Service struct {
	offerings      offeringsRepository
	matcher        offeringMatcher
	resolver       occurrenceResolver
	occurrenceRepo occurrenceGetter
	upserter       attendeeUpserter
	attendeeStore  attendeeStore
	parser         dateParser
	logg           *logger.Logger

	activation activationSender
	conference conferenceRegistrar
	mailer     errorMailer

	defaultErrorEmail string
	now               func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Offerings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "offerings repo required")
	}
	if params.Matcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "offering matcher required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "occurrence resolver required")
	}
	if params.OccurrenceRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "occurrence repo required")
	}
	if params.Upserter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "attendee upserter required")
	}
	if params.AttendeeStore == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "attendee store required")
	}
	if params.Parser == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "date parser required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		offerings:         params.Offerings,
		matcher:           params.Matcher,
		resolver:          params.Resolver,
		occurrenceRepo:    params.OccurrenceRepo,
		upserter:          params.Upserter,
		attendeeStore:     params.AttendeeStore,
		parser:            params.Parser,
		logg:              params.Logger,
		activation:        params.Activation,
		conference:        params.Conference,
		mailer:            params.Mailer,
		defaultErrorEmail: params.DefaultErrorEmail,
		now:               time.Now,
	}, nil
}

// Inbound is one decoded webhook call.
type Inbound struct {
	Data  map[string]any
	Query url.Values

	// RawBody is echoed into operator error emails verbatim.
	RawBody string
}

// Response is the wire contract with the marketing platform. The shape
// predates this service and must stay stable.
type Response struct {
	Status     string     `json:"status"`
	Message    string     `json:"message"`
	AttendeeID *uuid.UUID `json:"attendee_id,omitempty"`
}

// Outcome is everything the transport layer needs to answer and log the call.
type Outcome struct {
	StatusCode   int
	Response     Response
	Success      bool
	ErrorMessage string
}

func successOutcome(message string, attendeeID uuid.UUID) Outcome {
	id := attendeeID
	return Outcome{
		StatusCode: 200,
		Response:   Response{Status: "success", Message: message, AttendeeID: &id},
		Success:    true,
	}
}

func failureOutcome(status int, message string) Outcome {
	return Outcome{
		StatusCode:   status,
		Response:     Response{Status: "error", Message: message},
		Success:      false,
		ErrorMessage: message,
	}
}

// Process routes the call to the direct or platform-event flow. Direct mode
// is selected by webinar_date_id arriving in the body or the query string.
func (s *Service) Process(ctx context.Context, in Inbound) Outcome {
	if _, ok := in.Data["webinar_date_id"]; ok || in.Query.Get("webinar_date_id") != "" {
		return s.processDirect(ctx, in)
	}
	return s.processEvent(ctx, in)
}

// ---- direct mode ----

func (s *Service) processDirect(ctx context.Context, in Inbound) Outcome {
	param := func(key string) string {
		if v, ok := in.Data[key].(string); ok && v != "" {
			return v
		}
		return in.Query.Get(key)
	}

	rawDateID := param("webinar_date_id")
	firstName := param("first_name")
	lastName := param("last_name")
	email := param("email")
	organization := param("organization")

	if rawDateID == "" || firstName == "" || email == "" {
		return failureOutcome(400, "Missing required fields: webinar_date_id, first_name, email")
	}

	notFound := failureOutcome(404, fmt.Sprintf("Webinar date not found: %s", rawDateID))
	dateID, err := uuid.Parse(rawDateID)
	if err != nil {
		return notFound
	}
	date, err := s.occurrenceRepo.GetWebinarDate(ctx, dateID)
	if err != nil {
		return s.unhandled(ctx, in, nil, err)
	}
	if date == nil || date.Webinar == nil {
		return notFound
	}
	webinar := date.Webinar

	if date.OnDemand {
		attendee, created, err := s.upserter.Upsert(ctx, attendees.ScopeWebinar(webinar.ID), firstName, lastName, email, organization)
		if err != nil {
			return s.unhandled(ctx, in, webinar, err)
		}
		suffix := s.activateOnDemand(ctx, webinar, attendee)
		message := fmt.Sprintf("%s on-demand attendee for %s%s", createdLabel(created), webinar.Name, suffix)
		return successOutcome(message, attendee.ID)
	}

	attendee, created, err := s.upserter.Upsert(ctx, attendees.ScopeWebinarDate(date.ID), firstName, lastName, email, organization)
	if err != nil {
		return s.unhandled(ctx, in, webinar, err)
	}
	suffix := s.registerConference(ctx, date, attendee)
	message := fmt.Sprintf("%s attendee for %s on %s%s",
		createdLabel(created), webinar.Name, formatDateTime(date.DateTime), suffix)
	return successOutcome(message, attendee.ID)
}

// activateOnDemand fires the activation hook once per attendee and reports
// the status suffix for the response message.
func (s *Service) activateOnDemand(ctx context.Context, webinar *models.Webinar, attendee *models.Attendee) string {
	if attendee.ActivationSentAt == nil && s.activation != nil && webinar.ActivationHookURL != "" {
		sentAt := s.now().UTC()
		ok, msg := s.activation.Send(ctx, webinar.ActivationHookURL,
			attendee.Email, attendee.FirstName, attendee.LastName, enums.ActivationTypeWebinar)

		errMsg := ""
		if !ok {
			errMsg = msg
		}
		if err := s.attendeeStore.RecordActivation(ctx, attendee.ID, sentAt, ok, errMsg); err != nil {
			s.logg.Error(ctx, "record activation outcome", err)
		}
		attendee.ActivationSentAt = &sentAt
		attendee.ActivationSuccess = &ok
		attendee.ActivationError = errMsg
	}

	switch {
	case attendee.ActivationSentAt != nil && attendee.ActivationSuccess != nil && *attendee.ActivationSuccess:
		return " (on-demand - activated immediately)"
	case attendee.ActivationSentAt != nil:
		return " (on-demand - activation failed)"
	default:
		return " (on-demand - no Zoom registration needed)"
	}
}

// registerConference adds the attendee to the provider meeting when the
// occurrence has one and the attendee is not registered yet. Outcomes land on
// the attendee row; the webhook succeeds regardless.
func (s *Service) registerConference(ctx context.Context, date *models.WebinarDate, attendee *models.Attendee) string {
	if date.MeetingID == "" || attendee.ConferenceRegistrantID != "" || s.conference == nil {
		return ""
	}

	reg, err := s.conference.Register(ctx, date.MeetingID, attendee.FirstName, attendee.LastName, attendee.Email)
	suffix := ""
	if err == nil {
		registeredAt := s.now().UTC()
		attendee.ConferenceRegistrantID = reg.RegistrantID
		attendee.ConferenceJoinURL = reg.JoinURL
		attendee.ConferenceInviteLink = reg.InviteLink
		attendee.ConferenceRegisteredAt = &registeredAt
		attendee.ConferenceRegistrationErr = ""
		suffix = " and registered in Zoom"
	} else {
		attendee.ConferenceRegistrationErr = err.Error()
		var rejection *conference.RejectionError
		if errors.As(err, &rejection) {
			suffix = " (Zoom registration failed)"
		} else {
			suffix = " (Zoom registration error)"
		}
		s.logg.Error(ctx, "conference registration failed", err)
	}

	if saveErr := s.attendeeStore.Save(ctx, attendee); saveErr != nil {
		s.logg.Error(ctx, "persist conference registration outcome", saveErr)
	}
	return suffix
}

// ---- platform event mode ----

func (s *Service) processEvent(ctx context.Context, in Inbound) Outcome {
	event, _ := in.Data["event"].(string)
	payload, _ := in.Data["payload"].(map[string]any)
	if payload == nil {
		payload = map[string]any{}
	}

	var title string
	var fromForm bool
	switch event {
	case "form_submission.created":
		title, _ = payload["form_title"].(string)
		fromForm = true
	case "purchase.created":
		title, _ = payload["offer_title"].(string)
		fromForm = false
	default:
		return failureOutcome(400, fmt.Sprintf("Unsupported event type: %s", event))
	}

	bundles, err := s.offerings.ListBundles(ctx)
	if err != nil {
		return s.unhandled(ctx, in, nil, err)
	}
	if bundle := s.matcher.MatchBundle(ctx, title, bundles); bundle != nil {
		return s.processBundle(ctx, in, bundle, payload, fromForm)
	}

	webinars, err := s.offerings.ListWebinars(ctx)
	if err != nil {
		return s.unhandled(ctx, in, nil, err)
	}
	webinar := s.matcher.MatchWebinar(ctx, title, webinars)
	if webinar == nil {
		source := "offer"
		if fromForm {
			source = "form"
		}
		return failureOutcome(400, fmt.Sprintf("No matching webinar or bundle found for %s: %s", source, title))
	}

	firstName, lastName, email, dateStr := extractFields(payload, fromForm, webinar.FormDateField, webinar.CheckoutDateField)
	if firstName == "" || email == "" || dateStr == "" {
		return failureOutcome(400, "Missing required fields: first_name, email, or date")
	}

	parsed := s.parser.Parse(dateStr)
	switch parsed.Kind {
	case dateparse.KindInvalid:
		return failureOutcome(400, fmt.Sprintf("Could not parse date: %s", dateStr))
	case dateparse.KindOnDemand:
		attendee, created, err := s.upserter.Upsert(ctx, attendees.ScopeWebinar(webinar.ID), firstName, lastName, email, "")
		if err != nil {
			return s.unhandled(ctx, in, webinar, err)
		}
		suffix := s.activateOnDemand(ctx, webinar, attendee)
		message := fmt.Sprintf("%s on-demand attendee for %s%s", createdLabel(created), webinar.Name, suffix)
		return successOutcome(message, attendee.ID)
	}

	date, wasCreated, err := s.resolver.ResolveWebinarDate(ctx, webinar, parsed.Time)
	if err != nil {
		var noOccurrence *occurrences.NoOccurrenceError
		if errors.As(err, &noOccurrence) {
			message := fmt.Sprintf("Could not find or create webinar date for: %s", formatDateTime(parsed.Time))
			s.notifyError(ctx, errorEmail(webinar.ErrorNotificationEmail, s.defaultErrorEmail), message, in)
			return failureOutcome(400, message)
		}
		return s.unhandled(ctx, in, webinar, err)
	}

	attendee, created, err := s.upserter.Upsert(ctx, attendees.ScopeWebinarDate(date.ID), firstName, lastName, email, "")
	if err != nil {
		return s.unhandled(ctx, in, webinar, err)
	}

	message := fmt.Sprintf("%s attendee for %s on %s%s",
		createdLabel(created), webinar.Name, formatDateTime(date.DateTime), autoCreatedLabel(wasCreated))
	return successOutcome(message, attendee.ID)
}

func (s *Service) processBundle(ctx context.Context, in Inbound, bundle *models.Bundle, payload map[string]any, fromForm bool) Outcome {
	firstName, lastName, email, dateStr := extractFields(payload, fromForm, bundle.FormDateField, bundle.CheckoutDateField)
	if firstName == "" || email == "" || dateStr == "" {
		return failureOutcome(400, "Missing required fields: first_name, email, or date")
	}

	parsed := s.parser.Parse(dateStr)
	if parsed.Kind != dateparse.KindTimestamp {
		return failureOutcome(400, fmt.Sprintf("Could not parse date: %s", dateStr))
	}

	date, wasCreated, err := s.resolver.ResolveBundleDate(ctx, bundle, parsed.Time)
	if err != nil {
		var noOccurrence *occurrences.NoOccurrenceError
		if errors.As(err, &noOccurrence) {
			message := fmt.Sprintf("Could not find or create bundle date for: %s", formatDateTime(parsed.Time))
			s.notifyError(ctx, errorEmail(bundle.ErrorNotificationEmail, s.defaultErrorEmail), message, in)
			return failureOutcome(400, message)
		}
		return s.unhandledBundle(ctx, in, bundle, err)
	}

	attendee, created, err := s.upserter.Upsert(ctx, attendees.ScopeBundleDate(date.ID), firstName, lastName, email, "")
	if err != nil {
		return s.unhandledBundle(ctx, in, bundle, err)
	}

	message := fmt.Sprintf("%s bundle attendee for %s on %s%s",
		createdLabel(created), bundle.Name, date.Date.Format("2006-01-02"), autoCreatedLabel(wasCreated))
	return successOutcome(message, attendee.ID)
}

// ---- shared helpers ----

func extractFields(payload map[string]any, fromForm bool, formDateField, checkoutDateField string) (firstName, lastName, email, dateStr string) {
	str := func(key string) string {
		v, _ := payload[key].(string)
		return v
	}
	if fromForm {
		// Form submissions carry no last name.
		return str("First Name"), "", str("Email"), str(formDateField)
	}
	return str("member_first_name"), str("member_last_name"), str("member_email"), str(checkoutDateField)
}

func (s *Service) unhandled(ctx context.Context, in Inbound, webinar *models.Webinar, err error) Outcome {
	message := fmt.Sprintf("Error processing webhook: %s", err)
	s.logg.Error(ctx, "webhook processing failed", err)

	to := s.defaultErrorEmail
	if webinar != nil {
		to = errorEmail(webinar.ErrorNotificationEmail, s.defaultErrorEmail)
	}
	s.notifyError(ctx, to, message, in)

	out := failureOutcome(500, err.Error())
	out.ErrorMessage = message
	return out
}

func (s *Service) unhandledBundle(ctx context.Context, in Inbound, bundle *models.Bundle, err error) Outcome {
	message := fmt.Sprintf("Error processing bundle webhook: %s", err)
	s.logg.Error(ctx, "bundle webhook processing failed", err)

	s.notifyError(ctx, errorEmail(bundle.ErrorNotificationEmail, s.defaultErrorEmail), message, in)

	out := failureOutcome(500, err.Error())
	out.ErrorMessage = message
	return out
}

// notifyError emails the operator. Delivery failure is logged and swallowed.
func (s *Service) notifyError(ctx context.Context, to, errorMessage string, in Inbound) {
	if s.mailer == nil || to == "" {
		return
	}

	webhookJSON := in.RawBody
	if encoded, err := json.MarshalIndent(in.Data, "", "  "); err == nil {
		webhookJSON = string(encoded)
	}
	body := fmt.Sprintf(`
An error occurred while processing a Kajabi webhook:

%s

Original webhook data:
%s

Please investigate this issue manually.
`, errorMessage, webhookJSON)

	if err := s.mailer.Send(ctx, to, errorEmailSubject, body); err != nil {
		s.logg.Error(ctx, "send webhook error email", err)
	}
}

func errorEmail(configured, fallback string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	return fallback
}

func createdLabel(created bool) string {
	if created {
		return "Created"
	}
	return "Updated"
}

func autoCreatedLabel(wasCreated bool) string {
	if wasCreated {
		return " (date auto-created)"
	}
	return ""
}

func formatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05-07:00")
}
