package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
	"github.com/dmitrijs2005/ticketdesk/internal/logging"
	"github.com/dmitrijs2005/ticketdesk/internal/server/auth"
	"github.com/dmitrijs2005/ticketdesk/internal/server/events"
	"github.com/dmitrijs2005/ticketdesk/internal/server/mail"
	"github.com/dmitrijs2005/ticketdesk/internal/server/models"
	"github.com/dmitrijs2005/ticketdesk/internal/server/repositories/tickets"
	"github.com/go-playground/validator/v10"
)

const (
	// maxCreateAttempts bounds id regeneration on collision.
	maxCreateAttempts = 5

	ManualCancelReason = "Manually cancelled by admin."
	ManualVerifyName   = "Manually Verified"
)

// VerifyInput is the project intake a client submits to verify a ticket.
type VerifyInput struct {
	Name           string `json:"name" validate:"required,min=2"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone" validate:"required,min=5"`
	WebsiteType    string `json:"websiteType" validate:"required,min=1"`
	Budget         string `json:"budget" validate:"required,min=2"`
	HasDomain      string `json:"hasDomain" validate:"required,oneof=Yes No"`
	HasHosting     string `json:"hasHosting" validate:"required,oneof=Yes No"`
	ProjectDetails string `json:"projectDetails" validate:"required,min=20"`
}

func (in *VerifyInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.WebsiteType = strings.TrimSpace(in.WebsiteType)
	in.Budget = strings.TrimSpace(in.Budget)
	in.HasDomain = strings.TrimSpace(in.HasDomain)
	in.HasHosting = strings.TrimSpace(in.HasHosting)
	in.ProjectDetails = strings.TrimSpace(in.ProjectDetails)
}

// CancelInput is a client cancellation request. Identity must be the email
// or phone recorded at verification when the ticket is Verified.
type CancelInput struct {
	Reason   string `json:"reason" validate:"required,min=10"`
	Identity string `json:"identity"`
}

// Authorizer validates an admin session token.
type Authorizer interface {
	Authorize(token string) (*auth.Claims, error)
}

// TicketOptions carries the non-collaborator settings of TicketService.
type TicketOptions struct {
	AllowManualVerify bool
	PublicBaseURL     string
}

// TicketService owns the ticket state machine. Every transition re-reads the
// ticket, checks its status, and commits with a compare-and-set on status so
// a concurrent change surfaces as common.ErrAlreadyProcessed.
type TicketService struct {
	repo      tickets.Repository
	authz     Authorizer
	mailer    mail.Sender
	templates *mail.Templates
	events    events.Publisher
	log       logging.Logger
	validate  *validator.Validate
	opts      TicketOptions

	now   func() time.Time
	newID func() (string, error)
}

func NewTicketService(
	repo tickets.Repository,
	authz Authorizer,
	mailer mail.Sender,
	templates *mail.Templates,
	publisher events.Publisher,
	log logging.Logger,
	opts TicketOptions,
) *TicketService {
	if log == nil {
		log = logging.Nop()
	}
	return &TicketService{
		repo:      repo,
		authz:     authz,
		mailer:    mailer,
		templates: templates,
		events:    publisher,
		log:       log.With("module", "tickets"),
		validate:  newValidator(),
		opts:      opts,
		now:       time.Now,
		newID:     common.NewTicketID,
	}
}

// Create opens a new Pending ticket.
func (s *TicketService) Create(ctx context.Context, session string) (*models.Ticket, error) {
	if err := s.authorize(session); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, fmt.Errorf("%w: generate ticket id: %w", common.ErrorInternal, err)
		}
		t := &models.Ticket{ID: id, Status: models.StatusPending, CreatedAt: s.timestamp()}
		err = s.repo.Create(ctx, t)
		if errors.Is(err, tickets.ErrDuplicateID) {
			s.log.Warn(ctx, "ticket id collision", "ticket_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		s.log.Info(ctx, "ticket created", "ticket_id", id)
		s.publish(ctx, events.TicketCreated, t)
		return t, nil
	}
	return nil, fmt.Errorf("%w: could not allocate a unique ticket id", common.ErrorInternal)
}

// Get returns a ticket by id.
func (s *TicketService) Get(ctx context.Context, id string) (*models.Ticket, error) {
	return s.repo.Get(ctx, id)
}

// List returns all tickets, newest first.
func (s *TicketService) List(ctx context.Context, session string) ([]*models.Ticket, error) {
	if err := s.authorize(session); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// Verify records the client's project intake and moves the ticket from
// Pending to Verified, then emails a confirmation to the client.
func (s *TicketService) Verify(ctx context.Context, id string, in VerifyInput) (*models.Ticket, error) {
	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return nil, invalidInput(err)
	}

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusPending {
		return nil, common.ErrAlreadyProcessed
	}

	now := s.timestamp()
	t, err = s.transition(ctx, t, map[string]any{
		"status":         models.StatusVerified,
		"clientName":     in.Name,
		"clientEmail":    in.Email,
		"clientPhone":    in.Phone,
		"websiteType":    in.WebsiteType,
		"budget":         in.Budget,
		"hasDomain":      in.HasDomain,
		"hasHosting":     in.HasHosting,
		"projectDetails": in.ProjectDetails,
		"verifiedAt":     now,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "ticket verified", "ticket_id", t.ID)
	s.publish(ctx, events.TicketVerified, t)

	if err := s.notify(ctx, t, s.templates.TicketVerified); err != nil {
		return t, err
	}
	return t, nil
}

// Cancel lets a client cancel a Pending ticket, or a Verified one when they
// prove they are the client by presenting the recorded email or phone.
func (s *TicketService) Cancel(ctx context.Context, id string, in CancelInput) (*models.Ticket, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	in.Identity = strings.TrimSpace(in.Identity)
	if err := s.validate.Struct(in); err != nil {
		return nil, invalidInput(err)
	}

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, common.ErrAlreadyProcessed
	}
	if t.Status == models.StatusVerified && !t.HasIdentity(in.Identity) {
		s.log.Warn(ctx, "cancel identity mismatch", "ticket_id", t.ID)
		return nil, common.ErrIdentityMismatch
	}

	t, err = s.transition(ctx, t, map[string]any{
		"status":             models.StatusCancelled,
		"cancellationReason": in.Reason,
		"cancelledAt":        s.timestamp(),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "ticket cancelled", "ticket_id", t.ID, "by", "client")
	s.publish(ctx, events.TicketCancelled, t)

	if t.ClientEmail == "" {
		return t, nil
	}
	err = s.notify(ctx, t, func(tk *models.Ticket) (mail.Message, error) {
		return s.templates.TicketCancelled(tk, in.Reason)
	})
	return t, err
}

// Complete moves a Verified ticket to Completed.
func (s *TicketService) Complete(ctx context.Context, session, id string) (*models.Ticket, error) {
	if err := s.authorize(session); err != nil {
		return nil, err
	}

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusVerified {
		return nil, common.ErrAlreadyProcessed
	}

	t, err = s.transition(ctx, t, map[string]any{
		"status":      models.StatusCompleted,
		"completedAt": s.timestamp(),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "ticket completed", "ticket_id", t.ID)
	s.publish(ctx, events.TicketCompleted, t)
	return t, nil
}

// SendDeliveryEmail notifies the client that a Completed project was
// delivered. Each call sends; the ticket is not modified.
func (s *TicketService) SendDeliveryEmail(ctx context.Context, session, id string) error {
	if err := s.authorize(session); err != nil {
		return err
	}

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != models.StatusCompleted {
		return common.ErrAlreadyProcessed
	}
	if t.ClientEmail == "" {
		return fmt.Errorf("%w: ticket has no client email", common.ErrInvalidInput)
	}

	msg, err := s.templates.ProjectDelivered(t, s.ticketURL(t.ID))
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error(ctx, "delivery email failed", "ticket_id", t.ID, "error", err)
		return mailError(err)
	}
	s.log.Info(ctx, "delivery email sent", "ticket_id", t.ID)
	s.publish(ctx, events.TicketDelivered, t)
	return nil
}

// Delete removes a ticket regardless of its state.
func (s *TicketService) Delete(ctx context.Context, session, id string) error {
	if err := s.authorize(session); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info(ctx, "ticket deleted", "ticket_id", id)
	s.publish(ctx, events.TicketDeleted, &models.Ticket{ID: id})
	return nil
}

// ForceCancel cancels a Pending or Verified ticket on the admin's authority.
// No identity check and no email.
func (s *TicketService) ForceCancel(ctx context.Context, session, id string) (*models.Ticket, error) {
	if err := s.authorize(session); err != nil {
		return nil, err
	}

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, common.ErrAlreadyProcessed
	}

	t, err = s.transition(ctx, t, map[string]any{
		"status":             models.StatusCancelled,
		"cancellationReason": ManualCancelReason,
		"cancelledAt":        s.timestamp(),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "ticket cancelled", "ticket_id", t.ID, "by", "admin")
	s.publish(ctx, events.TicketCancelled, t)
	return t, nil
}

// ForceVerify marks a Pending ticket Verified without client intake. It is
// disabled unless AllowManualVerify is set, and flags the record with
// manuallyVerified so it is never mistaken for real intake data.
func (s *TicketService) ForceVerify(ctx context.Context, session, id string) (*models.Ticket, error) {
	if err := s.authorize(session); err != nil {
		return nil, err
	}
	if !s.opts.AllowManualVerify {
		return nil, fmt.Errorf("%w: manual verification is disabled", common.ErrInvalidInput)
	}

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusPending {
		return nil, common.ErrAlreadyProcessed
	}

	t, err = s.transition(ctx, t, map[string]any{
		"status":           models.StatusVerified,
		"clientName":       ManualVerifyName,
		"manuallyVerified": true,
		"verifiedAt":       s.timestamp(),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "ticket verified", "ticket_id", t.ID, "by", "admin")
	s.publish(ctx, events.TicketVerified, t)
	return t, nil
}

func (s *TicketService) authorize(session string) error {
	_, err := s.authz.Authorize(session)
	return err
}

// transition commits fields with a compare-and-set on t's current status and
// returns the updated ticket.
func (s *TicketService) transition(ctx context.Context, t *models.Ticket, fields map[string]any) (*models.Ticket, error) {
	ok, err := s.repo.Transition(ctx, t.ID, t.Status, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Info(ctx, "lost transition race", "ticket_id", t.ID, "from", t.Status)
		return nil, common.ErrAlreadyProcessed
	}
	return applyFields(t, fields), nil
}

// notify renders and sends a client email for a committed change. A failure
// is logged and reported as common.ErrNotificationFailed.
func (s *TicketService) notify(ctx context.Context, t *models.Ticket, render func(*models.Ticket) (mail.Message, error)) error {
	msg, err := render(t)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.log.Error(ctx, "ticket email failed", "ticket_id", t.ID, "status", t.Status, "error", err)
		return fmt.Errorf("%w: %w", common.ErrNotificationFailed, err)
	}
	return nil
}

func (s *TicketService) publish(ctx context.Context, event string, t *models.Ticket) {
	if s.events != nil {
		s.events.PublishTicketEvent(ctx, event, t)
	}
}

func (s *TicketService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *TicketService) ticketURL(id string) string {
	if s.opts.PublicBaseURL == "" {
		return ""
	}
	return strings.TrimRight(s.opts.PublicBaseURL, "/") + "/ticket/" + id
}

// applyFields returns a copy of t with the transition fields set, mirroring
// the merge the store performed.
func applyFields(t *models.Ticket, fields map[string]any) *models.Ticket {
	out := *t
	for k, v := range fields {
		switch k {
		case "status":
			out.Status = v.(models.TicketStatus)
		case "clientName":
			out.ClientName = v.(string)
		case "clientEmail":
			out.ClientEmail = v.(string)
		case "clientPhone":
			out.ClientPhone = v.(string)
		case "websiteType":
			out.WebsiteType = v.(string)
		case "budget":
			out.Budget = v.(string)
		case "hasDomain":
			out.HasDomain = v.(string)
		case "hasHosting":
			out.HasHosting = v.(string)
		case "projectDetails":
			out.ProjectDetails = v.(string)
		case "cancellationReason":
			out.CancellationReason = v.(string)
		case "manuallyVerified":
			out.ManuallyVerified = v.(bool)
		case "verifiedAt":
			ts := v.(time.Time)
			out.VerifiedAt = &ts
		case "cancelledAt":
			ts := v.(time.Time)
			out.CancelledAt = &ts
		case "completedAt":
			ts := v.(time.Time)
			out.CompletedAt = &ts
		}
	}
	return &out
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func invalidInput(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return fmt.Errorf("%w: invalid fields: %s", common.ErrInvalidInput, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
}
