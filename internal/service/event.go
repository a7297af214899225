package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/audit"
	"github.com/kartalink/circle-service/internal/domain"
)

type EventService struct {
	memberships domain.MembershipRepository
	events      domain.EventRepository
	cache       domain.CountCache
	proofs      domain.ProofStore
	aud         *audit.Logger
}

func NewEventService(memberships domain.MembershipRepository, events domain.EventRepository, cache domain.CountCache, proofs domain.ProofStore, aud *audit.Logger) *EventService {
	return &EventService{
		memberships: memberships,
		events:      events,
		cache:       cache,
		proofs:      proofs,
		aud:         aud,
	}
}

func (s *EventService) CreateEvent(ctx context.Context, traceID string, circleID, actorID uuid.UUID, title, description string, startsAt time.Time, maxParticipants int, requiresProof bool) (domain.Event, error) {
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, circleID, actorID, "event.create"); err != nil {
		return domain.Event{}, err
	}

	ev, err := domain.NewEvent(circleID, title, description, startsAt, maxParticipants, requiresProof, time.Now())
	if err != nil {
		return domain.Event{}, err
	}

	created, err := s.events.CreateEvent(ctx, traceID, ev)
	if err != nil {
		return domain.Event{}, err
	}
	if s.cache != nil {
		_ = s.cache.SetAdmittedCount(ctx, created.ID, 0)
	}
	return created, nil
}

func (s *EventService) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	return s.events.GetEvent(ctx, id)
}

// UpdateCapacity raises or lowers the ceiling. Lowering below the current
// admitted count is rejected rather than producing an overbooked-but-frozen
// event.
func (s *EventService) UpdateCapacity(ctx context.Context, traceID string, eventID, actorID uuid.UUID, maxParticipants int) (domain.Event, error) {
	ev, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, ev.CircleID, actorID, "event.update_capacity"); err != nil {
		return domain.Event{}, err
	}
	if maxParticipants < 1 {
		return domain.Event{}, fmt.Errorf("%w: max_participants must be >= 1", domain.ErrValidation)
	}

	updated, err := s.events.UpdateEventCapacity(ctx, traceID, eventID, maxParticipants)
	if err != nil {
		return domain.Event{}, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateAdmittedCount(ctx, eventID)
	}
	return updated, nil
}

// Register admits one registrant against the event ceiling. The actual
// count-and-insert is atomic inside the repository; everything here is
// policy: closed events refuse, payment-proof events admit as pending.
func (s *EventService) Register(ctx context.Context, traceID string, eventID uuid.UUID, name, email string) (domain.Registration, error) {
	name = strings.TrimSpace(name)
	email = domain.NormalizeEmail(email)
	if name == "" || email == "" {
		return domain.Registration{}, fmt.Errorf("%w: name and email are required", domain.ErrValidation)
	}

	ev, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Registration{}, err
	}
	if ev.Status == domain.EventPast {
		return domain.Registration{}, domain.ErrEventClosed
	}

	status := domain.RegistrationConfirmed
	if ev.RequiresPaymentProof {
		status = domain.RegistrationPending
	}

	reg, err := s.events.Register(ctx, traceID, domain.Registration{
		ID:           uuid.New(),
		EventID:      eventID,
		TicketNumber: domain.NewTicketNumber(),
		Name:         name,
		Email:        email,
		Status:       status,
	})
	if err != nil {
		return domain.Registration{}, err
	}

	// Best-effort: the next Count read repopulates from the store.
	if s.cache != nil {
		_ = s.cache.InvalidateAdmittedCount(ctx, eventID)
	}
	if s.aud != nil {
		s.aud.RegistrationAdmitted(traceID, eventID, reg.ID, reg.Status)
	}
	return reg, nil
}

// UpdateRegistrationStatus is the admin transition surface. The repository
// re-validates capacity when a cancelled registration moves back into an
// admitted state.
func (s *EventService) UpdateRegistrationStatus(ctx context.Context, traceID string, registrationID, actorID uuid.UUID, status domain.RegistrationStatus) (domain.Registration, error) {
	reg, err := s.events.GetRegistration(ctx, registrationID)
	if err != nil {
		return domain.Registration{}, err
	}
	ev, err := s.events.GetEvent(ctx, reg.EventID)
	if err != nil {
		return domain.Registration{}, err
	}
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, ev.CircleID, actorID, "registration.update_status"); err != nil {
		return domain.Registration{}, err
	}

	updated, err := s.events.UpdateRegistrationStatus(ctx, traceID, registrationID, status)
	if err != nil {
		return domain.Registration{}, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateAdmittedCount(ctx, reg.EventID)
	}
	if s.aud != nil {
		s.aud.RegistrationStatusChanged(traceID, registrationID, actorID, status)
	}
	return updated, nil
}

// Count serves the "N/Capacity" render. Cache first, store on miss; the
// value is advisory, admission authority stays with Register.
func (s *EventService) Count(ctx context.Context, eventID uuid.UUID) (int, error) {
	if s.cache != nil {
		// Any cache error, miss or otherwise, falls through to the store so a
		// redis outage never breaks the read path.
		if n, err := s.cache.GetAdmittedCount(ctx, eventID); err == nil {
			return n, nil
		}
	}

	n, err := s.events.CountAdmitted(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		_ = s.cache.SetAdmittedCount(ctx, eventID, n)
	}
	return n, nil
}

func (s *EventService) ListRegistrations(ctx context.Context, traceID string, eventID, actorID uuid.UUID) ([]domain.Registration, error) {
	ev, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, ev.CircleID, actorID, "registration.list"); err != nil {
		return nil, err
	}
	return s.events.ListRegistrations(ctx, eventID)
}

// SubmitRSVP records attendance intent. Possession of the ticket number is
// the whole credential; resubmission overwrites.
func (s *EventService) SubmitRSVP(ctx context.Context, traceID string, ticketNumber, rsvpStatus string) (domain.Registration, error) {
	if !domain.ValidRSVPStatus(rsvpStatus) {
		return domain.Registration{}, domain.ErrInvalidRSVPStatus
	}

	reg, err := s.events.SubmitRSVP(ctx, strings.TrimSpace(ticketNumber), rsvpStatus)
	if err != nil {
		return domain.Registration{}, err
	}
	if s.aud != nil {
		s.aud.RSVPRecorded(traceID, reg.ID, rsvpStatus)
	}
	return reg, nil
}

// AttachProof stores payment-proof bytes with the proof-store collaborator
// and records the resulting URL. The bytes are never inspected here.
func (s *EventService) AttachProof(ctx context.Context, traceID string, registrationID uuid.UUID, contentType string, data []byte) (domain.Registration, error) {
	if len(data) == 0 {
		return domain.Registration{}, fmt.Errorf("%w: proof payload is empty", domain.ErrValidation)
	}
	if _, err := s.events.GetRegistration(ctx, registrationID); err != nil {
		return domain.Registration{}, err
	}

	url, err := s.proofs.StoreProof(ctx, registrationID, contentType, data)
	if err != nil {
		return domain.Registration{}, err
	}
	return s.events.AttachProof(ctx, registrationID, url)
}
