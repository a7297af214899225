package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/domain"
)

func (s *Store) CreateEvent(ctx context.Context, traceID string, e domain.Event) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.circles[e.CircleID]; !ok {
		return domain.Event{}, domain.ErrCircleNotFound
	}
	s.events[e.ID] = e
	return e, nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return e, nil
}

func (s *Store) UpdateEventCapacity(ctx context.Context, traceID string, id uuid.UUID, maxParticipants int) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	if maxParticipants < s.countAdmittedLocked(id) {
		return domain.Event{}, domain.ErrCapacityBelowConfirmed
	}

	e.MaxParticipants = maxParticipants
	e.UpdatedAt = time.Now().UTC()
	s.events[id] = e
	return e, nil
}

func (s *Store) Register(ctx context.Context, traceID string, reg domain.Registration) (domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[reg.EventID]
	if !ok {
		return domain.Registration{}, domain.ErrEventNotFound
	}

	// count-then-insert under the same lock keeps the ceiling exact
	if s.countAdmittedLocked(reg.EventID) >= e.MaxParticipants {
		return domain.Registration{}, domain.ErrEventFull
	}

	now := time.Now().UTC()
	reg.CreatedAt = now
	reg.UpdatedAt = now
	s.registrations[reg.ID] = reg
	s.byTicket[reg.TicketNumber] = reg.ID
	return reg, nil
}

func (s *Store) UpdateRegistrationStatus(ctx context.Context, traceID string, id uuid.UUID, status domain.RegistrationStatus) (domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[id]
	if !ok {
		return domain.Registration{}, domain.ErrRegistrationNotFound
	}
	if reg.Status == status {
		return domain.Registration{}, fmt.Errorf("%w: registration already %s", domain.ErrInvalidTransition, status)
	}

	// reviving a cancelled registration competes for capacity again
	if !reg.Status.Admitted() && status.Admitted() {
		e, ok := s.events[reg.EventID]
		if !ok {
			return domain.Registration{}, domain.ErrEventNotFound
		}
		if s.countAdmittedLocked(reg.EventID) >= e.MaxParticipants {
			return domain.Registration{}, domain.ErrEventFull
		}
	}

	reg.Status = status
	reg.UpdatedAt = time.Now().UTC()
	s.registrations[id] = reg
	return reg, nil
}

func (s *Store) GetRegistration(ctx context.Context, id uuid.UUID) (domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[id]
	if !ok {
		return domain.Registration{}, domain.ErrRegistrationNotFound
	}
	return reg, nil
}

func (s *Store) GetRegistrationByTicket(ctx context.Context, ticket string) (domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byTicket[ticket]
	if !ok {
		return domain.Registration{}, domain.ErrTicketNotFound
	}
	return s.registrations[id], nil
}

func (s *Store) SubmitRSVP(ctx context.Context, ticket string, rsvpStatus string) (domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byTicket[ticket]
	if !ok {
		return domain.Registration{}, domain.ErrTicketNotFound
	}

	reg := s.registrations[id]
	reg.RSVPStatus = &rsvpStatus
	reg.UpdatedAt = time.Now().UTC()
	s.registrations[id] = reg
	return reg, nil
}

func (s *Store) CountAdmitted(ctx context.Context, eventID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return 0, domain.ErrEventNotFound
	}
	return s.countAdmittedLocked(eventID), nil
}

func (s *Store) countAdmittedLocked(eventID uuid.UUID) int {
	n := 0
	for _, reg := range s.registrations {
		if reg.EventID == eventID && reg.Status.Admitted() {
			n++
		}
	}
	return n
}

func (s *Store) ListRegistrations(ctx context.Context, eventID uuid.UUID) ([]domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Registration
	for _, reg := range s.registrations {
		if reg.EventID == eventID {
			out = append(out, reg)
		}
	}
	return out, nil
}

func (s *Store) AttachProof(ctx context.Context, id uuid.UUID, url string) (domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[id]
	if !ok {
		return domain.Registration{}, domain.ErrRegistrationNotFound
	}
	reg.ProofURL = &url
	reg.UpdatedAt = time.Now().UTC()
	s.registrations[id] = reg
	return reg, nil
}
