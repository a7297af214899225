package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventUpcoming EventStatus = "upcoming"
	EventPast     EventStatus = "past"
)

type Event struct {
	ID          uuid.UUID
	CircleID    uuid.UUID
	Title       string
	Description string
	StartsAt    time.Time
	// MaxParticipants is a hard ceiling on registrations in an admitted
	// state (pending or confirmed). Always >= 1.
	MaxParticipants int
	// RequiresPaymentProof makes new registrations land as pending until an
	// admin reviews the attached proof.
	RequiresPaymentProof bool
	Status               EventStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewEvent(circleID uuid.UUID, title, description string, startsAt time.Time, maxParticipants int, requiresProof bool, now time.Time) (Event, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if circleID == uuid.Nil {
		return Event{}, fmt.Errorf("%w: circle is required", ErrValidation)
	}
	if title == "" || len(title) > 120 {
		return Event{}, fmt.Errorf("%w: title is required and must be <= 120 chars", ErrValidation)
	}
	if len(description) > 4000 {
		return Event{}, fmt.Errorf("%w: description must be <= 4000 chars", ErrValidation)
	}
	if maxParticipants < 1 {
		return Event{}, fmt.Errorf("%w: max_participants must be >= 1", ErrValidation)
	}

	return Event{
		ID:                   uuid.New(),
		CircleID:             circleID,
		Title:                title,
		Description:          description,
		StartsAt:             startsAt.UTC(),
		MaxParticipants:      maxParticipants,
		RequiresPaymentProof: requiresProof,
		Status:               EventUpcoming,
		CreatedAt:            now.UTC(),
		UpdatedAt:            now.UTC(),
	}, nil
}

type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// Admitted reports whether the status counts against the event capacity.
func (s RegistrationStatus) Admitted() bool {
	return s == RegistrationPending || s == RegistrationConfirmed
}

func ParseRegistrationStatus(s string) (RegistrationStatus, error) {
	switch RegistrationStatus(strings.ToLower(strings.TrimSpace(s))) {
	case RegistrationPending:
		return RegistrationPending, nil
	case RegistrationConfirmed:
		return RegistrationConfirmed, nil
	case RegistrationCancelled:
		return RegistrationCancelled, nil
	default:
		return "", fmt.Errorf("%w: status must be pending, confirmed or cancelled", ErrValidation)
	}
}

type Registration struct {
	ID      uuid.UUID
	EventID uuid.UUID
	// TicketNumber is the sole credential for RSVP submission, so it is
	// generated from crypto/rand (see NewTicketNumber) and never sequential.
	TicketNumber string
	Name         string
	Email        string
	Status       RegistrationStatus
	RSVPStatus   *string
	ProofURL     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
