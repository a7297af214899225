package domain

import "errors"

var (
	// Policy mismatches.
	ErrForbiddenDirectJoin = errors.New("private circle requires an invitation or join request")
	ErrCircleIsPublic      = errors.New("public circle does not take join requests")

	// Authorization and state machine.
	ErrNotAuthorized     = errors.New("actor lacks the required role in this circle")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrOwnerCannotLeave  = errors.New("circle owner cannot leave or be removed")

	// Idempotency guards.
	ErrAlreadyMember              = errors.New("already a member of this circle")
	ErrDuplicatePendingInvitation = errors.New("a pending invitation already exists for this email")
	ErrDuplicatePendingRequest    = errors.New("a pending join request already exists for this email")

	// Capacity.
	ErrEventFull              = errors.New("event is full")
	ErrEventClosed            = errors.New("event is closed for registration")
	ErrCapacityBelowConfirmed = errors.New("capacity cannot drop below the admitted count")

	// Lookups.
	ErrCircleNotFound       = errors.New("circle not found")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrJoinRequestNotFound  = errors.New("join request not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrTicketNotFound       = errors.New("ticket not found")

	// Broadcast and RSVP input.
	ErrMessageTooLong    = errors.New("broadcast message exceeds the word limit")
	ErrInvalidRSVPStatus = errors.New("rsvp status is not one of the accepted values")

	// Input validation (wrapped with detail by constructors).
	ErrValidation = errors.New("validation failed")

	// Infrastructure.
	ErrCacheMiss = errors.New("cache miss")
	// ErrConflict surfaces after the bounded retry on serialization/deadlock
	// failures is exhausted. Callers may retry the whole request.
	ErrConflict = errors.New("write conflict, retry the request")
)
