package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CircleRepository owns circle rows. CreateCircle also writes the owner's
// approved admin membership in the same transaction, so the "exactly one
// owner, always approved admin" invariant holds from the first commit.
type CircleRepository interface {
	CreateCircle(ctx context.Context, traceID string, c Circle) (Circle, error)
	GetCircle(ctx context.Context, id uuid.UUID) (Circle, error)
	ListCirclesForUser(ctx context.Context, userID uuid.UUID) ([]Circle, error)
}

type MembershipRepository interface {
	GetMembership(ctx context.Context, circleID, userID uuid.UUID) (Membership, error)
	GetMembershipByID(ctx context.Context, id uuid.UUID) (Membership, error)

	// CreateMembership inserts the row, or reuses a rejected row for the
	// same (circle,user). A live row (pending/approved) fails with
	// ErrAlreadyMember. joined_at is set when the status is approved.
	CreateMembership(ctx context.Context, traceID string, m Membership) (Membership, error)

	// ReviewMembership moves pending -> approved|rejected. Any other source
	// status fails with ErrInvalidTransition.
	ReviewMembership(ctx context.Context, traceID string, id uuid.UUID, decision ReviewDecision) (Membership, error)

	DeleteMembership(ctx context.Context, traceID string, id uuid.UUID) error
	ListMembers(ctx context.Context, circleID uuid.UUID, status *MembershipStatus) ([]Membership, error)

	// BroadcastToApproved resolves the recipient set (approved members minus
	// the sender) and enqueues one notification per recipient in the same
	// transaction. Returns the recipient count.
	BroadcastToApproved(ctx context.Context, traceID string, circleID, senderID uuid.UUID, message string) (int, error)
}

type InvitationRepository interface {
	// CreateInvitation fails with ErrDuplicatePendingInvitation when a
	// pending, unexpired invitation already exists for (circle,email).
	CreateInvitation(ctx context.Context, traceID string, inv Invitation) (Invitation, error)
	GetInvitation(ctx context.Context, id uuid.UUID) (Invitation, error)

	// CancelInvitation moves pending -> cancelled; anything else (including
	// a lazily expired invitation) is ErrInvalidTransition.
	CancelInvitation(ctx context.Context, traceID string, id uuid.UUID) (Invitation, error)

	// AcceptInvitation marks the invitation accepted and creates the
	// approved membership in one transaction.
	AcceptInvitation(ctx context.Context, traceID string, id, userID uuid.UUID) (Membership, error)

	ListPendingInvitationsByEmail(ctx context.Context, email string) ([]Invitation, error)
	ListInvitations(ctx context.Context, circleID uuid.UUID) ([]Invitation, error)
}

type JoinRequestRepository interface {
	CreateJoinRequest(ctx context.Context, traceID string, jr JoinRequest) (JoinRequest, error)
	GetJoinRequest(ctx context.Context, id uuid.UUID) (JoinRequest, error)

	// ReviewJoinRequest moves pending -> approved|rejected. On approval with
	// a matched user the approved membership is created in the same
	// transaction; with no match the approval is recorded and membership is
	// deferred to a later ClaimEmail.
	ReviewJoinRequest(ctx context.Context, traceID string, id uuid.UUID, decision ReviewDecision, matchedUser *uuid.UUID) (JoinRequest, *Membership, error)

	ListApprovedRequestsByEmail(ctx context.Context, email string) ([]JoinRequest, error)
	ListJoinRequests(ctx context.Context, circleID uuid.UUID) ([]JoinRequest, error)
}

type EventRepository interface {
	CreateEvent(ctx context.Context, traceID string, e Event) (Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (Event, error)

	// UpdateEventCapacity rejects a new ceiling below the current admitted
	// count with ErrCapacityBelowConfirmed.
	UpdateEventCapacity(ctx context.Context, traceID string, id uuid.UUID, maxParticipants int) (Event, error)

	// Register admits the registration against the capacity ceiling. The
	// count check and insert are atomic with respect to concurrent callers;
	// a full event fails with ErrEventFull and leaves no row behind.
	Register(ctx context.Context, traceID string, reg Registration) (Registration, error)

	// UpdateRegistrationStatus applies an admin transition. Moving a
	// cancelled registration back into an admitted state re-validates the
	// ceiling and may fail with ErrEventFull.
	UpdateRegistrationStatus(ctx context.Context, traceID string, id uuid.UUID, status RegistrationStatus) (Registration, error)

	GetRegistration(ctx context.Context, id uuid.UUID) (Registration, error)
	GetRegistrationByTicket(ctx context.Context, ticket string) (Registration, error)

	// SubmitRSVP overwrites rsvp_status for the ticket; resubmission is
	// idempotent.
	SubmitRSVP(ctx context.Context, ticket string, rsvpStatus string) (Registration, error)

	CountAdmitted(ctx context.Context, eventID uuid.UUID) (int, error)
	ListRegistrations(ctx context.Context, eventID uuid.UUID) ([]Registration, error)
	AttachProof(ctx context.Context, id uuid.UUID, url string) (Registration, error)
}

// UserDirectory is the read-only identity collaborator. FindUserByEmail
// returns (nil, nil) for an unknown email.
type UserDirectory interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
}

// CountCache is a best-effort cache for the "N/Capacity" render; authority
// for admission always lives in EventRepository.Register.
type CountCache interface {
	GetAdmittedCount(ctx context.Context, eventID uuid.UUID) (int, error)
	SetAdmittedCount(ctx context.Context, eventID uuid.UUID, n int) error
	InvalidateAdmittedCount(ctx context.Context, eventID uuid.UUID) error

	AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error)
}

// ProofStore stores payment-proof bytes and returns a URL. The engine never
// inspects the content.
type ProofStore interface {
	StoreProof(ctx context.Context, registrationID uuid.UUID, contentType string, data []byte) (string, error)
}
