package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an opaque record owned by the external auth collaborator. The
// engine only ever reads it through the UserDirectory port.
type User struct {
	ID    uuid.UUID
	Name  string
	Email string
}

type Circle struct {
	ID       uuid.UUID
	Name     string
	Username string // unique handle, optional
	IsPublic bool
	// RequireApproval only matters for public circles: members join as
	// pending and wait for admin review.
	RequireApproval bool
	OwnerID         uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewCircle(ownerID uuid.UUID, name, username string, isPublic, requireApproval bool, now time.Time) (Circle, error) {
	name = strings.TrimSpace(name)
	username = strings.ToLower(strings.TrimSpace(username))

	if ownerID == uuid.Nil {
		return Circle{}, fmt.Errorf("%w: owner is required", ErrValidation)
	}
	if name == "" || len(name) > 120 {
		return Circle{}, fmt.Errorf("%w: name is required and must be <= 120 chars", ErrValidation)
	}
	if len(username) > 60 {
		return Circle{}, fmt.Errorf("%w: username must be <= 60 chars", ErrValidation)
	}

	return Circle{
		ID:              uuid.New(),
		Name:            name,
		Username:        username,
		IsPublic:        isPublic,
		RequireApproval: requireApproval,
		OwnerID:         ownerID,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}, nil
}

type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipApproved MembershipStatus = "approved"
	MembershipRejected MembershipStatus = "rejected"
)

type Membership struct {
	ID       uuid.UUID
	CircleID uuid.UUID
	UserID   uuid.UUID
	Status   MembershipStatus
	IsAdmin  bool
	JoinedAt *time.Time // set only once approved

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanModerate reports whether this membership grants admin rights over its
// circle.
func (m Membership) CanModerate() bool {
	return m.Status == MembershipApproved && m.IsAdmin
}

type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

func ParseReviewDecision(s string) (ReviewDecision, error) {
	switch ReviewDecision(strings.ToLower(strings.TrimSpace(s))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	default:
		return "", fmt.Errorf("%w: decision must be approve or reject", ErrValidation)
	}
}

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationCancelled InvitationStatus = "cancelled"
	InvitationExpired   InvitationStatus = "expired"
)

type Invitation struct {
	ID        uuid.UUID
	CircleID  uuid.UUID
	Email     string
	Status    InvitationStatus
	ExpiresAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveStatus applies lazy expiry: a pending invitation past its
// expires_at reads as expired without a background sweep ever touching the
// row.
func (i Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationPending && now.After(i.ExpiresAt) {
		return InvitationExpired
	}
	return i.Status
}

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

type JoinRequest struct {
	ID       uuid.UUID
	CircleID uuid.UUID
	Email    string
	Message  string
	Status   JoinRequestStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail is the single place email comparison rules live: trimmed,
// lowercased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
