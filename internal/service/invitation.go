package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/audit"
	"github.com/kartalink/circle-service/internal/domain"
)

type InvitationService struct {
	memberships domain.MembershipRepository
	invitations domain.InvitationRepository
	requests    domain.JoinRequestRepository
	users       domain.UserDirectory
	aud         *audit.Logger
}

func NewInvitationService(memberships domain.MembershipRepository, invitations domain.InvitationRepository, requests domain.JoinRequestRepository, users domain.UserDirectory, aud *audit.Logger) *InvitationService {
	return &InvitationService{
		memberships: memberships,
		invitations: invitations,
		requests:    requests,
		users:       users,
		aud:         aud,
	}
}

// InviteOutcome is either a pending invitation (unknown email) or a
// directly created membership (the invited email already has an account).
type InviteOutcome struct {
	Invitation *domain.Invitation
	Membership *domain.Membership
}

// Invite issues a time-limited invitation. When the email already belongs
// to a user the invitation is skipped and the approved membership is
// created directly, so no invitation can dangle for a known account.
func (s *InvitationService) Invite(ctx context.Context, traceID string, circleID, actorID uuid.UUID, email string) (InviteOutcome, error) {
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, circleID, actorID, "invitation.create"); err != nil {
		return InviteOutcome{}, err
	}

	email = domain.NormalizeEmail(email)
	if email == "" {
		return InviteOutcome{}, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}

	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return InviteOutcome{}, err
	}
	if existing != nil {
		m, err := s.memberships.CreateMembership(ctx, traceID, domain.Membership{
			ID:       uuid.New(),
			CircleID: circleID,
			UserID:   existing.ID,
			Status:   domain.MembershipApproved,
		})
		if err != nil {
			return InviteOutcome{}, err
		}
		if s.aud != nil {
			s.aud.MembershipCreated(traceID, circleID, existing.ID, m.Status)
		}
		return InviteOutcome{Membership: &m}, nil
	}

	now := time.Now()
	inv, err := s.invitations.CreateInvitation(ctx, traceID, domain.Invitation{
		ID:        uuid.New(),
		CircleID:  circleID,
		Email:     email,
		Status:    domain.InvitationPending,
		ExpiresAt: now.Add(domain.DefaultInvitationTTL).UTC(),
	})
	if err != nil {
		return InviteOutcome{}, err
	}
	if s.aud != nil {
		s.aud.InvitationCreated(traceID, circleID, actorID, email)
	}
	return InviteOutcome{Invitation: &inv}, nil
}

// Cancel withdraws a pending invitation. Accepted, cancelled and lazily
// expired invitations refuse the transition.
func (s *InvitationService) Cancel(ctx context.Context, traceID string, invitationID, actorID uuid.UUID) (domain.Invitation, error) {
	inv, err := s.invitations.GetInvitation(ctx, invitationID)
	if err != nil {
		return domain.Invitation{}, err
	}
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, inv.CircleID, actorID, "invitation.cancel"); err != nil {
		return domain.Invitation{}, err
	}

	cancelled, err := s.invitations.CancelInvitation(ctx, traceID, invitationID)
	if err != nil {
		return domain.Invitation{}, err
	}
	if s.aud != nil {
		s.aud.InvitationCancelled(traceID, invitationID, actorID)
	}
	return cancelled, nil
}

// List is the admin view over a circle's invitations, with lazy expiry
// already applied to the statuses.
func (s *InvitationService) List(ctx context.Context, traceID string, circleID, actorID uuid.UUID) ([]domain.Invitation, error) {
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, circleID, actorID, "invitation.list"); err != nil {
		return nil, err
	}
	return s.invitations.ListInvitations(ctx, circleID)
}

// ClaimEmail runs when the auth collaborator reports a login/registration
// for an email. Pending invitations are accepted first (explicit admin
// intent wins), then previously approved join requests materialize into
// memberships. Both steps are idempotent against existing memberships.
func (s *InvitationService) ClaimEmail(ctx context.Context, traceID string, user domain.User) ([]domain.Membership, error) {
	email := domain.NormalizeEmail(user.Email)
	if email == "" || user.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id and email are required", domain.ErrValidation)
	}

	var out []domain.Membership
	claimed := make(map[uuid.UUID]bool)

	invs, err := s.invitations.ListPendingInvitationsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	for _, inv := range invs {
		m, err := s.invitations.AcceptInvitation(ctx, traceID, inv.ID, user.ID)
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyMember) {
				claimed[inv.CircleID] = true
				continue
			}
			return out, err
		}
		claimed[inv.CircleID] = true
		out = append(out, m)
		if s.aud != nil {
			s.aud.InvitationAccepted(traceID, inv.ID, user.ID)
		}
	}

	reqs, err := s.requests.ListApprovedRequestsByEmail(ctx, email)
	if err != nil {
		return out, err
	}
	for _, jr := range reqs {
		if claimed[jr.CircleID] {
			continue
		}
		m, err := s.memberships.CreateMembership(ctx, traceID, domain.Membership{
			ID:       uuid.New(),
			CircleID: jr.CircleID,
			UserID:   user.ID,
			Status:   domain.MembershipApproved,
		})
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyMember) {
				continue
			}
			return out, err
		}
		claimed[jr.CircleID] = true
		out = append(out, m)
		if s.aud != nil {
			s.aud.MembershipCreated(traceID, jr.CircleID, user.ID, m.Status)
		}
	}

	return out, nil
}
