package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/audit"
	"github.com/kartalink/circle-service/internal/domain"
)

type MembershipService struct {
	circles     domain.CircleRepository
	memberships domain.MembershipRepository
	aud         *audit.Logger
}

func NewMembershipService(circles domain.CircleRepository, memberships domain.MembershipRepository, aud *audit.Logger) *MembershipService {
	return &MembershipService{circles: circles, memberships: memberships, aud: aud}
}

// Join applies the circle's visibility policy. Private circles never take a
// direct join; public circles admit immediately or as pending depending on
// require_approval.
func (s *MembershipService) Join(ctx context.Context, traceID string, circleID, userID uuid.UUID) (domain.Membership, error) {
	circle, err := s.circles.GetCircle(ctx, circleID)
	if err != nil {
		return domain.Membership{}, err
	}
	if !circle.IsPublic {
		return domain.Membership{}, domain.ErrForbiddenDirectJoin
	}

	status := domain.MembershipApproved
	if circle.RequireApproval {
		status = domain.MembershipPending
	}

	m, err := s.memberships.CreateMembership(ctx, traceID, domain.Membership{
		ID:       uuid.New(),
		CircleID: circleID,
		UserID:   userID,
		Status:   status,
	})
	if err != nil {
		return domain.Membership{}, err
	}
	if s.aud != nil {
		s.aud.MembershipCreated(traceID, circleID, userID, m.Status)
	}
	return m, nil
}

// Review lets a circle admin approve or reject a pending membership.
func (s *MembershipService) Review(ctx context.Context, traceID string, membershipID, actorID uuid.UUID, decision domain.ReviewDecision) (domain.Membership, error) {
	target, err := s.memberships.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return domain.Membership{}, err
	}
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, target.CircleID, actorID, "membership.review"); err != nil {
		return domain.Membership{}, err
	}

	reviewed, err := s.memberships.ReviewMembership(ctx, traceID, membershipID, decision)
	if err != nil {
		return domain.Membership{}, err
	}
	if s.aud != nil {
		s.aud.MembershipReviewed(traceID, membershipID, actorID, decision)
	}
	return reviewed, nil
}

// Leave removes the caller's own approved membership. The owner can never
// leave; ownership transfer is not a thing this engine does.
func (s *MembershipService) Leave(ctx context.Context, traceID string, circleID, userID uuid.UUID) error {
	circle, err := s.circles.GetCircle(ctx, circleID)
	if err != nil {
		return err
	}
	if circle.OwnerID == userID {
		return domain.ErrOwnerCannotLeave
	}

	m, err := s.memberships.GetMembership(ctx, circleID, userID)
	if err != nil {
		return err
	}
	if m.Status != domain.MembershipApproved {
		return domain.ErrInvalidTransition
	}

	if err := s.memberships.DeleteMembership(ctx, traceID, m.ID); err != nil {
		return err
	}
	if s.aud != nil {
		s.aud.MembershipRemoved(traceID, m.ID, userID, false)
	}
	return nil
}

// Remove is the admin-forced variant of Leave. It works on any non-owner
// membership regardless of status.
func (s *MembershipService) Remove(ctx context.Context, traceID string, membershipID, actorID uuid.UUID) error {
	target, err := s.memberships.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return err
	}
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, target.CircleID, actorID, "membership.remove"); err != nil {
		return err
	}

	circle, err := s.circles.GetCircle(ctx, target.CircleID)
	if err != nil {
		return err
	}
	if circle.OwnerID == target.UserID {
		return domain.ErrOwnerCannotLeave
	}

	if err := s.memberships.DeleteMembership(ctx, traceID, membershipID); err != nil {
		return err
	}
	if s.aud != nil {
		s.aud.MembershipRemoved(traceID, membershipID, actorID, true)
	}
	return nil
}

// ListMembers is an admin view over the member roster, optionally filtered
// by status.
func (s *MembershipService) ListMembers(ctx context.Context, traceID string, circleID, actorID uuid.UUID, status *domain.MembershipStatus) ([]domain.Membership, error) {
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, circleID, actorID, "membership.list"); err != nil {
		return nil, err
	}
	return s.memberships.ListMembers(ctx, circleID, status)
}

// IsMember is a convenience for callers that only need a yes/no.
func (s *MembershipService) IsMember(ctx context.Context, circleID, userID uuid.UUID) (bool, error) {
	m, err := s.memberships.GetMembership(ctx, circleID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return false, nil
		}
		return false, err
	}
	return m.Status == domain.MembershipApproved, nil
}
