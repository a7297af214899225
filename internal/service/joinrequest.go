package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/audit"
	"github.com/kartalink/circle-service/internal/domain"
)

type JoinRequestService struct {
	circles     domain.CircleRepository
	memberships domain.MembershipRepository
	requests    domain.JoinRequestRepository
	users       domain.UserDirectory
	aud         *audit.Logger
}

func NewJoinRequestService(circles domain.CircleRepository, memberships domain.MembershipRepository, requests domain.JoinRequestRepository, users domain.UserDirectory, aud *audit.Logger) *JoinRequestService {
	return &JoinRequestService{
		circles:     circles,
		memberships: memberships,
		requests:    requests,
		users:       users,
		aud:         aud,
	}
}

// Request files an unauthenticated ask-to-join against a private circle.
// Public circles take the join operation instead.
func (s *JoinRequestService) Request(ctx context.Context, traceID string, circleID uuid.UUID, email, message string) (domain.JoinRequest, error) {
	circle, err := s.circles.GetCircle(ctx, circleID)
	if err != nil {
		return domain.JoinRequest{}, err
	}
	if circle.IsPublic {
		return domain.JoinRequest{}, domain.ErrCircleIsPublic
	}

	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.JoinRequest{}, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}

	// A known user who already holds a live membership gets the same answer
	// a duplicate join would.
	if u, err := s.users.FindUserByEmail(ctx, email); err != nil {
		return domain.JoinRequest{}, err
	} else if u != nil {
		m, err := s.memberships.GetMembership(ctx, circleID, u.ID)
		if err != nil && !errors.Is(err, domain.ErrMembershipNotFound) {
			return domain.JoinRequest{}, err
		}
		if err == nil && m.Status != domain.MembershipRejected {
			return domain.JoinRequest{}, domain.ErrAlreadyMember
		}
	}

	jr, err := s.requests.CreateJoinRequest(ctx, traceID, domain.JoinRequest{
		ID:       uuid.New(),
		CircleID: circleID,
		Email:    email,
		Message:  message,
		Status:   domain.JoinRequestPending,
	})
	if err != nil {
		return domain.JoinRequest{}, err
	}
	if s.aud != nil {
		s.aud.JoinRequestCreated(traceID, circleID, email)
	}
	return jr, nil
}

// Review applies the admin decision. Approval creates the membership right
// away when the email maps to a user; otherwise the approval is stored and
// the membership materializes on the email's first ClaimEmail.
func (s *JoinRequestService) Review(ctx context.Context, traceID string, requestID, actorID uuid.UUID, decision domain.ReviewDecision) (domain.JoinRequest, *domain.Membership, error) {
	jr, err := s.requests.GetJoinRequest(ctx, requestID)
	if err != nil {
		return domain.JoinRequest{}, nil, err
	}
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, jr.CircleID, actorID, "join_request.review"); err != nil {
		return domain.JoinRequest{}, nil, err
	}

	var matched *uuid.UUID
	if decision == domain.DecisionApprove {
		u, err := s.users.FindUserByEmail(ctx, jr.Email)
		if err != nil {
			return domain.JoinRequest{}, nil, err
		}
		if u != nil {
			matched = &u.ID
		}
	}

	reviewed, membership, err := s.requests.ReviewJoinRequest(ctx, traceID, requestID, decision, matched)
	if err != nil {
		return domain.JoinRequest{}, nil, err
	}
	if s.aud != nil {
		s.aud.JoinRequestReviewed(traceID, requestID, actorID, decision)
		if membership != nil {
			s.aud.MembershipCreated(traceID, membership.CircleID, membership.UserID, membership.Status)
		}
	}
	return reviewed, membership, nil
}

// List is the admin review queue for a circle.
func (s *JoinRequestService) List(ctx context.Context, traceID string, circleID, actorID uuid.UUID) ([]domain.JoinRequest, error) {
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, circleID, actorID, "join_request.list"); err != nil {
		return nil, err
	}
	return s.requests.ListJoinRequests(ctx, circleID)
}
