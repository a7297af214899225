package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/domain"
)

func (s *Store) CreateInvitation(ctx context.Context, traceID string, inv domain.Invitation) (domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, existing := range s.invitations {
		if existing.CircleID == inv.CircleID && existing.Email == inv.Email &&
			existing.EffectiveStatus(now) == domain.InvitationPending {
			return domain.Invitation{}, domain.ErrDuplicatePendingInvitation
		}
	}

	inv.CreatedAt = now
	inv.UpdatedAt = now
	s.invitations[inv.ID] = inv
	return inv, nil
}

func (s *Store) GetInvitation(ctx context.Context, id uuid.UUID) (domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return domain.Invitation{}, domain.ErrInvitationNotFound
	}
	inv.Status = inv.EffectiveStatus(time.Now())
	return inv, nil
}

func (s *Store) CancelInvitation(ctx context.Context, traceID string, id uuid.UUID) (domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return domain.Invitation{}, domain.ErrInvitationNotFound
	}
	now := time.Now()
	if inv.EffectiveStatus(now) != domain.InvitationPending {
		return domain.Invitation{}, domain.ErrInvalidTransition
	}

	inv.Status = domain.InvitationCancelled
	inv.UpdatedAt = now.UTC()
	s.invitations[id] = inv
	return inv, nil
}

func (s *Store) AcceptInvitation(ctx context.Context, traceID string, id, userID uuid.UUID) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return domain.Membership{}, domain.ErrInvitationNotFound
	}
	now := time.Now()
	if inv.EffectiveStatus(now) != domain.InvitationPending {
		return domain.Membership{}, domain.ErrInvalidTransition
	}

	inv.Status = domain.InvitationAccepted
	inv.UpdatedAt = now.UTC()
	s.invitations[id] = inv

	return s.createMembershipLocked(domain.Membership{
		ID:       uuid.New(),
		CircleID: inv.CircleID,
		UserID:   userID,
		Status:   domain.MembershipApproved,
	})
}

func (s *Store) ListPendingInvitationsByEmail(ctx context.Context, email string) ([]domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []domain.Invitation
	for _, inv := range s.invitations {
		if inv.Email == domain.NormalizeEmail(email) && inv.EffectiveStatus(now) == domain.InvitationPending {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *Store) ListInvitations(ctx context.Context, circleID uuid.UUID) ([]domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []domain.Invitation
	for _, inv := range s.invitations {
		if inv.CircleID != circleID {
			continue
		}
		inv.Status = inv.EffectiveStatus(now)
		out = append(out, inv)
	}
	return out, nil
}

func (s *Store) CreateJoinRequest(ctx context.Context, traceID string, jr domain.JoinRequest) (domain.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.requests {
		if existing.CircleID == jr.CircleID && existing.Email == jr.Email &&
			existing.Status == domain.JoinRequestPending {
			return domain.JoinRequest{}, domain.ErrDuplicatePendingRequest
		}
	}

	now := time.Now().UTC()
	jr.CreatedAt = now
	jr.UpdatedAt = now
	s.requests[jr.ID] = jr
	return jr, nil
}

func (s *Store) GetJoinRequest(ctx context.Context, id uuid.UUID) (domain.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jr, ok := s.requests[id]
	if !ok {
		return domain.JoinRequest{}, domain.ErrJoinRequestNotFound
	}
	return jr, nil
}

func (s *Store) ReviewJoinRequest(ctx context.Context, traceID string, id uuid.UUID, decision domain.ReviewDecision, matchedUser *uuid.UUID) (domain.JoinRequest, *domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jr, ok := s.requests[id]
	if !ok {
		return domain.JoinRequest{}, nil, domain.ErrJoinRequestNotFound
	}
	if jr.Status != domain.JoinRequestPending {
		return domain.JoinRequest{}, nil, domain.ErrInvalidTransition
	}

	now := time.Now().UTC()
	jr.UpdatedAt = now

	if decision == domain.DecisionReject {
		jr.Status = domain.JoinRequestRejected
		s.requests[id] = jr
		return jr, nil, nil
	}

	jr.Status = domain.JoinRequestApproved
	s.requests[id] = jr

	// No account yet: the approval waits for the email's first claim.
	if matchedUser == nil {
		return jr, nil, nil
	}

	m, err := s.createMembershipLocked(domain.Membership{
		ID:       uuid.New(),
		CircleID: jr.CircleID,
		UserID:   *matchedUser,
		Status:   domain.MembershipApproved,
	})
	if err != nil {
		if err == domain.ErrAlreadyMember {
			return jr, nil, nil
		}
		return domain.JoinRequest{}, nil, err
	}
	return jr, &m, nil
}

func (s *Store) ListApprovedRequestsByEmail(ctx context.Context, email string) ([]domain.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.JoinRequest
	for _, jr := range s.requests {
		if jr.Email == domain.NormalizeEmail(email) && jr.Status == domain.JoinRequestApproved {
			out = append(out, jr)
		}
	}
	return out, nil
}

func (s *Store) ListJoinRequests(ctx context.Context, circleID uuid.UUID) ([]domain.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.JoinRequest
	for _, jr := range s.requests {
		if jr.CircleID == circleID {
			out = append(out, jr)
		}
	}
	return out, nil
}
