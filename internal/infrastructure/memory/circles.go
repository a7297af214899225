package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/domain"
)

func (s *Store) CreateCircle(ctx context.Context, traceID string, c domain.Circle) (domain.Circle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.circles[c.ID] = c

	// owner membership lands in the same critical section, so the circle is
	// never observable without it
	joined := now
	owner := domain.Membership{
		ID:        uuid.New(),
		CircleID:  c.ID,
		UserID:    c.OwnerID,
		Status:    domain.MembershipApproved,
		IsAdmin:   true,
		JoinedAt:  &joined,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.memberships[owner.ID] = owner
	return c, nil
}

func (s *Store) GetCircle(ctx context.Context, id uuid.UUID) (domain.Circle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.circles[id]
	if !ok {
		return domain.Circle{}, domain.ErrCircleNotFound
	}
	return c, nil
}

func (s *Store) ListCirclesForUser(ctx context.Context, userID uuid.UUID) ([]domain.Circle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Circle
	for _, m := range s.memberships {
		if m.UserID == userID && m.Status == domain.MembershipApproved {
			if c, ok := s.circles[m.CircleID]; ok {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (s *Store) GetMembership(ctx context.Context, circleID, userID uuid.UUID) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findMembershipLocked(circleID, userID)
}

func (s *Store) findMembershipLocked(circleID, userID uuid.UUID) (domain.Membership, error) {
	for _, m := range s.memberships {
		if m.CircleID == circleID && m.UserID == userID {
			return m, nil
		}
	}
	return domain.Membership{}, domain.ErrMembershipNotFound
}

func (s *Store) GetMembershipByID(ctx context.Context, id uuid.UUID) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memberships[id]
	if !ok {
		return domain.Membership{}, domain.ErrMembershipNotFound
	}
	return m, nil
}

func (s *Store) CreateMembership(ctx context.Context, traceID string, m domain.Membership) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createMembershipLocked(m)
}

func (s *Store) createMembershipLocked(m domain.Membership) (domain.Membership, error) {
	now := time.Now().UTC()

	if existing, err := s.findMembershipLocked(m.CircleID, m.UserID); err == nil {
		if existing.Status != domain.MembershipRejected {
			return domain.Membership{}, domain.ErrAlreadyMember
		}
		// a rejected row is reused rather than duplicated
		existing.Status = m.Status
		existing.UpdatedAt = now
		if m.Status == domain.MembershipApproved {
			joined := now
			existing.JoinedAt = &joined
		}
		s.memberships[existing.ID] = existing
		return existing, nil
	}

	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Status == domain.MembershipApproved {
		joined := now
		m.JoinedAt = &joined
	}
	s.memberships[m.ID] = m
	return m, nil
}

func (s *Store) ReviewMembership(ctx context.Context, traceID string, id uuid.UUID, decision domain.ReviewDecision) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memberships[id]
	if !ok {
		return domain.Membership{}, domain.ErrMembershipNotFound
	}
	if m.Status != domain.MembershipPending {
		return domain.Membership{}, domain.ErrInvalidTransition
	}

	now := time.Now().UTC()
	if decision == domain.DecisionApprove {
		m.Status = domain.MembershipApproved
		joined := now
		m.JoinedAt = &joined
	} else {
		m.Status = domain.MembershipRejected
	}
	m.UpdatedAt = now
	s.memberships[id] = m
	return m, nil
}

func (s *Store) DeleteMembership(ctx context.Context, traceID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memberships[id]; !ok {
		return domain.ErrMembershipNotFound
	}
	delete(s.memberships, id)
	return nil
}

func (s *Store) ListMembers(ctx context.Context, circleID uuid.UUID, status *domain.MembershipStatus) ([]domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Membership
	for _, m := range s.memberships {
		if m.CircleID != circleID {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) BroadcastToApproved(ctx context.Context, traceID string, circleID, senderID uuid.UUID, message string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.circles[circleID]; !ok {
		return 0, domain.ErrCircleNotFound
	}

	now := time.Now().UTC()
	n := 0
	for _, m := range s.memberships {
		if m.CircleID != circleID || m.Status != domain.MembershipApproved || m.UserID == senderID {
			continue
		}
		s.notifications = append(s.notifications, Notification{
			CircleID:    circleID,
			SenderID:    senderID,
			RecipientID: m.UserID,
			Message:     message,
			TraceID:     traceID,
			CreatedAt:   now,
		})
		n++
	}
	return n, nil
}
