package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/audit"
	"github.com/kartalink/circle-service/internal/domain"
)

type CircleService struct {
	circles domain.CircleRepository
	aud     *audit.Logger
}

func NewCircleService(circles domain.CircleRepository, aud *audit.Logger) *CircleService {
	return &CircleService{circles: circles, aud: aud}
}

// Create stores the circle together with the owner's approved admin
// membership, so a circle is never observable without its owner.
func (s *CircleService) Create(ctx context.Context, traceID string, ownerID uuid.UUID, name, username string, isPublic, requireApproval bool) (domain.Circle, error) {
	c, err := domain.NewCircle(ownerID, name, username, isPublic, requireApproval, time.Now())
	if err != nil {
		return domain.Circle{}, err
	}

	created, err := s.circles.CreateCircle(ctx, traceID, c)
	if err != nil {
		return domain.Circle{}, err
	}
	if s.aud != nil {
		s.aud.CircleCreated(traceID, created.ID, created.OwnerID)
	}
	return created, nil
}

func (s *CircleService) Get(ctx context.Context, id uuid.UUID) (domain.Circle, error) {
	return s.circles.GetCircle(ctx, id)
}

func (s *CircleService) ListMine(ctx context.Context, userID uuid.UUID) ([]domain.Circle, error) {
	return s.circles.ListCirclesForUser(ctx, userID)
}
