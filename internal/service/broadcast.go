package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/audit"
	"github.com/kartalink/circle-service/internal/domain"
)

type BroadcastService struct {
	memberships domain.MembershipRepository
	aud         *audit.Logger
}

func NewBroadcastService(memberships domain.MembershipRepository, aud *audit.Logger) *BroadcastService {
	return &BroadcastService{memberships: memberships, aud: aud}
}

// Send fans a message out to every approved member of the circle. The
// repository queues one notification per recipient in the same transaction,
// so a partial fan-out is never visible. Returns the recipient count.
func (s *BroadcastService) Send(ctx context.Context, traceID string, circleID, senderID uuid.UUID, message string) (int, error) {
	if _, err := requireCircleAdmin(ctx, s.memberships, s.aud, traceID, circleID, senderID, "broadcast.send"); err != nil {
		return 0, err
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return 0, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	if domain.WordCount(message) > domain.BroadcastWordLimit {
		return 0, domain.ErrMessageTooLong
	}

	n, err := s.memberships.BroadcastToApproved(ctx, traceID, circleID, senderID, message)
	if err != nil {
		return 0, err
	}
	if s.aud != nil {
		s.aud.BroadcastQueued(traceID, circleID, senderID, n)
	}
	return n, nil
}
