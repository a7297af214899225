package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/audit"
	"github.com/kartalink/circle-service/internal/domain"
)

// requireCircleAdmin resolves the actor's membership in the circle and
// demands approved admin rights. Failures map to ErrNotAuthorized so the
// caller cannot distinguish "not a member" from "member without rights".
func requireCircleAdmin(ctx context.Context, memberships domain.MembershipRepository, aud *audit.Logger, traceID string, circleID, actorID uuid.UUID, op string) (domain.Membership, error) {
	m, err := memberships.GetMembership(ctx, circleID, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			if aud != nil {
				aud.AuthorizationDenied(traceID, actorID, op)
			}
			return domain.Membership{}, domain.ErrNotAuthorized
		}
		return domain.Membership{}, err
	}
	if !m.CanModerate() {
		if aud != nil {
			aud.AuthorizationDenied(traceID, actorID, op)
		}
		return domain.Membership{}, domain.ErrNotAuthorized
	}
	return m, nil
}
