package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kartalink/circle-service/internal/domain"
)

const joinRequestColumns = `id, circle_id, email, message, status, created_at, updated_at`

func scanJoinRequest(row pgx.Row) (domain.JoinRequest, error) {
	var jr domain.JoinRequest
	err := row.Scan(
		&jr.ID, &jr.CircleID, &jr.Email, &jr.Message, &jr.Status,
		&jr.CreatedAt, &jr.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.JoinRequest{}, domain.ErrJoinRequestNotFound
	}
	return jr, err
}

func (r *Repository) CreateJoinRequest(ctx context.Context, traceID string, jr domain.JoinRequest) (domain.JoinRequest, error) {
	out, err := scanJoinRequest(r.pool.QueryRow(ctx, `
		INSERT INTO join_requests (id, circle_id, email, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', now(), now())
		RETURNING `+joinRequestColumns+`
	`, jr.ID, jr.CircleID, jr.Email, jr.Message))
	if isUniqueViolation(err) {
		return domain.JoinRequest{}, domain.ErrDuplicatePendingRequest
	}
	if err != nil {
		return domain.JoinRequest{}, err
	}
	return out, nil
}

func (r *Repository) GetJoinRequest(ctx context.Context, id uuid.UUID) (domain.JoinRequest, error) {
	return scanJoinRequest(r.pool.QueryRow(ctx, `
		SELECT `+joinRequestColumns+`
		FROM join_requests
		WHERE id = $1
	`, id))
}

// ReviewJoinRequest settles a pending request. Approval with a matched user
// also creates the approved membership in the same transaction; without a
// match the approval is recorded and the membership waits for ClaimEmail.
func (r *Repository) ReviewJoinRequest(ctx context.Context, traceID string, id uuid.UUID, decision domain.ReviewDecision, matchedUser *uuid.UUID) (domain.JoinRequest, *domain.Membership, error) {
	var (
		outJR domain.JoinRequest
		outM  *domain.Membership
	)
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		outM = nil
		current, err := scanJoinRequest(tx.QueryRow(ctx, `
			SELECT `+joinRequestColumns+`
			FROM join_requests
			WHERE id = $1
			FOR UPDATE
		`, id))
		if err != nil {
			return err
		}
		if current.Status != domain.JoinRequestPending {
			return domain.ErrInvalidTransition
		}

		status := domain.JoinRequestRejected
		if decision == domain.DecisionApprove {
			status = domain.JoinRequestApproved
		}

		outJR, err = scanJoinRequest(tx.QueryRow(ctx, `
			UPDATE join_requests
			SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+joinRequestColumns+`
		`, id, status))
		if err != nil {
			return err
		}

		if status != domain.JoinRequestApproved || matchedUser == nil {
			return nil
		}

		m, err := createMembershipTx(ctx, tx, domain.Membership{
			CircleID: current.CircleID,
			UserID:   *matchedUser,
			Status:   domain.MembershipApproved,
		})
		if err != nil {
			// The requester joined through another path in the meantime.
			// The approval still stands.
			if errors.Is(err, domain.ErrAlreadyMember) {
				return nil
			}
			return err
		}
		outM = &m
		return nil
	})
	if err != nil {
		return domain.JoinRequest{}, nil, err
	}
	return outJR, outM, nil
}

func (r *Repository) ListApprovedRequestsByEmail(ctx context.Context, email string) ([]domain.JoinRequest, error) {
	return r.listJoinRequests(ctx, `
		SELECT `+joinRequestColumns+`
		FROM join_requests
		WHERE email = $1 AND status = 'approved'
		ORDER BY created_at
	`, domain.NormalizeEmail(email))
}

func (r *Repository) ListJoinRequests(ctx context.Context, circleID uuid.UUID) ([]domain.JoinRequest, error) {
	return r.listJoinRequests(ctx, `
		SELECT `+joinRequestColumns+`
		FROM join_requests
		WHERE circle_id = $1
		ORDER BY created_at
	`, circleID)
}

func (r *Repository) listJoinRequests(ctx context.Context, query string, arg any) ([]domain.JoinRequest, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JoinRequest
	for rows.Next() {
		var jr domain.JoinRequest
		if err := rows.Scan(
			&jr.ID, &jr.CircleID, &jr.Email, &jr.Message, &jr.Status,
			&jr.CreatedAt, &jr.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, jr)
	}
	return out, rows.Err()
}
