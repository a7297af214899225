package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kartalink/circle-service/internal/domain"
)

const membershipColumns = `id, circle_id, user_id, status, is_admin, joined_at, created_at, updated_at`

func scanMembership(row pgx.Row) (domain.Membership, error) {
	var m domain.Membership
	err := row.Scan(
		&m.ID, &m.CircleID, &m.UserID, &m.Status, &m.IsAdmin,
		&m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Membership{}, domain.ErrMembershipNotFound
	}
	return m, err
}

func (r *Repository) GetMembership(ctx context.Context, circleID, userID uuid.UUID) (domain.Membership, error) {
	return scanMembership(r.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships
		WHERE circle_id = $1 AND user_id = $2
	`, circleID, userID))
}

func (r *Repository) GetMembershipByID(ctx context.Context, id uuid.UUID) (domain.Membership, error) {
	return scanMembership(r.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships
		WHERE id = $1
	`, id))
}

func (r *Repository) CreateMembership(ctx context.Context, traceID string, m domain.Membership) (domain.Membership, error) {
	var out domain.Membership
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		created, err := createMembershipTx(ctx, tx, m)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Membership{}, err
	}
	return out, nil
}

// createMembershipTx inserts the membership, or revives a rejected row for
// the same (circle, user) in place. Shared with invitation acceptance and
// join request approval so all three paths obey the same uniqueness rule.
func createMembershipTx(ctx context.Context, tx pgx.Tx, m domain.Membership) (domain.Membership, error) {
	existing, err := scanMembership(tx.QueryRow(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships
		WHERE circle_id = $1 AND user_id = $2
		FOR UPDATE
	`, m.CircleID, m.UserID))
	if err != nil && !errors.Is(err, domain.ErrMembershipNotFound) {
		return domain.Membership{}, err
	}

	now := time.Now().UTC()
	var joinedAt *time.Time
	if m.Status == domain.MembershipApproved {
		joinedAt = &now
	}

	if err == nil {
		if existing.Status != domain.MembershipRejected {
			return domain.Membership{}, domain.ErrAlreadyMember
		}
		// Revive the rejected row, keeping its identity.
		return scanMembership(tx.QueryRow(ctx, `
			UPDATE memberships
			SET status = $2, is_admin = $3, joined_at = $4, updated_at = $5
			WHERE id = $1
			RETURNING `+membershipColumns+`
		`, existing.ID, m.Status, m.IsAdmin, joinedAt, now))
	}

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO memberships (id, circle_id, user_id, status, is_admin, joined_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+membershipColumns+`
	`, m.ID, m.CircleID, m.UserID, m.Status, m.IsAdmin, joinedAt, now)
	created, err := scanMembership(row)
	if isUniqueViolation(err) {
		return domain.Membership{}, domain.ErrAlreadyMember
	}
	return created, err
}

func (r *Repository) ReviewMembership(ctx context.Context, traceID string, id uuid.UUID, decision domain.ReviewDecision) (domain.Membership, error) {
	var out domain.Membership
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		current, err := scanMembership(tx.QueryRow(ctx, `
			SELECT `+membershipColumns+`
			FROM memberships
			WHERE id = $1
			FOR UPDATE
		`, id))
		if err != nil {
			return err
		}
		if current.Status != domain.MembershipPending {
			return domain.ErrInvalidTransition
		}

		now := time.Now().UTC()
		status := domain.MembershipRejected
		var joinedAt *time.Time
		if decision == domain.DecisionApprove {
			status = domain.MembershipApproved
			joinedAt = &now
		}

		out, err = scanMembership(tx.QueryRow(ctx, `
			UPDATE memberships
			SET status = $2, joined_at = COALESCE(joined_at, $3), updated_at = $4
			WHERE id = $1
			RETURNING `+membershipColumns+`
		`, id, status, joinedAt, now))
		return err
	})
	if err != nil {
		return domain.Membership{}, err
	}
	return out, nil
}

func (r *Repository) DeleteMembership(ctx context.Context, traceID string, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM memberships WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}

func (r *Repository) ListMembers(ctx context.Context, circleID uuid.UUID, status *domain.MembershipStatus) ([]domain.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE circle_id = $1`
	args := []any{circleID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(
			&m.ID, &m.CircleID, &m.UserID, &m.Status, &m.IsAdmin,
			&m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type broadcastPayload struct {
	CircleID    uuid.UUID `json:"circle_id"`
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Message     string    `json:"message"`
	SentAt      time.Time `json:"sent_at"`
}

// BroadcastToApproved fans the message out as one outbox row per approved
// member (sender excluded), committed atomically with the recipient read.
func (r *Repository) BroadcastToApproved(ctx context.Context, traceID string, circleID, senderID uuid.UUID, message string) (int, error) {
	var count int
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		count = 0
		rows, err := tx.Query(ctx, `
			SELECT user_id
			FROM memberships
			WHERE circle_id = $1 AND status = 'approved' AND user_id <> $2
		`, circleID, senderID)
		if err != nil {
			return err
		}
		var recipients []uuid.UUID
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			recipients = append(recipients, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, recipient := range recipients {
			err := insertOutboxTx(ctx, tx, traceID, "circle.broadcast", broadcastPayload{
				CircleID:    circleID,
				SenderID:    senderID,
				RecipientID: recipient,
				Message:     message,
				SentAt:      now,
			})
			if err != nil {
				return err
			}
		}
		count = len(recipients)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
