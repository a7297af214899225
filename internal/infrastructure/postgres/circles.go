package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kartalink/circle-service/internal/domain"
)

const circleColumns = `id, name, username, is_public, require_approval, owner_id, created_at, updated_at`

func scanCircle(row pgx.Row) (domain.Circle, error) {
	var c domain.Circle
	err := row.Scan(
		&c.ID, &c.Name, &c.Username, &c.IsPublic, &c.RequireApproval,
		&c.OwnerID, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Circle{}, domain.ErrCircleNotFound
	}
	return c, err
}

// CreateCircle writes the circle and its owner's approved admin membership
// in one transaction.
func (r *Repository) CreateCircle(ctx context.Context, traceID string, c domain.Circle) (domain.Circle, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO circles (id, name, username, is_public, require_approval, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		`, c.ID, c.Name, c.Username, c.IsPublic, c.RequireApproval, c.OwnerID, c.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrValidation
			}
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO memberships (id, circle_id, user_id, status, is_admin, joined_at, created_at, updated_at)
			VALUES ($1, $2, $3, 'approved', TRUE, $4, $4, $4)
		`, uuid.New(), c.ID, c.OwnerID, c.CreatedAt)
		return err
	})
	if err != nil {
		return domain.Circle{}, err
	}
	return c, nil
}

func (r *Repository) GetCircle(ctx context.Context, id uuid.UUID) (domain.Circle, error) {
	return scanCircle(r.pool.QueryRow(ctx, `
		SELECT `+circleColumns+`
		FROM circles
		WHERE id = $1
	`, id))
}

func (r *Repository) ListCirclesForUser(ctx context.Context, userID uuid.UUID) ([]domain.Circle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.username, c.is_public, c.require_approval, c.owner_id, c.created_at, c.updated_at
		FROM circles c
		JOIN memberships m ON m.circle_id = c.id
		WHERE m.user_id = $1 AND m.status = 'approved'
		ORDER BY c.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Circle
	for rows.Next() {
		var c domain.Circle
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Username, &c.IsPublic, &c.RequireApproval,
			&c.OwnerID, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
