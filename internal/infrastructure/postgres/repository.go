package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kartalink/circle-service/internal/domain"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// -------------------------
// Deadlock policy:
// Always lock in this order (for the same event_id):
//   1) events row (FOR UPDATE) -- the capacity authority
//   2) registrations row (FOR UPDATE) if needed
// Membership transactions lock the memberships row for (circle_id,user_id)
// before touching anything else. This keeps lock ordering acyclic across
// Register / UpdateRegistrationStatus / UpdateEventCapacity.
// -------------------------

const conflictRetries = 3

// inTx runs fn inside a transaction and retries serialization failures and
// deadlocks a bounded number of times before surfacing ErrConflict.
func (r *Repository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return err
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrConflict, lastErr)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// insertOutboxTx enqueues a notification in the caller's transaction. The
// worker picks it up only after that transaction commits.
func insertOutboxTx(ctx context.Context, tx pgx.Tx, traceID, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (trace_id, routing_key, payload)
		VALUES ($1, $2, $3)
	`, traceID, routingKey, body)
	return err
}

// FindUserByEmail reads the identity mirror table maintained by the auth
// collaborator. Unknown email is (nil, nil), not an error.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email
		FROM users
		WHERE email = $1
	`, domain.NormalizeEmail(email)).Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
