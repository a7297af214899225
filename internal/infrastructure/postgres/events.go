package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kartalink/circle-service/internal/domain"
)

const eventColumns = `id, circle_id, title, description, starts_at, max_participants, requires_payment_proof, status, created_at, updated_at`

const registrationColumns = `id, event_id, ticket_number, name, email, status, rsvp_status, proof_url, created_at, updated_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID, &e.CircleID, &e.Title, &e.Description, &e.StartsAt,
		&e.MaxParticipants, &e.RequiresPaymentProof, &e.Status,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return e, err
}

func scanRegistration(row pgx.Row) (domain.Registration, error) {
	var reg domain.Registration
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.TicketNumber, &reg.Name, &reg.Email,
		&reg.Status, &reg.RSVPStatus, &reg.ProofURL,
		&reg.CreatedAt, &reg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Registration{}, domain.ErrRegistrationNotFound
	}
	return reg, err
}

func (r *Repository) CreateEvent(ctx context.Context, traceID string, e domain.Event) (domain.Event, error) {
	out, err := scanEvent(r.pool.QueryRow(ctx, `
		INSERT INTO events (id, circle_id, title, description, starts_at, max_participants, requires_payment_proof, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+eventColumns+`
	`, e.ID, e.CircleID, e.Title, e.Description, e.StartsAt, e.MaxParticipants, e.RequiresPaymentProof, e.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.Event{}, domain.ErrCircleNotFound
		}
		return domain.Event{}, err
	}
	return out, nil
}

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1
	`, id))
}

func (r *Repository) UpdateEventCapacity(ctx context.Context, traceID string, id uuid.UUID, maxParticipants int) (domain.Event, error) {
	var out domain.Event
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockEventTx(ctx, tx, id); err != nil {
			return err
		}
		admitted, err := countAdmittedTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if maxParticipants < admitted {
			return domain.ErrCapacityBelowConfirmed
		}

		out, err = scanEvent(tx.QueryRow(ctx, `
			UPDATE events
			SET max_participants = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+eventColumns+`
		`, id, maxParticipants))
		return err
	})
	if err != nil {
		return domain.Event{}, err
	}
	return out, nil
}

// Register is the admission gate. The event row is locked FOR UPDATE so the
// admitted count cannot move between the check and the insert; a full event
// leaves no row behind.
func (r *Repository) Register(ctx context.Context, traceID string, reg domain.Registration) (domain.Registration, error) {
	var out domain.Registration
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		event, err := lockEventTx(ctx, tx, reg.EventID)
		if err != nil {
			return err
		}
		admitted, err := countAdmittedTx(ctx, tx, reg.EventID)
		if err != nil {
			return err
		}
		if reg.Status.Admitted() && admitted >= event.MaxParticipants {
			return domain.ErrEventFull
		}

		out, err = scanRegistration(tx.QueryRow(ctx, `
			INSERT INTO registrations (id, event_id, ticket_number, name, email, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			RETURNING `+registrationColumns+`
		`, reg.ID, reg.EventID, reg.TicketNumber, reg.Name, reg.Email, reg.Status))
		if err != nil {
			return err
		}

		// Ticket mail rides the same commit as the admission.
		return insertOutboxTx(ctx, tx, traceID, "registration.created", map[string]any{
			"registration_id": out.ID,
			"event_id":        out.EventID,
			"ticket_number":   out.TicketNumber,
			"email":           out.Email,
			"status":          out.Status,
		})
	})
	if err != nil {
		return domain.Registration{}, err
	}
	return out, nil
}

func (r *Repository) UpdateRegistrationStatus(ctx context.Context, traceID string, id uuid.UUID, status domain.RegistrationStatus) (domain.Registration, error) {
	var out domain.Registration
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		// Read the parent first so the event row is always locked before the
		// registration row, same order as Register.
		var eventID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT event_id FROM registrations WHERE id = $1`, id).Scan(&eventID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrRegistrationNotFound
			}
			return err
		}

		event, err := lockEventTx(ctx, tx, eventID)
		if err != nil {
			return err
		}

		current, err := scanRegistration(tx.QueryRow(ctx, `
			SELECT `+registrationColumns+`
			FROM registrations
			WHERE id = $1
			FOR UPDATE
		`, id))
		if err != nil {
			return err
		}
		if current.Status == status {
			return fmt.Errorf("%w: registration is already %s", domain.ErrInvalidTransition, status)
		}

		// Reviving a cancelled registration consumes a seat again.
		if status.Admitted() && !current.Status.Admitted() {
			admitted, err := countAdmittedTx(ctx, tx, eventID)
			if err != nil {
				return err
			}
			if admitted >= event.MaxParticipants {
				return domain.ErrEventFull
			}
		}

		out, err = scanRegistration(tx.QueryRow(ctx, `
			UPDATE registrations
			SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+registrationColumns+`
		`, id, status))
		return err
	})
	if err != nil {
		return domain.Registration{}, err
	}
	return out, nil
}

func (r *Repository) GetRegistration(ctx context.Context, id uuid.UUID) (domain.Registration, error) {
	return scanRegistration(r.pool.QueryRow(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations
		WHERE id = $1
	`, id))
}

func (r *Repository) GetRegistrationByTicket(ctx context.Context, ticket string) (domain.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations
		WHERE ticket_number = $1
	`, ticket))
	if errors.Is(err, domain.ErrRegistrationNotFound) {
		return domain.Registration{}, domain.ErrTicketNotFound
	}
	return reg, err
}

// SubmitRSVP overwrites the previous answer; the ticket is the only
// credential.
func (r *Repository) SubmitRSVP(ctx context.Context, ticket string, rsvpStatus string) (domain.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `
		UPDATE registrations
		SET rsvp_status = $2, updated_at = now()
		WHERE ticket_number = $1
		RETURNING `+registrationColumns+`
	`, ticket, rsvpStatus))
	if errors.Is(err, domain.ErrRegistrationNotFound) {
		return domain.Registration{}, domain.ErrTicketNotFound
	}
	return reg, err
}

func (r *Repository) CountAdmitted(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM registrations
		WHERE event_id = $1 AND status IN ('pending', 'confirmed')
	`, eventID).Scan(&n)
	return n, err
}

func (r *Repository) ListRegistrations(ctx context.Context, eventID uuid.UUID) ([]domain.Registration, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations
		WHERE event_id = $1
		ORDER BY created_at
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Registration
	for rows.Next() {
		var reg domain.Registration
		if err := rows.Scan(
			&reg.ID, &reg.EventID, &reg.TicketNumber, &reg.Name, &reg.Email,
			&reg.Status, &reg.RSVPStatus, &reg.ProofURL,
			&reg.CreatedAt, &reg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (r *Repository) AttachProof(ctx context.Context, id uuid.UUID, url string) (domain.Registration, error) {
	return scanRegistration(r.pool.QueryRow(ctx, `
		UPDATE registrations
		SET proof_url = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+registrationColumns+`
	`, id, url))
}

func lockEventTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Event, error) {
	return scanEvent(tx.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func countAdmittedTx(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM registrations
		WHERE event_id = $1 AND status IN ('pending', 'confirmed')
	`, eventID).Scan(&n)
	return n, err
}
