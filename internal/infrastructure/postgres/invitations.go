package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kartalink/circle-service/internal/domain"
)

// Reads report the effective status: a pending invitation past expires_at
// comes back as 'expired' without anyone sweeping the table.
const invitationColumns = `
	id, circle_id, email,
	CASE WHEN status = 'pending' AND expires_at < now() THEN 'expired' ELSE status::text END,
	expires_at, created_at, updated_at`

func scanInvitation(row pgx.Row) (domain.Invitation, error) {
	var inv domain.Invitation
	err := row.Scan(
		&inv.ID, &inv.CircleID, &inv.Email, &inv.Status,
		&inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Invitation{}, domain.ErrInvitationNotFound
	}
	return inv, err
}

func (r *Repository) CreateInvitation(ctx context.Context, traceID string, inv domain.Invitation) (domain.Invitation, error) {
	var out domain.Invitation
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		// Flip stale pending rows first so the partial unique index only
		// guards live invitations.
		_, err := tx.Exec(ctx, `
			UPDATE invitations
			SET status = 'expired', updated_at = now()
			WHERE circle_id = $1 AND email = $2 AND status = 'pending' AND expires_at < now()
		`, inv.CircleID, inv.Email)
		if err != nil {
			return err
		}

		out, err = scanInvitation(tx.QueryRow(ctx, `
			INSERT INTO invitations (id, circle_id, email, status, expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, 'pending', $4, now(), now())
			RETURNING `+invitationColumns+`
		`, inv.ID, inv.CircleID, inv.Email, inv.ExpiresAt))
		if isUniqueViolation(err) {
			return domain.ErrDuplicatePendingInvitation
		}
		if err != nil {
			return err
		}

		// Invitation mail goes out through the outbox, never inline.
		return insertOutboxTx(ctx, tx, traceID, "invitation.created", map[string]any{
			"invitation_id": out.ID,
			"circle_id":     out.CircleID,
			"email":         out.Email,
			"expires_at":    out.ExpiresAt,
		})
	})
	if err != nil {
		return domain.Invitation{}, err
	}
	return out, nil
}

func (r *Repository) GetInvitation(ctx context.Context, id uuid.UUID) (domain.Invitation, error) {
	return scanInvitation(r.pool.QueryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE id = $1
	`, id))
}

func (r *Repository) CancelInvitation(ctx context.Context, traceID string, id uuid.UUID) (domain.Invitation, error) {
	var out domain.Invitation
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		current, err := scanInvitation(tx.QueryRow(ctx, `
			SELECT `+invitationColumns+`
			FROM invitations
			WHERE id = $1
			FOR UPDATE
		`, id))
		if err != nil {
			return err
		}
		if current.Status != domain.InvitationPending {
			return domain.ErrInvalidTransition
		}

		out, err = scanInvitation(tx.QueryRow(ctx, `
			UPDATE invitations
			SET status = 'cancelled', updated_at = now()
			WHERE id = $1
			RETURNING `+invitationColumns+`
		`, id))
		return err
	})
	if err != nil {
		return domain.Invitation{}, err
	}
	return out, nil
}

// AcceptInvitation marks the invitation accepted and creates the approved
// membership in the same transaction.
func (r *Repository) AcceptInvitation(ctx context.Context, traceID string, id, userID uuid.UUID) (domain.Membership, error) {
	var out domain.Membership
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		current, err := scanInvitation(tx.QueryRow(ctx, `
			SELECT `+invitationColumns+`
			FROM invitations
			WHERE id = $1
			FOR UPDATE
		`, id))
		if err != nil {
			return err
		}
		if current.Status != domain.InvitationPending {
			return domain.ErrInvalidTransition
		}

		if _, err := tx.Exec(ctx, `
			UPDATE invitations
			SET status = 'accepted', updated_at = now()
			WHERE id = $1
		`, id); err != nil {
			return err
		}

		out, err = createMembershipTx(ctx, tx, domain.Membership{
			CircleID: current.CircleID,
			UserID:   userID,
			Status:   domain.MembershipApproved,
		})
		return err
	})
	if err != nil {
		return domain.Membership{}, err
	}
	return out, nil
}

func (r *Repository) ListPendingInvitationsByEmail(ctx context.Context, email string) ([]domain.Invitation, error) {
	return r.listInvitations(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE email = $1 AND status = 'pending' AND expires_at >= now()
		ORDER BY created_at
	`, domain.NormalizeEmail(email))
}

func (r *Repository) ListInvitations(ctx context.Context, circleID uuid.UUID) ([]domain.Invitation, error) {
	return r.listInvitations(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE circle_id = $1
		ORDER BY created_at
	`, circleID)
}

func (r *Repository) listInvitations(ctx context.Context, query string, arg any) ([]domain.Invitation, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invitation
	for rows.Next() {
		var inv domain.Invitation
		if err := rows.Scan(
			&inv.ID, &inv.CircleID, &inv.Email, &inv.Status,
			&inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
