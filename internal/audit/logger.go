package audit

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kartalink/circle-service/internal/domain"
)

// Logger provides structured audit logging for business events
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// CircleCreated logs circle creation together with its owner membership
func (l *Logger) CircleCreated(traceID string, circleID, ownerID uuid.UUID) {
	l.log.Info().
		Str("action", "circle_created").
		Str("circle_id", circleID.String()).
		Str("owner_id", ownerID.String()).
		Str("trace_id", traceID).
		Msg("Circle created")
}

// MembershipCreated logs a new membership row (join, invite shortcut, claim)
func (l *Logger) MembershipCreated(traceID string, circleID, userID uuid.UUID, status domain.MembershipStatus) {
	l.log.Info().
		Str("action", "membership_created").
		Str("circle_id", circleID.String()).
		Str("user_id", userID.String()).
		Str("status", string(status)).
		Str("trace_id", traceID).
		Msg("Membership created")
}

// MembershipReviewed logs an admin decision on a pending membership
func (l *Logger) MembershipReviewed(traceID string, membershipID, actorID uuid.UUID, decision domain.ReviewDecision) {
	l.log.Info().
		Str("action", "membership_reviewed").
		Str("membership_id", membershipID.String()).
		Str("actor_user_id", actorID.String()).
		Str("decision", string(decision)).
		Str("trace_id", traceID).
		Msg("Membership reviewed")
}

// MembershipRemoved logs a voluntary leave or an admin removal
func (l *Logger) MembershipRemoved(traceID string, membershipID, actorID uuid.UUID, forced bool) {
	ev := l.log.Info()
	if forced {
		ev = l.log.Warn()
	}
	ev.
		Str("action", "membership_removed").
		Str("membership_id", membershipID.String()).
		Str("actor_user_id", actorID.String()).
		Bool("forced", forced).
		Str("trace_id", traceID).
		Msg("Membership removed")
}

// InvitationCreated logs an admin-issued invitation
func (l *Logger) InvitationCreated(traceID string, circleID, actorID uuid.UUID, email string) {
	l.log.Info().
		Str("action", "invitation_created").
		Str("circle_id", circleID.String()).
		Str("actor_user_id", actorID.String()).
		Str("email", email).
		Str("trace_id", traceID).
		Msg("Invitation created")
}

// InvitationAccepted logs an email-match acceptance
func (l *Logger) InvitationAccepted(traceID string, invitationID, userID uuid.UUID) {
	l.log.Info().
		Str("action", "invitation_accepted").
		Str("invitation_id", invitationID.String()).
		Str("user_id", userID.String()).
		Str("trace_id", traceID).
		Msg("Invitation accepted")
}

// InvitationCancelled logs an admin cancellation
func (l *Logger) InvitationCancelled(traceID string, invitationID, actorID uuid.UUID) {
	l.log.Info().
		Str("action", "invitation_cancelled").
		Str("invitation_id", invitationID.String()).
		Str("actor_user_id", actorID.String()).
		Str("trace_id", traceID).
		Msg("Invitation cancelled")
}

// JoinRequestCreated logs a self-service request against a private circle
func (l *Logger) JoinRequestCreated(traceID string, circleID uuid.UUID, email string) {
	l.log.Info().
		Str("action", "join_request_created").
		Str("circle_id", circleID.String()).
		Str("email", email).
		Str("trace_id", traceID).
		Msg("Join request created")
}

// JoinRequestReviewed logs the admin decision on a join request
func (l *Logger) JoinRequestReviewed(traceID string, requestID, actorID uuid.UUID, decision domain.ReviewDecision) {
	l.log.Info().
		Str("action", "join_request_reviewed").
		Str("request_id", requestID.String()).
		Str("actor_user_id", actorID.String()).
		Str("decision", string(decision)).
		Str("trace_id", traceID).
		Msg("Join request reviewed")
}

// RegistrationAdmitted logs a successful capacity-checked admission
func (l *Logger) RegistrationAdmitted(traceID string, eventID, registrationID uuid.UUID, status domain.RegistrationStatus) {
	l.log.Info().
		Str("action", "registration_admitted").
		Str("event_id", eventID.String()).
		Str("registration_id", registrationID.String()).
		Str("status", string(status)).
		Str("trace_id", traceID).
		Msg("Registration admitted")
}

// RegistrationStatusChanged logs an admin registration transition
func (l *Logger) RegistrationStatusChanged(traceID string, registrationID, actorID uuid.UUID, status domain.RegistrationStatus) {
	l.log.Info().
		Str("action", "registration_status_changed").
		Str("registration_id", registrationID.String()).
		Str("actor_user_id", actorID.String()).
		Str("status", string(status)).
		Str("trace_id", traceID).
		Msg("Registration status changed")
}

// RSVPRecorded logs a ticket-keyed attendance confirmation
func (l *Logger) RSVPRecorded(traceID string, registrationID uuid.UUID, rsvpStatus string) {
	l.log.Info().
		Str("action", "rsvp_recorded").
		Str("registration_id", registrationID.String()).
		Str("rsvp_status", rsvpStatus).
		Str("trace_id", traceID).
		Msg("RSVP recorded")
}

// BroadcastQueued logs a fan-out to approved members
func (l *Logger) BroadcastQueued(traceID string, circleID, actorID uuid.UUID, recipients int) {
	l.log.Info().
		Str("action", "broadcast_queued").
		Str("circle_id", circleID.String()).
		Str("actor_user_id", actorID.String()).
		Int("recipients", recipients).
		Str("trace_id", traceID).
		Msg("Broadcast queued")
}

// AuthorizationDenied logs NotAuthorized/InvalidTransition outcomes, which
// indicate a stale client or a forged request and deserve investigation.
func (l *Logger) AuthorizationDenied(traceID string, actorID uuid.UUID, operation string) {
	l.log.Warn().
		Str("action", "authorization_denied").
		Str("actor_user_id", actorID.String()).
		Str("operation", operation).
		Str("trace_id", traceID).
		Msg("Authorization denied")
}
