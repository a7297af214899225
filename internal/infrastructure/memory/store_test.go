package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartalink/circle-service/internal/domain"
)

func newCircle(t *testing.T, s *Store, isPublic bool) domain.Circle {
	t.Helper()
	c, err := domain.NewCircle(uuid.New(), "Hiking Club", "hiking", isPublic, false, time.Now())
	require.NoError(t, err)
	c, err = s.CreateCircle(context.Background(), "trace", c)
	require.NoError(t, err)
	return c
}

func newEvent(t *testing.T, s *Store, circleID uuid.UUID, capacity int) domain.Event {
	t.Helper()
	ev, err := domain.NewEvent(circleID, "Summit Walk", "", time.Now().Add(24*time.Hour), capacity, false, time.Now())
	require.NoError(t, err)
	ev, err = s.CreateEvent(context.Background(), "trace", ev)
	require.NoError(t, err)
	return ev
}

func TestCreateCircle_OwnerMembershipExists(t *testing.T) {
	s := NewStore()
	c := newCircle(t, s, true)

	m, err := s.GetMembership(context.Background(), c.ID, c.OwnerID)
	require.NoError(t, err)
	assert.True(t, m.CanModerate())
	assert.NotNil(t, m.JoinedAt)
}

func TestCreateMembership_LiveRowRejected_RejectedRowReused(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := newCircle(t, s, true)
	uID := uuid.New()

	m, err := s.CreateMembership(ctx, "trace", domain.Membership{
		ID: uuid.New(), CircleID: c.ID, UserID: uID, Status: domain.MembershipPending,
	})
	require.NoError(t, err)
	assert.Nil(t, m.JoinedAt)

	_, err = s.CreateMembership(ctx, "trace", domain.Membership{
		ID: uuid.New(), CircleID: c.ID, UserID: uID, Status: domain.MembershipPending,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)

	_, err = s.ReviewMembership(ctx, "trace", m.ID, domain.DecisionReject)
	require.NoError(t, err)

	// rejoining after rejection reuses the row
	again, err := s.CreateMembership(ctx, "trace", domain.Membership{
		ID: uuid.New(), CircleID: c.ID, UserID: uID, Status: domain.MembershipApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, m.ID, again.ID)
	assert.NotNil(t, again.JoinedAt)
}

func TestReviewMembership_OnlyFromPending(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := newCircle(t, s, true)

	m, err := s.CreateMembership(ctx, "trace", domain.Membership{
		ID: uuid.New(), CircleID: c.ID, UserID: uuid.New(), Status: domain.MembershipApproved,
	})
	require.NoError(t, err)

	_, err = s.ReviewMembership(ctx, "trace", m.ID, domain.DecisionApprove)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestInvitation_DuplicatePendingRefused(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := newCircle(t, s, false)

	inv := domain.Invitation{
		ID: uuid.New(), CircleID: c.ID, Email: "x@example.com",
		Status: domain.InvitationPending, ExpiresAt: time.Now().Add(time.Hour),
	}
	_, err := s.CreateInvitation(ctx, "trace", inv)
	require.NoError(t, err)

	inv.ID = uuid.New()
	_, err = s.CreateInvitation(ctx, "trace", inv)
	assert.ErrorIs(t, err, domain.ErrDuplicatePendingInvitation)
}

func TestInvitation_ExpiredSlotReopens(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := newCircle(t, s, false)

	expired := domain.Invitation{
		ID: uuid.New(), CircleID: c.ID, Email: "x@example.com",
		Status: domain.InvitationPending, ExpiresAt: time.Now().Add(-time.Hour),
	}
	_, err := s.CreateInvitation(ctx, "trace", expired)
	require.NoError(t, err)

	// the stale pending row reads as expired, so a fresh invitation goes
	// through and the old one refuses cancellation
	fresh := expired
	fresh.ID = uuid.New()
	fresh.ExpiresAt = time.Now().Add(time.Hour)
	_, err = s.CreateInvitation(ctx, "trace", fresh)
	require.NoError(t, err)

	got, err := s.GetInvitation(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationExpired, got.Status)

	_, err = s.CancelInvitation(ctx, "trace", expired.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAcceptInvitation_CreatesApprovedMembership(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := newCircle(t, s, false)
	uID := uuid.New()

	inv, err := s.CreateInvitation(ctx, "trace", domain.Invitation{
		ID: uuid.New(), CircleID: c.ID, Email: "x@example.com",
		Status: domain.InvitationPending, ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	m, err := s.AcceptInvitation(ctx, "trace", inv.ID, uID)
	require.NoError(t, err)
	assert.Equal(t, domain.MembershipApproved, m.Status)

	got, err := s.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationAccepted, got.Status)

	// second accept refuses
	_, err = s.AcceptInvitation(ctx, "trace", inv.ID, uID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestJoinRequest_DuplicatePendingRefused(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := newCircle(t, s, false)

	jr := domain.JoinRequest{ID: uuid.New(), CircleID: c.ID, Email: "y@example.com", Status: domain.JoinRequestPending}
	_, err := s.CreateJoinRequest(ctx, "trace", jr)
	require.NoError(t, err)

	jr.ID = uuid.New()
	_, err = s.CreateJoinRequest(ctx, "trace", jr)
	assert.ErrorIs(t, err, domain.ErrDuplicatePendingRequest)
}

func TestReviewJoinRequest_ApproveWithMatchCreatesMembership(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := newCircle(t, s, false)
	uID := uuid.New()

	jr, err := s.CreateJoinRequest(ctx, "trace", domain.JoinRequest{
		ID: uuid.New(), CircleID: c.ID, Email: "y@example.com", Status: domain.JoinRequestPending,
	})
	require.NoError(t, err)

	reviewed, m, err := s.ReviewJoinRequest(ctx, "trace", jr.ID, domain.DecisionApprove, &uID)
	require.NoError(t, err)
	assert.Equal(t, domain.JoinRequestApproved, reviewed.Status)
	require.NotNil(t, m)
	assert.Equal(t, uID, m.UserID)

	// a second review refuses
	_, _, err = s.ReviewJoinRequest(ctx, "trace", jr.ID, domain.DecisionReject, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRegister_CapacityUnderConcurrency(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := newCircle(t, s, true)
	ev := newEvent(t, s, c.ID, 2)

	const attempts = 3
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Register(ctx, "trace", domain.Registration{
				ID:           uuid.New(),
				EventID:      ev.ID,
				TicketNumber: domain.NewTicketNumber(),
				Name:         "Guest",
				Email:        "guest@example.com",
				Status:       domain.RegistrationConfirmed,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	full := 0
	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrEventFull)
			full++
		}
	}
	assert.Equal(t, 1, full)

	n, err := s.CountAdmitted(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpdateRegistrationStatus_ReviveRevalidatesCapacity(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := newCircle(t, s, true)
	ev := newEvent(t, s, c.ID, 1)

	first, err := s.Register(ctx, "trace", domain.Registration{
		ID: uuid.New(), EventID: ev.ID, TicketNumber: domain.NewTicketNumber(),
		Name: "A", Email: "a@example.com", Status: domain.RegistrationConfirmed,
	})
	require.NoError(t, err)

	cancelled, err := s.UpdateRegistrationStatus(ctx, "trace", first.ID, domain.RegistrationCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.RegistrationCancelled, cancelled.Status)

	// the freed slot goes to someone else
	_, err = s.Register(ctx, "trace", domain.Registration{
		ID: uuid.New(), EventID: ev.ID, TicketNumber: domain.NewTicketNumber(),
		Name: "B", Email: "b@example.com", Status: domain.RegistrationConfirmed,
	})
	require.NoError(t, err)

	// reviving the cancelled one now fails
	_, err = s.UpdateRegistrationStatus(ctx, "trace", first.ID, domain.RegistrationConfirmed)
	assert.ErrorIs(t, err, domain.ErrEventFull)
}

func TestUpdateEventCapacity_BelowAdmittedRefused(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := newCircle(t, s, true)
	ev := newEvent(t, s, c.ID, 3)

	for i := 0; i < 2; i++ {
		_, err := s.Register(ctx, "trace", domain.Registration{
			ID: uuid.New(), EventID: ev.ID, TicketNumber: domain.NewTicketNumber(),
			Name: "G", Email: "g@example.com", Status: domain.RegistrationConfirmed,
		})
		require.NoError(t, err)
	}

	_, err := s.UpdateEventCapacity(ctx, "trace", ev.ID, 1)
	assert.ErrorIs(t, err, domain.ErrCapacityBelowConfirmed)

	ev2, err := s.UpdateEventCapacity(ctx, "trace", ev.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, ev2.MaxParticipants)
}

func TestSubmitRSVP_TicketKeyedAndOverwrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := newCircle(t, s, true)
	ev := newEvent(t, s, c.ID, 5)

	reg, err := s.Register(ctx, "trace", domain.Registration{
		ID: uuid.New(), EventID: ev.ID, TicketNumber: domain.NewTicketNumber(),
		Name: "A", Email: "a@example.com", Status: domain.RegistrationConfirmed,
	})
	require.NoError(t, err)

	got, err := s.SubmitRSVP(ctx, reg.TicketNumber, domain.RSVPOnTime)
	require.NoError(t, err)
	require.NotNil(t, got.RSVPStatus)
	assert.Equal(t, domain.RSVPOnTime, *got.RSVPStatus)

	got, err = s.SubmitRSVP(ctx, reg.TicketNumber, domain.RSVPLate)
	require.NoError(t, err)
	assert.Equal(t, domain.RSVPLate, *got.RSVPStatus)

	_, err = s.SubmitRSVP(ctx, "NOPE", domain.RSVPOnTime)
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestBroadcastToApproved_SkipsSenderAndPending(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := newCircle(t, s, true)

	approved := uuid.New()
	_, err := s.CreateMembership(ctx, "trace", domain.Membership{
		ID: uuid.New(), CircleID: c.ID, UserID: approved, Status: domain.MembershipApproved,
	})
	require.NoError(t, err)
	_, err = s.CreateMembership(ctx, "trace", domain.Membership{
		ID: uuid.New(), CircleID: c.ID, UserID: uuid.New(), Status: domain.MembershipPending,
	})
	require.NoError(t, err)

	n, err := s.BroadcastToApproved(ctx, "trace", c.ID, c.OwnerID, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	notes := s.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, approved, notes[0].RecipientID)
	assert.Equal(t, "hello", notes[0].Message)
}
