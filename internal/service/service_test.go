package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/kartalink/circle-service/internal/domain"
	"github.com/kartalink/circle-service/internal/service"
)

type MockCircles struct{ mock.Mock }

func (m *MockCircles) CreateCircle(ctx context.Context, tid string, c domain.Circle) (domain.Circle, error) {
	args := m.Called(ctx, tid, c)
	return args.Get(0).(domain.Circle), args.Error(1)
}
func (m *MockCircles) GetCircle(ctx context.Context, id uuid.UUID) (domain.Circle, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Circle), args.Error(1)
}
func (m *MockCircles) ListCirclesForUser(ctx context.Context, userID uuid.UUID) ([]domain.Circle, error) {
	args := m.Called(ctx, userID)
	var out []domain.Circle
	if v := args.Get(0); v != nil {
		out = v.([]domain.Circle)
	}
	return out, args.Error(1)
}

type MockMemberships struct{ mock.Mock }

func (m *MockMemberships) GetMembership(ctx context.Context, circleID, userID uuid.UUID) (domain.Membership, error) {
	args := m.Called(ctx, circleID, userID)
	return args.Get(0).(domain.Membership), args.Error(1)
}
func (m *MockMemberships) GetMembershipByID(ctx context.Context, id uuid.UUID) (domain.Membership, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Membership), args.Error(1)
}
func (m *MockMemberships) CreateMembership(ctx context.Context, tid string, mem domain.Membership) (domain.Membership, error) {
	args := m.Called(ctx, tid, mem)
	return args.Get(0).(domain.Membership), args.Error(1)
}
func (m *MockMemberships) ReviewMembership(ctx context.Context, tid string, id uuid.UUID, d domain.ReviewDecision) (domain.Membership, error) {
	args := m.Called(ctx, tid, id, d)
	return args.Get(0).(domain.Membership), args.Error(1)
}
func (m *MockMemberships) DeleteMembership(ctx context.Context, tid string, id uuid.UUID) error {
	return m.Called(ctx, tid, id).Error(0)
}
func (m *MockMemberships) ListMembers(ctx context.Context, circleID uuid.UUID, status *domain.MembershipStatus) ([]domain.Membership, error) {
	args := m.Called(ctx, circleID, status)
	var out []domain.Membership
	if v := args.Get(0); v != nil {
		out = v.([]domain.Membership)
	}
	return out, args.Error(1)
}
func (m *MockMemberships) BroadcastToApproved(ctx context.Context, tid string, circleID, senderID uuid.UUID, msg string) (int, error) {
	args := m.Called(ctx, tid, circleID, senderID, msg)
	return args.Int(0), args.Error(1)
}

type MockInvitations struct{ mock.Mock }

func (m *MockInvitations) CreateInvitation(ctx context.Context, tid string, inv domain.Invitation) (domain.Invitation, error) {
	args := m.Called(ctx, tid, inv)
	return args.Get(0).(domain.Invitation), args.Error(1)
}
func (m *MockInvitations) GetInvitation(ctx context.Context, id uuid.UUID) (domain.Invitation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Invitation), args.Error(1)
}
func (m *MockInvitations) CancelInvitation(ctx context.Context, tid string, id uuid.UUID) (domain.Invitation, error) {
	args := m.Called(ctx, tid, id)
	return args.Get(0).(domain.Invitation), args.Error(1)
}
func (m *MockInvitations) AcceptInvitation(ctx context.Context, tid string, id, userID uuid.UUID) (domain.Membership, error) {
	args := m.Called(ctx, tid, id, userID)
	return args.Get(0).(domain.Membership), args.Error(1)
}
func (m *MockInvitations) ListPendingInvitationsByEmail(ctx context.Context, email string) ([]domain.Invitation, error) {
	args := m.Called(ctx, email)
	var out []domain.Invitation
	if v := args.Get(0); v != nil {
		out = v.([]domain.Invitation)
	}
	return out, args.Error(1)
}
func (m *MockInvitations) ListInvitations(ctx context.Context, circleID uuid.UUID) ([]domain.Invitation, error) {
	args := m.Called(ctx, circleID)
	var out []domain.Invitation
	if v := args.Get(0); v != nil {
		out = v.([]domain.Invitation)
	}
	return out, args.Error(1)
}

type MockRequests struct{ mock.Mock }

func (m *MockRequests) CreateJoinRequest(ctx context.Context, tid string, jr domain.JoinRequest) (domain.JoinRequest, error) {
	args := m.Called(ctx, tid, jr)
	return args.Get(0).(domain.JoinRequest), args.Error(1)
}
func (m *MockRequests) GetJoinRequest(ctx context.Context, id uuid.UUID) (domain.JoinRequest, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.JoinRequest), args.Error(1)
}
func (m *MockRequests) ReviewJoinRequest(ctx context.Context, tid string, id uuid.UUID, d domain.ReviewDecision, matched *uuid.UUID) (domain.JoinRequest, *domain.Membership, error) {
	args := m.Called(ctx, tid, id, d, matched)
	var mem *domain.Membership
	if v := args.Get(1); v != nil {
		mem = v.(*domain.Membership)
	}
	return args.Get(0).(domain.JoinRequest), mem, args.Error(2)
}
func (m *MockRequests) ListApprovedRequestsByEmail(ctx context.Context, email string) ([]domain.JoinRequest, error) {
	args := m.Called(ctx, email)
	var out []domain.JoinRequest
	if v := args.Get(0); v != nil {
		out = v.([]domain.JoinRequest)
	}
	return out, args.Error(1)
}
func (m *MockRequests) ListJoinRequests(ctx context.Context, circleID uuid.UUID) ([]domain.JoinRequest, error) {
	args := m.Called(ctx, circleID)
	var out []domain.JoinRequest
	if v := args.Get(0); v != nil {
		out = v.([]domain.JoinRequest)
	}
	return out, args.Error(1)
}

type MockUsers struct{ mock.Mock }

func (m *MockUsers) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	var u *domain.User
	if v := args.Get(0); v != nil {
		u = v.(*domain.User)
	}
	return u, args.Error(1)
}

func adminMembership(circleID, userID uuid.UUID) domain.Membership {
	return domain.Membership{
		ID:       uuid.New(),
		CircleID: circleID,
		UserID:   userID,
		Status:   domain.MembershipApproved,
		IsAdmin:  true,
	}
}

func plainMembership(circleID, userID uuid.UUID) domain.Membership {
	return domain.Membership{
		ID:       uuid.New(),
		CircleID: circleID,
		UserID:   userID,
		Status:   domain.MembershipApproved,
	}
}

// --- membership ---

func TestMembershipService_Join_PrivateCircleRefused(t *testing.T) {
	circles := new(MockCircles)
	members := new(MockMemberships)
	svc := service.NewMembershipService(circles, members, nil)
	ctx := context.Background()
	cID := uuid.New()

	circles.On("GetCircle", ctx, cID).Return(domain.Circle{ID: cID, IsPublic: false}, nil)

	_, err := svc.Join(ctx, "trace", cID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrForbiddenDirectJoin)
	members.AssertNotCalled(t, "CreateMembership", mock.Anything, mock.Anything, mock.Anything)
}

func TestMembershipService_Join_PublicApprovedImmediately(t *testing.T) {
	circles := new(MockCircles)
	members := new(MockMemberships)
	svc := service.NewMembershipService(circles, members, nil)
	ctx := context.Background()
	cID := uuid.New()
	uID := uuid.New()

	circles.On("GetCircle", ctx, cID).Return(domain.Circle{ID: cID, IsPublic: true}, nil)
	members.On("CreateMembership", ctx, "trace", mock.MatchedBy(func(m domain.Membership) bool {
		return m.CircleID == cID && m.UserID == uID && m.Status == domain.MembershipApproved
	})).Return(plainMembership(cID, uID), nil)

	m, err := svc.Join(ctx, "trace", cID, uID)
	assert.NoError(t, err)
	assert.Equal(t, domain.MembershipApproved, m.Status)
	members.AssertExpectations(t)
}

func TestMembershipService_Join_RequireApprovalLandsPending(t *testing.T) {
	circles := new(MockCircles)
	members := new(MockMemberships)
	svc := service.NewMembershipService(circles, members, nil)
	ctx := context.Background()
	cID := uuid.New()
	uID := uuid.New()

	circles.On("GetCircle", ctx, cID).Return(domain.Circle{ID: cID, IsPublic: true, RequireApproval: true}, nil)
	members.On("CreateMembership", ctx, "trace", mock.MatchedBy(func(m domain.Membership) bool {
		return m.Status == domain.MembershipPending
	})).Return(domain.Membership{CircleID: cID, UserID: uID, Status: domain.MembershipPending}, nil)

	m, err := svc.Join(ctx, "trace", cID, uID)
	assert.NoError(t, err)
	assert.Equal(t, domain.MembershipPending, m.Status)
}

func TestMembershipService_Review_NonAdminDenied(t *testing.T) {
	circles := new(MockCircles)
	members := new(MockMemberships)
	svc := service.NewMembershipService(circles, members, nil)
	ctx := context.Background()
	cID := uuid.New()
	actor := uuid.New()
	target := domain.Membership{ID: uuid.New(), CircleID: cID, UserID: uuid.New(), Status: domain.MembershipPending}

	members.On("GetMembershipByID", ctx, target.ID).Return(target, nil)
	members.On("GetMembership", ctx, cID, actor).Return(plainMembership(cID, actor), nil)

	_, err := svc.Review(ctx, "trace", target.ID, actor, domain.DecisionApprove)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	members.AssertNotCalled(t, "ReviewMembership", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMembershipService_Leave_OwnerRefused(t *testing.T) {
	circles := new(MockCircles)
	members := new(MockMemberships)
	svc := service.NewMembershipService(circles, members, nil)
	ctx := context.Background()
	cID := uuid.New()
	owner := uuid.New()

	circles.On("GetCircle", ctx, cID).Return(domain.Circle{ID: cID, OwnerID: owner, IsPublic: true}, nil)

	err := svc.Leave(ctx, "trace", cID, owner)
	assert.ErrorIs(t, err, domain.ErrOwnerCannotLeave)
}

func TestMembershipService_Remove_OwnerRefusedEvenForAdmin(t *testing.T) {
	circles := new(MockCircles)
	members := new(MockMemberships)
	svc := service.NewMembershipService(circles, members, nil)
	ctx := context.Background()
	cID := uuid.New()
	owner := uuid.New()
	actor := uuid.New()
	target := domain.Membership{ID: uuid.New(), CircleID: cID, UserID: owner, Status: domain.MembershipApproved, IsAdmin: true}

	members.On("GetMembershipByID", ctx, target.ID).Return(target, nil)
	members.On("GetMembership", ctx, cID, actor).Return(adminMembership(cID, actor), nil)
	circles.On("GetCircle", ctx, cID).Return(domain.Circle{ID: cID, OwnerID: owner}, nil)

	err := svc.Remove(ctx, "trace", target.ID, actor)
	assert.ErrorIs(t, err, domain.ErrOwnerCannotLeave)
	members.AssertNotCalled(t, "DeleteMembership", mock.Anything, mock.Anything, mock.Anything)
}

// --- invitations ---

func TestInvitationService_Invite_ExistingUserBecomesMemberDirectly(t *testing.T) {
	members := new(MockMemberships)
	invs := new(MockInvitations)
	reqs := new(MockRequests)
	users := new(MockUsers)
	svc := service.NewInvitationService(members, invs, reqs, users, nil)
	ctx := context.Background()
	cID := uuid.New()
	admin := uuid.New()
	existing := &domain.User{ID: uuid.New(), Email: "known@example.com"}

	members.On("GetMembership", ctx, cID, admin).Return(adminMembership(cID, admin), nil)
	users.On("FindUserByEmail", ctx, "known@example.com").Return(existing, nil)
	members.On("CreateMembership", ctx, "trace", mock.MatchedBy(func(m domain.Membership) bool {
		return m.UserID == existing.ID && m.Status == domain.MembershipApproved
	})).Return(plainMembership(cID, existing.ID), nil)

	out, err := svc.Invite(ctx, "trace", cID, admin, "  Known@Example.COM ")
	assert.NoError(t, err)
	assert.Nil(t, out.Invitation)
	assert.NotNil(t, out.Membership)
	invs.AssertNotCalled(t, "CreateInvitation", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvitationService_Invite_UnknownEmailGetsWeekTTL(t *testing.T) {
	members := new(MockMemberships)
	invs := new(MockInvitations)
	reqs := new(MockRequests)
	users := new(MockUsers)
	svc := service.NewInvitationService(members, invs, reqs, users, nil)
	ctx := context.Background()
	cID := uuid.New()
	admin := uuid.New()

	members.On("GetMembership", ctx, cID, admin).Return(adminMembership(cID, admin), nil)
	users.On("FindUserByEmail", ctx, "new@example.com").Return(nil, nil)
	invs.On("CreateInvitation", ctx, "trace", mock.MatchedBy(func(inv domain.Invitation) bool {
		remaining := time.Until(inv.ExpiresAt)
		return inv.Email == "new@example.com" &&
			inv.Status == domain.InvitationPending &&
			remaining > 6*24*time.Hour && remaining <= domain.DefaultInvitationTTL
	})).Return(domain.Invitation{ID: uuid.New(), CircleID: cID, Email: "new@example.com", Status: domain.InvitationPending}, nil)

	out, err := svc.Invite(ctx, "trace", cID, admin, "new@example.com")
	assert.NoError(t, err)
	assert.NotNil(t, out.Invitation)
	assert.Nil(t, out.Membership)
	invs.AssertExpectations(t)
}

func TestInvitationService_Cancel_NonAdminDenied(t *testing.T) {
	members := new(MockMemberships)
	invs := new(MockInvitations)
	svc := service.NewInvitationService(members, invs, new(MockRequests), new(MockUsers), nil)
	ctx := context.Background()
	cID := uuid.New()
	actor := uuid.New()
	invID := uuid.New()

	invs.On("GetInvitation", ctx, invID).Return(domain.Invitation{ID: invID, CircleID: cID, Status: domain.InvitationPending}, nil)
	members.On("GetMembership", ctx, cID, actor).Return(domain.Membership{}, domain.ErrMembershipNotFound)

	_, err := svc.Cancel(ctx, "trace", invID, actor)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	invs.AssertNotCalled(t, "CancelInvitation", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvitationService_ClaimEmail_InvitationWinsOverJoinRequest(t *testing.T) {
	members := new(MockMemberships)
	invs := new(MockInvitations)
	reqs := new(MockRequests)
	svc := service.NewInvitationService(members, invs, reqs, new(MockUsers), nil)
	ctx := context.Background()
	cID := uuid.New()
	user := domain.User{ID: uuid.New(), Email: "dana@example.com"}
	inv := domain.Invitation{ID: uuid.New(), CircleID: cID, Email: user.Email, Status: domain.InvitationPending}

	invs.On("ListPendingInvitationsByEmail", ctx, user.Email).Return([]domain.Invitation{inv}, nil)
	invs.On("AcceptInvitation", ctx, "trace", inv.ID, user.ID).Return(plainMembership(cID, user.ID), nil)
	// The approved join request for the same circle must not produce a
	// second membership.
	reqs.On("ListApprovedRequestsByEmail", ctx, user.Email).Return([]domain.JoinRequest{
		{ID: uuid.New(), CircleID: cID, Email: user.Email, Status: domain.JoinRequestApproved},
	}, nil)

	out, err := svc.ClaimEmail(ctx, "trace", user)
	assert.NoError(t, err)
	assert.Len(t, out, 1)
	members.AssertNotCalled(t, "CreateMembership", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvitationService_ClaimEmail_ApprovedRequestMaterializes(t *testing.T) {
	members := new(MockMemberships)
	invs := new(MockInvitations)
	reqs := new(MockRequests)
	svc := service.NewInvitationService(members, invs, reqs, new(MockUsers), nil)
	ctx := context.Background()
	cID := uuid.New()
	user := domain.User{ID: uuid.New(), Email: "lee@example.com"}

	invs.On("ListPendingInvitationsByEmail", ctx, user.Email).Return(nil, nil)
	reqs.On("ListApprovedRequestsByEmail", ctx, user.Email).Return([]domain.JoinRequest{
		{ID: uuid.New(), CircleID: cID, Email: user.Email, Status: domain.JoinRequestApproved},
	}, nil)
	members.On("CreateMembership", ctx, "trace", mock.MatchedBy(func(m domain.Membership) bool {
		return m.CircleID == cID && m.UserID == user.ID && m.Status == domain.MembershipApproved
	})).Return(plainMembership(cID, user.ID), nil)

	out, err := svc.ClaimEmail(ctx, "trace", user)
	assert.NoError(t, err)
	assert.Len(t, out, 1)
	members.AssertExpectations(t)
}

// --- join requests ---

func TestJoinRequestService_Request_PublicCircleRefused(t *testing.T) {
	circles := new(MockCircles)
	svc := service.NewJoinRequestService(circles, new(MockMemberships), new(MockRequests), new(MockUsers), nil)
	ctx := context.Background()
	cID := uuid.New()

	circles.On("GetCircle", ctx, cID).Return(domain.Circle{ID: cID, IsPublic: true}, nil)

	_, err := svc.Request(ctx, "trace", cID, "a@b.com", "hi")
	assert.ErrorIs(t, err, domain.ErrCircleIsPublic)
}

func TestJoinRequestService_Request_LiveMemberRefused(t *testing.T) {
	circles := new(MockCircles)
	members := new(MockMemberships)
	users := new(MockUsers)
	svc := service.NewJoinRequestService(circles, members, new(MockRequests), users, nil)
	ctx := context.Background()
	cID := uuid.New()
	u := &domain.User{ID: uuid.New(), Email: "member@example.com"}

	circles.On("GetCircle", ctx, cID).Return(domain.Circle{ID: cID, IsPublic: false}, nil)
	users.On("FindUserByEmail", ctx, "member@example.com").Return(u, nil)
	members.On("GetMembership", ctx, cID, u.ID).Return(plainMembership(cID, u.ID), nil)

	_, err := svc.Request(ctx, "trace", cID, "member@example.com", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)
}

func TestJoinRequestService_Review_ApprovePassesMatchedUser(t *testing.T) {
	circles := new(MockCircles)
	members := new(MockMemberships)
	reqs := new(MockRequests)
	users := new(MockUsers)
	svc := service.NewJoinRequestService(circles, members, reqs, users, nil)
	ctx := context.Background()
	cID := uuid.New()
	admin := uuid.New()
	matched := &domain.User{ID: uuid.New(), Email: "req@example.com"}
	jr := domain.JoinRequest{ID: uuid.New(), CircleID: cID, Email: matched.Email, Status: domain.JoinRequestPending}

	reqs.On("GetJoinRequest", ctx, jr.ID).Return(jr, nil)
	members.On("GetMembership", ctx, cID, admin).Return(adminMembership(cID, admin), nil)
	users.On("FindUserByEmail", ctx, matched.Email).Return(matched, nil)
	approvedJR := jr
	approvedJR.Status = domain.JoinRequestApproved
	newMember := plainMembership(cID, matched.ID)
	reqs.On("ReviewJoinRequest", ctx, "trace", jr.ID, domain.DecisionApprove, &matched.ID).
		Return(approvedJR, &newMember, nil)

	reviewed, mem, err := svc.Review(ctx, "trace", jr.ID, admin, domain.DecisionApprove)
	assert.NoError(t, err)
	assert.Equal(t, domain.JoinRequestApproved, reviewed.Status)
	assert.NotNil(t, mem)
	reqs.AssertExpectations(t)
}

// --- broadcast ---

func TestBroadcastService_Send_WordLimitEnforced(t *testing.T) {
	members := new(MockMemberships)
	svc := service.NewBroadcastService(members, nil)
	ctx := context.Background()
	cID := uuid.New()
	admin := uuid.New()

	members.On("GetMembership", ctx, cID, admin).Return(adminMembership(cID, admin), nil)

	long := strings.Repeat("word ", domain.BroadcastWordLimit+1)
	_, err := svc.Send(ctx, "trace", cID, admin, long)
	assert.ErrorIs(t, err, domain.ErrMessageTooLong)
	members.AssertNotCalled(t, "BroadcastToApproved", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBroadcastService_Send_ReturnsRecipientCount(t *testing.T) {
	members := new(MockMemberships)
	svc := service.NewBroadcastService(members, nil)
	ctx := context.Background()
	cID := uuid.New()
	admin := uuid.New()

	members.On("GetMembership", ctx, cID, admin).Return(adminMembership(cID, admin), nil)
	members.On("BroadcastToApproved", ctx, "trace", cID, admin, "meeting moved to 7pm").Return(12, nil)

	n, err := svc.Send(ctx, "trace", cID, admin, "meeting moved to 7pm")
	assert.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestBroadcastService_Send_NonAdminDenied(t *testing.T) {
	members := new(MockMemberships)
	svc := service.NewBroadcastService(members, nil)
	ctx := context.Background()
	cID := uuid.New()
	sender := uuid.New()

	members.On("GetMembership", ctx, cID, sender).Return(plainMembership(cID, sender), nil)

	_, err := svc.Send(ctx, "trace", cID, sender, "hello")
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
}
