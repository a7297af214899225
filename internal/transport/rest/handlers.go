package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/domain"
	appCtx "github.com/kartalink/circle-service/internal/pkg/context"
	"github.com/kartalink/circle-service/internal/pkg/logger"
	"github.com/kartalink/circle-service/internal/service"
	"github.com/kartalink/circle-service/internal/transport/rest/response"
)

type Handler struct {
	circles     *service.CircleService
	memberships *service.MembershipService
	invitations *service.InvitationService
	requests    *service.JoinRequestService
	events      *service.EventService
	broadcast   *service.BroadcastService

	validate *validator.Validate
}

func NewHandler(
	circles *service.CircleService,
	memberships *service.MembershipService,
	invitations *service.InvitationService,
	requests *service.JoinRequestService,
	events *service.EventService,
	broadcast *service.BroadcastService,
) *Handler {
	return &Handler{
		circles:     circles,
		memberships: memberships,
		invitations: invitations,
		requests:    requests,
		events:      events,
		broadcast:   broadcast,
		validate:    validator.New(),
	}
}

// decodeValid decodes the JSON body into dst and runs struct validation.
// Returns false after writing the 400 response.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		meta := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				meta[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		fail(w, r, http.StatusBadRequest, "request.invalid", "validation failed", meta)
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid "+name, map[string]string{
			name: "must be a valid uuid",
		})
		return uuid.Nil, false
	}
	return id, true
}

func mustAuth(w http.ResponseWriter, r *http.Request) (AuthContext, bool) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return AuthContext{}, false
	}
	return auth, true
}

// --- circles ---

func (h *Handler) CreateCircle(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Name            string `json:"name" validate:"required,max=120"`
		Username        string `json:"username" validate:"max=60"`
		IsPublic        bool   `json:"is_public"`
		RequireApproval bool   `json:"require_approval"`
	}
	if !h.decodeValid(w, r, &req) {
		return
	}

	c, err := h.circles.Create(r.Context(), appCtx.TraceID(r.Context()), auth.UserID, req.Name, req.Username, req.IsPublic, req.RequireApproval)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, circleView(c))
}

func (h *Handler) GetCircle(w http.ResponseWriter, r *http.Request) {
	circleID, ok := pathUUID(w, r, "circleID")
	if !ok {
		return
	}

	c, err := h.circles.Get(r.Context(), circleID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, circleView(c))
}

func (h *Handler) MyCircles(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	cs, err := h.circles.ListMine(r.Context(), auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(cs))
	for _, c := range cs {
		items = append(items, circleView(c))
	}
	response.Data(w, http.StatusOK, map[string]any{"items": items})
}

func circleView(c domain.Circle) map[string]any {
	return map[string]any{
		"id":               c.ID,
		"name":             c.Name,
		"username":         c.Username,
		"is_public":        c.IsPublic,
		"require_approval": c.RequireApproval,
		"owner_id":         c.OwnerID,
		"created_at":       c.CreatedAt,
	}
}

// --- memberships ---

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	circleID, ok := pathUUID(w, r, "circleID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	m, err := h.memberships.Join(r.Context(), appCtx.TraceID(r.Context()), circleID, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, membershipView(m))
}

func (h *Handler) ReviewMembership(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := pathUUID(w, r, "membershipID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Decision string `json:"decision" validate:"required"`
	}
	if !h.decodeValid(w, r, &req) {
		return
	}
	decision, err := domain.ParseReviewDecision(req.Decision)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	m, err := h.memberships.Review(r.Context(), appCtx.TraceID(r.Context()), membershipID, auth.UserID, decision)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, membershipView(m))
}

func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	circleID, ok := pathUUID(w, r, "circleID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	if err := h.memberships.Leave(r.Context(), appCtx.TraceID(r.Context()), circleID, auth.UserID); err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, map[string]string{"msg": "left"})
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := pathUUID(w, r, "membershipID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	if err := h.memberships.Remove(r.Context(), appCtx.TraceID(r.Context()), membershipID, auth.UserID); err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, map[string]string{"msg": "removed"})
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	circleID, ok := pathUUID(w, r, "circleID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var status *domain.MembershipStatus
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		v := domain.MembershipStatus(strings.ToLower(s))
		switch v {
		case domain.MembershipPending, domain.MembershipApproved, domain.MembershipRejected:
			status = &v
		default:
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid status filter", nil)
			return
		}
	}

	ms, err := h.memberships.ListMembers(r.Context(), appCtx.TraceID(r.Context()), circleID, auth.UserID, status)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(ms))
	for _, m := range ms {
		items = append(items, membershipView(m))
	}
	response.Data(w, http.StatusOK, map[string]any{"items": items})
}

func membershipView(m domain.Membership) map[string]any {
	return map[string]any{
		"id":        m.ID,
		"circle_id": m.CircleID,
		"user_id":   m.UserID,
		"status":    m.Status,
		"is_admin":  m.IsAdmin,
		"joined_at": m.JoinedAt,
	}
}

// --- invitations ---

func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	circleID, ok := pathUUID(w, r, "circleID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !h.decodeValid(w, r, &req) {
		return
	}

	out, err := h.invitations.Invite(r.Context(), appCtx.TraceID(r.Context()), circleID, auth.UserID, req.Email)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	if out.Membership != nil {
		response.Data(w, http.StatusCreated, map[string]any{"membership": membershipView(*out.Membership)})
		return
	}
	response.Data(w, http.StatusCreated, map[string]any{"invitation": invitationView(*out.Invitation)})
}

func (h *Handler) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	invitationID, ok := pathUUID(w, r, "invitationID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	inv, err := h.invitations.Cancel(r.Context(), appCtx.TraceID(r.Context()), invitationID, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, invitationView(inv))
}

func (h *Handler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	circleID, ok := pathUUID(w, r, "circleID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	invs, err := h.invitations.List(r.Context(), appCtx.TraceID(r.Context()), circleID, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(invs))
	for _, inv := range invs {
		items = append(items, invitationView(inv))
	}
	response.Data(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ClaimEmail(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	ms, err := h.invitations.ClaimEmail(r.Context(), appCtx.TraceID(r.Context()), domain.User{
		ID:    auth.UserID,
		Name:  auth.Name,
		Email: auth.Email,
	})
	if err != nil {
		handleErr(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(ms))
	for _, m := range ms {
		items = append(items, membershipView(m))
	}
	response.Data(w, http.StatusOK, map[string]any{"memberships": items})
}

func invitationView(inv domain.Invitation) map[string]any {
	return map[string]any{
		"id":         inv.ID,
		"circle_id":  inv.CircleID,
		"email":      inv.Email,
		"status":     inv.Status,
		"expires_at": inv.ExpiresAt,
		"created_at": inv.CreatedAt,
	}
}

// --- join requests ---

func (h *Handler) RequestJoin(w http.ResponseWriter, r *http.Request) {
	circleID, ok := pathUUID(w, r, "circleID")
	if !ok {
		return
	}

	var req struct {
		Email   string `json:"email" validate:"required,email"`
		Message string `json:"message" validate:"max=2000"`
	}
	if !h.decodeValid(w, r, &req) {
		return
	}

	jr, err := h.requests.Request(r.Context(), appCtx.TraceID(r.Context()), circleID, req.Email, req.Message)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, joinRequestView(jr))
}

func (h *Handler) ReviewJoinRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathUUID(w, r, "requestID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Decision string `json:"decision" validate:"required"`
	}
	if !h.decodeValid(w, r, &req) {
		return
	}
	decision, err := domain.ParseReviewDecision(req.Decision)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	jr, membership, err := h.requests.Review(r.Context(), appCtx.TraceID(r.Context()), requestID, auth.UserID, decision)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	body := map[string]any{"request": joinRequestView(jr)}
	if membership != nil {
		body["membership"] = membershipView(*membership)
	}
	response.Data(w, http.StatusOK, body)
}

func (h *Handler) ListJoinRequests(w http.ResponseWriter, r *http.Request) {
	circleID, ok := pathUUID(w, r, "circleID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	jrs, err := h.requests.List(r.Context(), appCtx.TraceID(r.Context()), circleID, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(jrs))
	for _, jr := range jrs {
		items = append(items, joinRequestView(jr))
	}
	response.Data(w, http.StatusOK, map[string]any{"items": items})
}

func joinRequestView(jr domain.JoinRequest) map[string]any {
	return map[string]any{
		"id":         jr.ID,
		"circle_id":  jr.CircleID,
		"email":      jr.Email,
		"message":    jr.Message,
		"status":     jr.Status,
		"created_at": jr.CreatedAt,
	}
}

// --- broadcast ---

func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	circleID, ok := pathUUID(w, r, "circleID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message" validate:"required"`
	}
	if !h.decodeValid(w, r, &req) {
		return
	}

	n, err := h.broadcast.Send(r.Context(), appCtx.TraceID(r.Context()), circleID, auth.UserID, req.Message)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusAccepted, map[string]any{"recipients": n})
}

func handleErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		fail(w, r, http.StatusBadRequest, "request.invalid", err.Error(), nil)
	case errors.Is(err, domain.ErrMessageTooLong):
		fail(w, r, http.StatusBadRequest, "broadcast.too_long", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidRSVPStatus):
		fail(w, r, http.StatusBadRequest, "rsvp.invalid_status", err.Error(), nil)

	case errors.Is(err, domain.ErrNotAuthorized):
		// already audit-logged at the service layer
		fail(w, r, http.StatusForbidden, "auth.forbidden", err.Error(), nil)
	case errors.Is(err, domain.ErrForbiddenDirectJoin):
		fail(w, r, http.StatusForbidden, "circle.private", err.Error(), nil)

	case errors.Is(err, domain.ErrCircleIsPublic):
		fail(w, r, http.StatusConflict, "circle.public", err.Error(), nil)
	case errors.Is(err, domain.ErrOwnerCannotLeave):
		fail(w, r, http.StatusConflict, "circle.owner_locked", err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyMember):
		fail(w, r, http.StatusConflict, "membership.exists", err.Error(), nil)
	case errors.Is(err, domain.ErrDuplicatePendingInvitation):
		fail(w, r, http.StatusConflict, "invitation.duplicate", err.Error(), nil)
	case errors.Is(err, domain.ErrDuplicatePendingRequest):
		fail(w, r, http.StatusConflict, "join_request.duplicate", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidTransition):
		logger.WithCtx(r.Context()).Warn().Err(err).Msg("invalid state transition rejected")
		fail(w, r, http.StatusConflict, "state.invalid_transition", err.Error(), nil)
	case errors.Is(err, domain.ErrEventFull):
		fail(w, r, http.StatusConflict, "event.full", err.Error(), nil)
	case errors.Is(err, domain.ErrCapacityBelowConfirmed):
		fail(w, r, http.StatusConflict, "event.capacity_below_confirmed", err.Error(), nil)
	case errors.Is(err, domain.ErrConflict):
		fail(w, r, http.StatusConflict, "conflict.retry", err.Error(), nil)

	case errors.Is(err, domain.ErrEventClosed):
		fail(w, r, http.StatusGone, "event.closed", err.Error(), nil)

	case errors.Is(err, domain.ErrCircleNotFound):
		fail(w, r, http.StatusNotFound, "circle.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrMembershipNotFound):
		fail(w, r, http.StatusNotFound, "membership.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrInvitationNotFound):
		fail(w, r, http.StatusNotFound, "invitation.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrJoinRequestNotFound):
		fail(w, r, http.StatusNotFound, "join_request.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrEventNotFound):
		fail(w, r, http.StatusNotFound, "event.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrRegistrationNotFound):
		fail(w, r, http.StatusNotFound, "registration.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrTicketNotFound):
		fail(w, r, http.StatusNotFound, "ticket.not_found", err.Error(), nil)

	default:
		// Do not leak internal details.
		logger.WithCtx(r.Context()).Error().Err(err).Msg("unhandled service error")
		fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	response.Fail(w, status, code, message, meta, appCtx.TraceID(r.Context()))
}
