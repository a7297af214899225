package rest

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kartalink/circle-service/internal/domain"
	appCtx "github.com/kartalink/circle-service/internal/pkg/context"
	"github.com/kartalink/circle-service/internal/transport/rest/response"
)

// maxProofBytes caps payment-proof uploads at 5 MiB.
const maxProofBytes = 5 << 20

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	circleID, ok := pathUUID(w, r, "circleID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Title                string `json:"title" validate:"required,max=120"`
		Description          string `json:"description" validate:"max=4000"`
		StartsAt             string `json:"starts_at" validate:"required"`
		MaxParticipants      int    `json:"max_participants" validate:"required,min=1"`
		RequiresPaymentProof bool   `json:"requires_payment_proof"`
	}
	if !h.decodeValid(w, r, &req) {
		return
	}

	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartsAt))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid starts_at", map[string]string{
			"starts_at": "must be RFC3339",
		})
		return
	}

	ev, err := h.events.CreateEvent(r.Context(), appCtx.TraceID(r.Context()), circleID, auth.UserID,
		req.Title, req.Description, startsAt, req.MaxParticipants, req.RequiresPaymentProof)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, eventView(ev))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}

	ev, err := h.events.GetEvent(r.Context(), eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, eventView(ev))
}

func (h *Handler) UpdateEventCapacity(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		MaxParticipants int `json:"max_participants" validate:"required,min=1"`
	}
	if !h.decodeValid(w, r, &req) {
		return
	}

	ev, err := h.events.UpdateCapacity(r.Context(), appCtx.TraceID(r.Context()), eventID, auth.UserID, req.MaxParticipants)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, eventView(ev))
}

// Register is the public admission endpoint. No account needed: name and
// email are enough, the ticket number in the response is the credential for
// everything that follows.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}

	var req struct {
		Name  string `json:"name" validate:"required,max=120"`
		Email string `json:"email" validate:"required,email"`
	}
	if !h.decodeValid(w, r, &req) {
		return
	}

	reg, err := h.events.Register(r.Context(), appCtx.TraceID(r.Context()), eventID, req.Name, req.Email)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, registrationView(reg))
}

func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	regs, err := h.events.ListRegistrations(r.Context(), appCtx.TraceID(r.Context()), eventID, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(regs))
	for _, reg := range regs {
		items = append(items, registrationView(reg))
	}
	response.Data(w, http.StatusOK, map[string]any{"items": items})
}

// RegistrationCount serves the public "N / capacity" render.
func (h *Handler) RegistrationCount(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}

	ev, err := h.events.GetEvent(r.Context(), eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	n, err := h.events.Count(r.Context(), eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, map[string]any{
		"count":            n,
		"max_participants": ev.MaxParticipants,
	})
}

func (h *Handler) UpdateRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	registrationID, ok := pathUUID(w, r, "registrationID")
	if !ok {
		return
	}
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if !h.decodeValid(w, r, &req) {
		return
	}
	status, err := domain.ParseRegistrationStatus(req.Status)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	reg, err := h.events.UpdateRegistrationStatus(r.Context(), appCtx.TraceID(r.Context()), registrationID, auth.UserID, status)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, registrationView(reg))
}

// AttachProof takes the raw upload body; the Content-Type header travels
// with it to the proof store.
func (h *Handler) AttachProof(w http.ResponseWriter, r *http.Request) {
	registrationID, ok := pathUUID(w, r, "registrationID")
	if !ok {
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxProofBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		fail(w, r, http.StatusRequestEntityTooLarge, "proof.too_large", "proof exceeds the size limit", nil)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	reg, err := h.events.AttachProof(r.Context(), appCtx.TraceID(r.Context()), registrationID, contentType, data)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, registrationView(reg))
}

func (h *Handler) SubmitRSVP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TicketNumber string `json:"ticket_number" validate:"required"`
		RSVPStatus   string `json:"rsvp_status" validate:"required"`
	}
	if !h.decodeValid(w, r, &req) {
		return
	}

	reg, err := h.events.SubmitRSVP(r.Context(), appCtx.TraceID(r.Context()), req.TicketNumber, req.RSVPStatus)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, registrationView(reg))
}

func eventView(ev domain.Event) map[string]any {
	return map[string]any{
		"id":                     ev.ID,
		"circle_id":              ev.CircleID,
		"title":                  ev.Title,
		"description":            ev.Description,
		"starts_at":              ev.StartsAt,
		"max_participants":       ev.MaxParticipants,
		"requires_payment_proof": ev.RequiresPaymentProof,
		"status":                 ev.Status,
	}
}

func registrationView(reg domain.Registration) map[string]any {
	return map[string]any{
		"id":            reg.ID,
		"event_id":      reg.EventID,
		"ticket_number": reg.TicketNumber,
		"name":          reg.Name,
		"email":         reg.Email,
		"status":        reg.Status,
		"rsvp_status":   reg.RSVPStatus,
		"proof_url":     reg.ProofURL,
		"created_at":    reg.CreatedAt,
	}
}
