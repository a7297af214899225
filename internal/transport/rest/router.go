package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/kartalink/circle-service/internal/domain"
	"github.com/kartalink/circle-service/internal/security"
)

type RouterDeps struct {
	Cache    domain.CountCache
	Handler  *Handler
	Verifier security.AccessTokenVerifier

	JWTIssuer string

	RateLimitEnabled bool
	RateLimit        int
	RateWindow       time.Duration
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Cache == nil {
		panic("rest.NewRouter: nil cache")
	}
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}
	if d.Verifier == nil {
		panic("rest.NewRouter: nil verifier")
	}
	if d.RateLimit <= 0 {
		d.RateLimit = 100
	}
	if d.RateWindow <= 0 {
		d.RateWindow = time.Minute
	}

	h := d.Handler

	r := chi.NewRouter()

	// Request ID + structured access log
	r.Use(RequestID)
	r.Use(HTTPLogger)

	// Panic recovery
	r.Use(middleware.Recoverer)

	// Cross-cutting
	r.Use(SecurityHeaders)

	requireAuth := AuthMiddleware(d.Verifier, AuthOptions{ExpectedIssuer: d.JWTIssuer})
	optionalAuth := AuthMiddleware(d.Verifier, AuthOptions{ExpectedIssuer: d.JWTIssuer, Optional: true})

	r.Route("/api/v1", func(r chi.Router) {
		// Public: anonymous registration, RSVP, join requests and the count
		// render. Double limiter: in-process burst guard plus the shared
		// redis fixed window.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(30, time.Minute))
			if d.RateLimitEnabled {
				r.Use(RateLimitMiddleware(d.Cache, d.RateLimit, d.RateWindow))
			}

			r.Post("/circles/{circleID}/join-requests", h.RequestJoin)
			r.Post("/events/{eventID}/registrations", h.Register)
			r.Get("/events/{eventID}/count", h.RegistrationCount)
			r.Get("/events/{eventID}", h.GetEvent)
			r.Post("/registrations/{registrationID}/proof", h.AttachProof)
			r.Post("/rsvp", h.SubmitRSVP)
		})

		// Readable with or without a token.
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/circles/{circleID}", h.GetCircle)
		})

		// Authenticated.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/circles", h.CreateCircle)
			r.Get("/me/circles", h.MyCircles)
			r.Post("/claims", h.ClaimEmail)

			r.Post("/circles/{circleID}/join", h.Join)
			r.Delete("/circles/{circleID}/membership", h.Leave)
			r.Post("/memberships/{membershipID}/review", h.ReviewMembership)
			r.Delete("/memberships/{membershipID}", h.RemoveMember)
			r.Get("/circles/{circleID}/members", h.ListMembers)

			r.Post("/circles/{circleID}/invitations", h.Invite)
			r.Get("/circles/{circleID}/invitations", h.ListInvitations)
			r.Delete("/invitations/{invitationID}", h.CancelInvitation)

			r.Get("/circles/{circleID}/join-requests", h.ListJoinRequests)
			r.Post("/join-requests/{requestID}/review", h.ReviewJoinRequest)

			r.Post("/circles/{circleID}/events", h.CreateEvent)
			r.Patch("/events/{eventID}/capacity", h.UpdateEventCapacity)
			r.Get("/events/{eventID}/registrations", h.ListRegistrations)
			r.Post("/registrations/{registrationID}/status", h.UpdateRegistrationStatus)

			r.Post("/circles/{circleID}/broadcast", h.Broadcast)
		})
	})

	return r
}
