// Package memory is a mutex-guarded implementation of every repository
// port. It backs handler tests and local development without postgres; the
// semantics mirror the postgres implementation, including capacity checks
// and duplicate detection.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/domain"
)

// Notification is what BroadcastToApproved enqueues per recipient.
type Notification struct {
	CircleID    uuid.UUID
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Message     string
	TraceID     string
	CreatedAt   time.Time
}

type Store struct {
	mu sync.Mutex

	circles       map[uuid.UUID]domain.Circle
	memberships   map[uuid.UUID]domain.Membership
	invitations   map[uuid.UUID]domain.Invitation
	requests      map[uuid.UUID]domain.JoinRequest
	events        map[uuid.UUID]domain.Event
	registrations map[uuid.UUID]domain.Registration
	byTicket      map[string]uuid.UUID
	usersByEmail  map[string]domain.User

	notifications []Notification
}

func NewStore() *Store {
	return &Store{
		circles:       make(map[uuid.UUID]domain.Circle),
		memberships:   make(map[uuid.UUID]domain.Membership),
		invitations:   make(map[uuid.UUID]domain.Invitation),
		requests:      make(map[uuid.UUID]domain.JoinRequest),
		events:        make(map[uuid.UUID]domain.Event),
		registrations: make(map[uuid.UUID]domain.Registration),
		byTicket:      make(map[string]uuid.UUID),
		usersByEmail:  make(map[string]domain.User),
	}
}

// AddUser seeds the user directory.
func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usersByEmail[domain.NormalizeEmail(u.Email)] = u
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// Notifications returns a copy of everything broadcast so far.
func (s *Store) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}
