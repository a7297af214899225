package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kartalink/circle-service/internal/domain"
)

// Cache is the in-process stand-in for the redis count cache.
type Cache struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int

	// AllowAll short-circuits the rate limiter; handler tests flip it off to
	// exercise the 429 path.
	AllowAll bool
}

func NewCache() *Cache {
	return &Cache{counts: make(map[uuid.UUID]int), AllowAll: true}
}

func (c *Cache) GetAdmittedCount(ctx context.Context, eventID uuid.UUID) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.counts[eventID]
	if !ok {
		return 0, domain.ErrCacheMiss
	}
	return n, nil
}

func (c *Cache) SetAdmittedCount(ctx context.Context, eventID uuid.UUID, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[eventID] = n
	return nil
}

func (c *Cache) InvalidateAdmittedCount(ctx context.Context, eventID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, eventID)
	return nil
}

func (c *Cache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.AllowAll, nil
}

// ProofStore keeps proof uploads in a map and hands back a fake URL.
type ProofStore struct {
	mu    sync.Mutex
	blobs map[uuid.UUID][]byte
}

func NewProofStore() *ProofStore {
	return &ProofStore{blobs: make(map[uuid.UUID][]byte)}
}

func (p *ProofStore) StoreProof(ctx context.Context, registrationID uuid.UUID, contentType string, data []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	p.blobs[registrationID] = buf
	return "memory://proofs/" + registrationID.String(), nil
}
