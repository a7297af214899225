package domain_test

import (
	"testing"

	"github.com/kartalink/circle-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewTicketNumber_Shape(t *testing.T) {
	tk := domain.NewTicketNumber()
	assert.Len(t, tk, domain.TicketNumberLength)

	for _, r := range tk {
		assert.Contains(t, "0123456789ABCDEFGHJKMNPQRSTVWXYZ", string(r))
	}
}

func TestNewTicketNumber_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tk := domain.NewTicketNumber()
		_, dup := seen[tk]
		assert.False(t, dup, "duplicate ticket %s", tk)
		seen[tk] = struct{}{}
	}
}
