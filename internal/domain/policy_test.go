package domain_test

import (
	"strings"
	"testing"

	"github.com/kartalink/circle-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestWordCount(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected int
	}{
		{"Empty", "", 0},
		{"Whitespace only", "   \n\t ", 0},
		{"Single word", "halo", 1},
		{"Collapses runs of whitespace", "a  b\t\nc", 3},
		{"At the limit", strings.Repeat("word ", domain.BroadcastWordLimit), domain.BroadcastWordLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, domain.WordCount(tt.message))
		})
	}
}

func TestValidRSVPStatus(t *testing.T) {
	assert.True(t, domain.ValidRSVPStatus(domain.RSVPOnTime))
	assert.True(t, domain.ValidRSVPStatus(domain.RSVPLate))
	assert.True(t, domain.ValidRSVPStatus(domain.RSVPAbsent))

	assert.False(t, domain.ValidRSVPStatus(""))
	assert.False(t, domain.ValidRSVPStatus("hadir tepat waktu")) // case matters
	assert.False(t, domain.ValidRSVPStatus("Maybe"))
}
