package domain

import (
	"strings"
	"time"
)

// Broadcast policy: messages are bounded by word count, not bytes, because
// the delivery channels (mail, WhatsApp) truncate on words.
const BroadcastWordLimit = 250

func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Invitations expire a week after issue unless the admin passes an explicit
// TTL. Expiry is evaluated lazily on read, never by a sweeper.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// RSVP statuses are a fixed enumeration carried verbatim from the attendance
// forms ("on time" / "late" / "absent").
const (
	RSVPOnTime = "Hadir Tepat Waktu"
	RSVPLate   = "Hadir Terlambat"
	RSVPAbsent = "Tidak Hadir"
)

func ValidRSVPStatus(s string) bool {
	switch s {
	case RSVPOnTime, RSVPLate, RSVPAbsent:
		return true
	default:
		return false
	}
}
