package domain

import (
	"crypto/rand"
	"encoding/base32"
)

// Crockford alphabet: no I, L, O, U, so tickets survive being read aloud or
// retyped from a confirmation mail.
var ticketEncoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// TicketNumberLength is the encoded length of a ticket: 16 random bytes
// (128 bits) in base32.
const TicketNumberLength = 26

// NewTicketNumber returns a fresh ticket number. The ticket is the only
// credential for RSVP submission, so it must not be guessable: 128 bits from
// crypto/rand, never a sequence.
func NewTicketNumber() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failure means the platform is broken; refusing to
		// issue a weak ticket is the only safe move.
		panic("ticket: crypto/rand unavailable: " + err.Error())
	}
	return ticketEncoding.EncodeToString(b[:])
}
