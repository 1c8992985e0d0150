// Package users persists per-address marketplace users: trust standing,
// listing counters, and the durable conversation state that carries a chat
// flow across webhook deliveries.
package users

import (
	"errors"
	"time"
)

// TrustLevel is the coarse reputation tier gating rate limits.
type TrustLevel string

const (
	TrustBasic        TrustLevel = "basic"
	TrustTrusted      TrustLevel = "trusted"
	TrustShadowBanned TrustLevel = "shadow_banned"
)

// Valid reports whether the trust level is one of the known tiers.
func (t TrustLevel) Valid() bool {
	switch t {
	case TrustBasic, TrustTrusted, TrustShadowBanned:
		return true
	default:
		return false
	}
}

// User is a marketplace user keyed by their messaging-channel address.
//
// DailyListingCount is only meaningful relative to LastListingDate: a day
// boundary crossing makes the effective count zero without rewriting the row.
// ConversationState and ConversationData are opaque here; the conversation
// package owns their typed representation. StateVersion guards the
// read-modify-write of conversation state against concurrent deliveries.
type User struct {
	Address           string
	TrustLevel        TrustLevel
	DailyListingCount int
	LastListingDate   time.Time
	SpamAttempts      int
	ConversationState string
	ConversationData  []byte
	StateVersion      int64
	ConsentedAt       time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Consented reports whether the user has accepted the onboarding consent gate.
func (u User) Consented() bool {
	return !u.ConsentedAt.IsZero()
}

var (
	// ErrNotFound indicates no user exists for the given address.
	ErrNotFound = errors.New("user not found")
	// ErrStateConflict indicates a conversation-state save lost a
	// compare-and-swap race with a concurrent delivery.
	ErrStateConflict = errors.New("conversation state version conflict")
)
