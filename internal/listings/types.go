// Package listings owns the marketplace listing records: their completeness
// invariant, persistence, and the assembler that turns a finished selling
// conversation into a published listing.
package listings

import (
	"errors"
	"math"
	"time"
)

// Status is the listing lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReady     Status = "ready"
	StatusPublished Status = "published"
	StatusExpired   Status = "expired"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusReady, StatusPublished, StatusExpired:
		return true
	default:
		return false
	}
}

// Active reports whether the status counts against the seller's active-listing
// allowance.
func (s Status) Active() bool {
	return s == StatusReady || s == StatusPublished
}

// Lifetime of a listing from publication or renewal.
const Lifetime = 14 * 24 * time.Hour

// Listing is a marketplace listing.
type Listing struct {
	ID            string
	SellerAddress string
	Title         string
	Price         float64
	Category      string
	Condition     string
	MeetingSpot   string
	ExternalLink  string
	Images        []string
	Status        Status
	ExpiresAt     time.Time
	PublishedAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Fields is the accumulated draft content handed over by a finished selling
// conversation.
type Fields struct {
	Title        string
	Price        float64
	Category     string
	Condition    string
	MeetingSpot  string
	ExternalLink string
	Images       []string
}

// Complete reports whether the draft satisfies the publishability invariant:
// non-empty title, positive finite price, at least one image.
func (f Fields) Complete() bool {
	return f.Title != "" && f.Price > 0 && !math.IsInf(f.Price, 1) && len(f.Images) > 0
}

// ErrNotFound indicates no listing exists for the given id.
var ErrNotFound = errors.New("listing not found")
