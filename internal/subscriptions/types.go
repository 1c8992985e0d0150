// Package subscriptions holds standing buy interests and matches them against
// newly published listings.
package subscriptions

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RequestLifetime is how long a buy request stays live.
const RequestLifetime = 30 * 24 * time.Hour

// BuyRequest is a buyer's recorded interest. Standing requests survive
// matches and keep notifying until they expire; one-shot requests are
// consumed by their first match.
type BuyRequest struct {
	ID           string
	BuyerAddress string
	Keywords     string
	Category     string
	MinPrice     float64
	MaxPrice     float64 // 0 means unbounded
	Standing     bool
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// ErrNotFound indicates no buy request exists for the given id.
var ErrNotFound = errors.New("buy request not found")

var (
	rangePattern = regexp.MustCompile(`^\$?\s*([\d,]+(?:\.\d+)?)\s*(?:-|to)\s*\$?\s*([\d,]+(?:\.\d+)?)$`)
	underPattern = regexp.MustCompile(`^(?:under|below|max|up to|<)\s*\$?\s*([\d,]+(?:\.\d+)?)$`)
	overPattern  = regexp.MustCompile(`^(?:over|above|min|at least|>)\s*\$?\s*([\d,]+(?:\.\d+)?)$|^\$?\s*([\d,]+(?:\.\d+)?)\s*\+$`)
	barePattern  = regexp.MustCompile(`^\$?\s*([\d,]+(?:\.\d+)?)$`)
)

// ParsePriceRange interprets a buyer's free-text budget. Accepted shapes:
// "50-100", "$50 to $100", "under 100", "over 50", "50+", and a bare number,
// which is read as a maximum. Returns ok=false when nothing parses.
func ParsePriceRange(text string) (min, max float64, ok bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return 0, 0, false
	}
	if m := rangePattern.FindStringSubmatch(lowered); m != nil {
		lo, err1 := parseAmount(m[1])
		hi, err2 := parseAmount(m[2])
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return lo, hi, true
	}
	if m := underPattern.FindStringSubmatch(lowered); m != nil {
		hi, err := parseAmount(m[1])
		if err != nil {
			return 0, 0, false
		}
		return 0, hi, true
	}
	if m := overPattern.FindStringSubmatch(lowered); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		lo, err := parseAmount(raw)
		if err != nil {
			return 0, 0, false
		}
		return lo, 0, true
	}
	if m := barePattern.FindStringSubmatch(lowered); m != nil {
		hi, err := parseAmount(m[1])
		if err != nil {
			return 0, 0, false
		}
		return 0, hi, true
	}
	return 0, 0, false
}

func parseAmount(raw string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
}
