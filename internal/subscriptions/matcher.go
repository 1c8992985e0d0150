package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dormline/dormline/internal/listings"
)

// requestSource is the slice of Store the matcher reads and consumes through.
type requestSource interface {
	Live(ctx context.Context, now time.Time) ([]BuyRequest, error)
	Delete(ctx context.Context, id string) error
}

// Sender delivers a text message to a channel address.
type Sender interface {
	SendText(ctx context.Context, address, text string) error
}

// Matcher checks newly published listings against live buy requests and
// notifies the buyers. It satisfies the assembler's Notifier contract; every
// failure inside is logged and swallowed so a publish never depends on it.
type Matcher struct {
	store  requestSource
	sender Sender
	logger *slog.Logger
}

// NewMatcher creates the matcher. sender may be nil in tests.
func NewMatcher(log *slog.Logger, store requestSource, sender Sender) *Matcher {
	if log == nil {
		log = slog.Default()
	}
	return &Matcher{
		store:  store,
		sender: sender,
		logger: log.With(slog.String("service", "matcher")),
	}
}

// NotifyMatches fans a published listing out to every matching buyer. The
// seller is never notified about their own request, and one-shot requests are
// consumed by their first match.
func (m *Matcher) NotifyMatches(ctx context.Context, l listings.Listing) {
	requests, err := m.store.Live(ctx, time.Now())
	if err != nil {
		m.logger.Error("load buy requests failed",
			slog.String("listing_id", l.ID),
			slog.Any("error", err),
		)
		return
	}

	for _, r := range requests {
		if r.BuyerAddress == l.SellerAddress {
			continue
		}
		if !Matches(r, l) {
			continue
		}
		m.notify(ctx, r, l)
		if !r.Standing {
			if err := m.store.Delete(ctx, r.ID); err != nil {
				m.logger.Warn("consume one-shot request failed",
					slog.String("request_id", r.ID),
					slog.Any("error", err),
				)
			}
		}
	}
}

// Matches reports whether a buy request covers the listing: a keyword or
// category overlap, and a price inside the requested band.
func Matches(r BuyRequest, l listings.Listing) bool {
	if r.MinPrice > 0 && l.Price < r.MinPrice {
		return false
	}
	if r.MaxPrice > 0 && l.Price > r.MaxPrice {
		return false
	}
	if r.Category != "" && strings.EqualFold(r.Category, l.Category) {
		return true
	}
	return keywordOverlap(r.Keywords, l.Title)
}

// keywordOverlap reports whether any requested keyword appears in the title.
// Single-character tokens are ignored as noise.
func keywordOverlap(keywords, title string) bool {
	loweredTitle := strings.ToLower(title)
	for _, word := range strings.Fields(strings.ToLower(keywords)) {
		word = strings.Trim(word, ",.!?")
		if len(word) < 2 {
			continue
		}
		if strings.Contains(loweredTitle, word) {
			return true
		}
	}
	return false
}

func (m *Matcher) notify(ctx context.Context, r BuyRequest, l listings.Listing) {
	if m.sender == nil {
		return
	}
	text := fmt.Sprintf(
		"Heads up! A new listing matches your request for %q: %s — $%.2f. Reply 'buy' to browse.",
		r.Keywords, l.Title, l.Price,
	)
	if err := m.sender.SendText(ctx, r.BuyerAddress, text); err != nil {
		m.logger.Warn("match notification failed",
			slog.String("request_id", r.ID),
			slog.String("listing_id", l.ID),
			slog.Any("error", err),
		)
	}
}
