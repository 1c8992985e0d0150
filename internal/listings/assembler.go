package listings

import (
	"context"
	"log/slog"
	"time"
)

// creator is the slice of Store the assembler writes through.
type creator interface {
	Create(ctx context.Context, l Listing) (Listing, error)
	Renew(ctx context.Context, id string, now time.Time) (Listing, error)
}

// Notifier receives a freshly published listing to match against standing buy
// requests. Implementations must be safe to call concurrently.
type Notifier interface {
	NotifyMatches(ctx context.Context, l Listing)
}

// Publisher announces a published listing to interested external consumers.
type Publisher interface {
	ListingPublished(ctx context.Context, l Listing) error
}

// sideEffectTimeout bounds the post-publish fan-out so a stuck collaborator
// cannot pin a goroutine forever.
const sideEffectTimeout = 15 * time.Second

// Assembler turns the accumulated fields of a finished selling conversation
// into a persisted listing, computing the lifecycle status from the
// completeness invariant and firing the post-publish side effects.
type Assembler struct {
	store    creator
	notifier Notifier
	events   Publisher
	logger   *slog.Logger
}

// NewAssembler creates the assembler. notifier and events may be nil; the
// corresponding side effect is then skipped.
func NewAssembler(log *slog.Logger, store creator, notifier Notifier, events Publisher) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{
		store:    store,
		notifier: notifier,
		events:   events,
		logger:   log.With(slog.String("service", "assembler")),
	}
}

// Assemble persists the draft for the seller. A complete draft goes straight
// to published with expiry now + Lifetime; an incomplete one is stored as a
// draft. Subscription matching and the published event run asynchronously and
// best-effort: their failure never fails the publish.
func (a *Assembler) Assemble(ctx context.Context, sellerAddress string, f Fields, now time.Time) (Listing, error) {
	l := Listing{
		SellerAddress: sellerAddress,
		Title:         f.Title,
		Price:         f.Price,
		Category:      f.Category,
		Condition:     f.Condition,
		MeetingSpot:   f.MeetingSpot,
		ExternalLink:  f.ExternalLink,
		Images:        f.Images,
		Status:        StatusDraft,
		ExpiresAt:     now.Add(Lifetime),
	}
	if f.Complete() {
		l.Status = StatusPublished
		l.PublishedAt = now
	}

	created, err := a.store.Create(ctx, l)
	if err != nil {
		return Listing{}, err
	}

	if created.Status == StatusPublished {
		a.fanOut(created)
	}
	return created, nil
}

// Renew extends the listing's expiry to now + Lifetime unconditionally; the
// caller has already verified ownership and live status.
func (a *Assembler) Renew(ctx context.Context, id string, now time.Time) (Listing, error) {
	return a.store.Renew(ctx, id, now)
}

// fanOut runs the post-publish side effects detached from the request that
// triggered them.
func (a *Assembler) fanOut(l Listing) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if a.notifier != nil {
			a.notifier.NotifyMatches(ctx, l)
		}
		if a.events != nil {
			if err := a.events.ListingPublished(ctx, l); err != nil {
				a.logger.Warn("publish event failed",
					slog.String("listing_id", l.ID),
					slog.Any("error", err),
				)
			}
		}
	}()
}
