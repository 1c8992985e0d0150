// Package events announces marketplace happenings on NATS so out-of-process
// consumers (feed indexer, analytics) can follow along without coupling to
// the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dormline/dormline/internal/listings"
)

// ListingPublishedEvent is the wire shape of a publish announcement.
type ListingPublishedEvent struct {
	ListingID     string    `json:"listing_id"`
	SellerAddress string    `json:"seller_address"`
	Title         string    `json:"title"`
	Price         float64   `json:"price"`
	Category      string    `json:"category"`
	Condition     string    `json:"condition"`
	PublishedAt   time.Time `json:"published_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Publisher emits events to NATS. It satisfies the assembler's Publisher
// contract.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewPublisher creates a NATS-backed event publisher.
func NewPublisher(log *slog.Logger, conn *nats.Conn, subject string) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  log.With(slog.String("service", "events")),
	}
}

// ListingPublished announces a freshly published listing.
func (p *Publisher) ListingPublished(_ context.Context, l listings.Listing) error {
	event := ListingPublishedEvent{
		ListingID:     l.ID,
		SellerAddress: l.SellerAddress,
		Title:         l.Title,
		Price:         l.Price,
		Category:      l.Category,
		Condition:     l.Condition,
		PublishedAt:   l.PublishedAt,
		ExpiresAt:     l.ExpiresAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Connect dials NATS. Callers close the connection through the returned
// handle; a drain on shutdown flushes buffered events.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}
