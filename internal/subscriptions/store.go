package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists buy requests in Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a buy-request store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("store", "subscriptions")),
	}
}

const requestColumns = `id, buyer_address, keywords, category, min_price,
	max_price, standing, expires_at, created_at`

// Create inserts a new buy request, stamping expiry at now + RequestLifetime
// when unset.
func (s *Store) Create(ctx context.Context, r BuyRequest) (BuyRequest, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ExpiresAt.IsZero() {
		r.ExpiresAt = time.Now().Add(RequestLifetime)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO buy_requests (id, buyer_address, keywords, category,
		     min_price, max_price, standing, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+requestColumns,
		r.ID, r.BuyerAddress, r.Keywords, r.Category,
		r.MinPrice, r.MaxPrice, r.Standing, r.ExpiresAt)
	created, err := scanRequest(row)
	if err != nil {
		return BuyRequest{}, fmt.Errorf("create buy request: %w", err)
	}
	return created, nil
}

// Live returns every unexpired buy request, for matching against a newly
// published listing.
func (s *Store) Live(ctx context.Context, now time.Time) ([]BuyRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM buy_requests WHERE expires_at > $1`,
		now)
	if err != nil {
		return nil, fmt.Errorf("list live buy requests: %w", err)
	}
	defer rows.Close()
	var items []BuyRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan buy request: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// Delete removes a buy request, used to consume one-shot requests after their
// first match.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM buy_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete buy request: %w", err)
	}
	return nil
}

// PurgeExpired removes every request past its expiry, returning the count.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM buy_requests WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge buy requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRequest(row pgx.Row) (BuyRequest, error) {
	var r BuyRequest
	err := row.Scan(
		&r.ID, &r.BuyerAddress, &r.Keywords, &r.Category,
		&r.MinPrice, &r.MaxPrice, &r.Standing, &r.ExpiresAt, &r.CreatedAt,
	)
	if err != nil {
		return BuyRequest{}, err
	}
	return r, nil
}
