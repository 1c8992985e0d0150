package listings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dormline/dormline/internal/db"
)

// Store persists listings in Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a listing store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("store", "listings")),
	}
}

const listingColumns = `id, seller_address, title, price, category, condition,
	meeting_spot, external_link, images, status, expires_at, published_at,
	created_at, updated_at`

// Create inserts a new listing and returns it with generated fields filled.
func (s *Store) Create(ctx context.Context, l Listing) (Listing, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if !l.Status.Valid() {
		return Listing{}, fmt.Errorf("invalid listing status: %s", l.Status)
	}
	images := l.Images
	if images == nil {
		images = []string{}
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO listings (id, seller_address, title, price, category, condition,
		     meeting_spot, external_link, images, status, expires_at, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+listingColumns,
		l.ID, l.SellerAddress, l.Title, l.Price, l.Category, l.Condition,
		db.ToText(l.MeetingSpot), db.ToText(l.ExternalLink), images, string(l.Status),
		db.ToTimestamptz(l.ExpiresAt), db.ToTimestamptz(l.PublishedAt))
	created, err := scanListing(row)
	if err != nil {
		return Listing{}, fmt.Errorf("create listing: %w", err)
	}
	return created, nil
}

// Get returns the listing with the given id.
func (s *Store) Get(ctx context.Context, id string) (Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

// CountActive returns the seller's number of ready or published listings that
// have not yet expired. This is the figure the rate policy checks against.
func (s *Store) CountActive(ctx context.Context, sellerAddress string, now time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM listings
		 WHERE seller_address = $1
		   AND status IN ('ready', 'published')
		   AND expires_at > $2`,
		sellerAddress, now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active listings: %w", err)
	}
	return count, nil
}

// CountPublishedSince returns how many listings the seller published at or
// after the cutoff. Used by the trust review.
func (s *Store) CountPublishedSince(ctx context.Context, sellerAddress string, cutoff time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM listings
		 WHERE seller_address = $1
		   AND published_at IS NOT NULL
		   AND published_at >= $2`,
		sellerAddress, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count published listings: %w", err)
	}
	return count, nil
}

// ListByStatus returns listings in the given status, newest first.
func (s *Store) ListByStatus(ctx context.Context, status Status, limit int) ([]Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings
		 WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()
	return collectListings(rows)
}

// ListBySeller returns all of a seller's listings, newest first.
func (s *Store) ListBySeller(ctx context.Context, sellerAddress string) ([]Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings
		 WHERE seller_address = $1 ORDER BY created_at DESC`,
		sellerAddress)
	if err != nil {
		return nil, fmt.Errorf("list seller listings: %w", err)
	}
	defer rows.Close()
	return collectListings(rows)
}

// Renew pushes the listing's expiry out to now + Lifetime unconditionally.
// Ownership and status checks are the caller's concern.
func (s *Store) Renew(ctx context.Context, id string, now time.Time) (Listing, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE listings SET expires_at = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+listingColumns,
		id, now.Add(Lifetime))
	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("renew listing: %w", err)
	}
	return listing, nil
}

// ExpireDue marks every ready or published listing past its expiry as
// expired, returning the number of rows swept.
func (s *Store) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET status = 'expired', updated_at = now()
		 WHERE status IN ('ready', 'published') AND expires_at <= $1`,
		now)
	if err != nil {
		return 0, fmt.Errorf("expire listings: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectListings(rows pgx.Rows) ([]Listing, error) {
	var items []Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		items = append(items, listing)
	}
	return items, rows.Err()
}

func scanListing(row pgx.Row) (Listing, error) {
	var (
		l            Listing
		status       string
		meetingSpot  pgtype.Text
		externalLink pgtype.Text
		expiresAt    pgtype.Timestamptz
		publishedAt  pgtype.Timestamptz
	)
	err := row.Scan(
		&l.ID, &l.SellerAddress, &l.Title, &l.Price, &l.Category, &l.Condition,
		&meetingSpot, &externalLink, &l.Images, &status,
		&expiresAt, &publishedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Listing{}, err
	}
	l.MeetingSpot = db.TextToString(meetingSpot)
	l.ExternalLink = db.TextToString(externalLink)
	l.Status = Status(status)
	if expiresAt.Valid {
		l.ExpiresAt = expiresAt.Time
	}
	if publishedAt.Valid {
		l.PublishedAt = publishedAt.Time
	}
	return l, nil
}
