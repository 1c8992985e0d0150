package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists users in Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a user store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("store", "users")),
	}
}

const userColumns = `address, trust_level, daily_listing_count, last_listing_date,
	spam_attempts, conversation_state, conversation_data, state_version,
	consented_at, created_at, updated_at`

// Get returns the user for the given channel address.
func (s *Store) Get(ctx context.Context, address string) (User, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return User{}, fmt.Errorf("address is required")
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE address = $1`, address)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetOrCreate returns the user for the address, creating a fresh record on
// first contact from an unseen address.
func (s *Store) GetOrCreate(ctx context.Context, address string) (User, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return User{}, fmt.Errorf("address is required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`,
		address)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return s.Get(ctx, address)
}

// SaveState writes the conversation state and data bag with a
// compare-and-swap on the state version. Returns ErrStateConflict when a
// concurrent delivery already advanced the state.
func (s *Store) SaveState(ctx context.Context, address, state string, data []byte, expectedVersion int64) error {
	if len(data) == 0 {
		data = []byte("{}")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET conversation_state = $2, conversation_data = $3,
		     state_version = state_version + 1, updated_at = now()
		 WHERE address = $1 AND state_version = $4`,
		address, state, data, expectedVersion)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

// RecordConsent marks the consent gate as accepted.
func (s *Store) RecordConsent(ctx context.Context, address string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET consented_at = now(), updated_at = now()
		 WHERE address = $1 AND consented_at IS NULL`,
		address)
	if err != nil {
		return fmt.Errorf("record consent: %w", err)
	}
	return nil
}

// RecordSpamAttempt increments the spam counter in a single statement and
// returns the new total.
func (s *Store) RecordSpamAttempt(ctx context.Context, address string) (int, error) {
	var attempts int
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET spam_attempts = spam_attempts + 1, updated_at = now()
		 WHERE address = $1
		 RETURNING spam_attempts`,
		address).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("record spam attempt: %w", err)
	}
	return attempts, nil
}

// SetTrustLevel overwrites the user's trust tier.
func (s *Store) SetTrustLevel(ctx context.Context, address string, level TrustLevel) error {
	if !level.Valid() {
		return fmt.Errorf("invalid trust level: %s", level)
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET trust_level = $2, updated_at = now() WHERE address = $1`,
		address, string(level))
	if err != nil {
		return fmt.Errorf("set trust level: %w", err)
	}
	return nil
}

// IncrementDailyCount bumps the daily listing counter for the given calendar
// day, resetting to 1 when the stored date is from an earlier day. The stored
// value is only overwritten here, never pre-reset by reads.
func (s *Store) IncrementDailyCount(ctx context.Context, address string, day time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET daily_listing_count = CASE
		         WHEN last_listing_date = $2::date THEN daily_listing_count + 1
		         ELSE 1
		     END,
		     last_listing_date = $2::date,
		     updated_at = now()
		 WHERE address = $1`,
		address, day)
	if err != nil {
		return fmt.Errorf("increment daily count: %w", err)
	}
	return nil
}

// List returns all users. The campus-scale user population makes a full scan
// acceptable for the periodic trust review.
func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	return items, rows.Err()
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u           User
		trust       string
		lastListing pgtype.Date
		consentedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&u.Address, &trust, &u.DailyListingCount, &lastListing,
		&u.SpamAttempts, &u.ConversationState, &u.ConversationData,
		&u.StateVersion, &consentedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	u.TrustLevel = TrustLevel(trust)
	if !u.TrustLevel.Valid() {
		u.TrustLevel = TrustBasic
	}
	if lastListing.Valid {
		u.LastListingDate = lastListing.Time
	}
	if consentedAt.Valid {
		u.ConsentedAt = consentedAt.Time
	}
	return u, nil
}
