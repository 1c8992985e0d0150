// Package schedule runs the periodic maintenance jobs: the hourly listing
// expiry sweep, the daily buy-request purge, and the nightly trust review.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dormline/dormline/internal/policy"
	"github.com/dormline/dormline/internal/users"
)

// listingSweeps is the slice of listings.Store the jobs drive.
type listingSweeps interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	CountPublishedSince(ctx context.Context, sellerAddress string, cutoff time.Time) (int, error)
}

// requestSweeps is the slice of subscriptions.Store the jobs drive.
type requestSweeps interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// userReview is the slice of users.Store the trust review drives.
type userReview interface {
	List(ctx context.Context) ([]users.User, error)
	SetTrustLevel(ctx context.Context, address string, level users.TrustLevel) error
}

// jobTimeout bounds each run; jobs are idempotent so a timed-out run is
// simply finished by the next one.
const jobTimeout = 5 * time.Minute

// Scheduler owns the cron runner.
type Scheduler struct {
	cron     *cron.Cron
	listings listingSweeps
	requests requestSweeps
	users    userReview
	logger   *slog.Logger
}

// NewScheduler creates the scheduler with its jobs registered but not
// running.
func NewScheduler(log *slog.Logger, listings listingSweeps, requests requestSweeps, userStore userReview) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		cron:     cron.New(),
		listings: listings,
		requests: requests,
		users:    userStore,
		logger:   log.With(slog.String("service", "schedule")),
	}
	s.cron.AddFunc("@hourly", s.expireListings)
	s.cron.AddFunc("30 3 * * *", s.purgeBuyRequests)
	s.cron.AddFunc("0 4 * * *", s.reviewTrust)
	return s
}

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) expireListings() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	swept, err := s.listings.ExpireDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("expiry sweep failed", slog.Any("error", err))
		return
	}
	if swept > 0 {
		s.logger.Info("expiry sweep done", slog.Int64("expired", swept))
	}
}

func (s *Scheduler) purgeBuyRequests() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	purged, err := s.requests.PurgeExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("buy request purge failed", slog.Any("error", err))
		return
	}
	if purged > 0 {
		s.logger.Info("buy request purge done", slog.Int64("purged", purged))
	}
}

// reviewTrust applies the promotion and demotion rules across all users. The
// full scan is fine at campus scale.
func (s *Scheduler) reviewTrust() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	now := time.Now()

	all, err := s.users.List(ctx)
	if err != nil {
		s.logger.Error("trust review list failed", slog.Any("error", err))
		return
	}
	for _, user := range all {
		published, err := s.listings.CountPublishedSince(ctx, user.Address, now.Add(-policy.PromotionWindow))
		if err != nil {
			s.logger.Warn("trust review count failed",
				slog.String("address", user.Address),
				slog.Any("error", err),
			)
			continue
		}
		next := policy.EvaluateTrust(user, published)
		if next == user.TrustLevel {
			continue
		}
		if err := s.users.SetTrustLevel(ctx, user.Address, next); err != nil {
			s.logger.Warn("trust update failed",
				slog.String("address", user.Address),
				slog.Any("error", err),
			)
			continue
		}
		s.logger.Info("trust level changed",
			slog.String("address", user.Address),
			slog.String("from", string(user.TrustLevel)),
			slog.String("to", string(next)),
		)
	}
}
