package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dormline/dormline/internal/classify"
	"github.com/dormline/dormline/internal/listings"
	"github.com/dormline/dormline/internal/moderation"
	"github.com/dormline/dormline/internal/subscriptions"
	"github.com/dormline/dormline/internal/users"
)

// userStore is the slice of users.Store the engine drives.
type userStore interface {
	GetOrCreate(ctx context.Context, address string) (users.User, error)
	SaveState(ctx context.Context, address, state string, data []byte, expectedVersion int64) error
	RecordConsent(ctx context.Context, address string) error
	RecordSpamAttempt(ctx context.Context, address string) (int, error)
	SetTrustLevel(ctx context.Context, address string, level users.TrustLevel) error
	IncrementDailyCount(ctx context.Context, address string, day time.Time) error
}

// listingCounts is the slice of listings.Store the rate and trust checks read.
type listingCounts interface {
	CountActive(ctx context.Context, sellerAddress string, now time.Time) (int, error)
	CountPublishedSince(ctx context.Context, sellerAddress string, cutoff time.Time) (int, error)
}

// listingAssembler persists a finished selling flow.
type listingAssembler interface {
	Assemble(ctx context.Context, sellerAddress string, f listings.Fields, now time.Time) (listings.Listing, error)
}

// requestCreator persists a finished buying flow.
type requestCreator interface {
	Create(ctx context.Context, r subscriptions.BuyRequest) (subscriptions.BuyRequest, error)
}

// itemClassifier enriches an item name with category and condition.
type itemClassifier interface {
	Classify(ctx context.Context, itemText string) classify.Result
}

// Engine runs one conversation turn per inbound message. Turns for the same
// address are serialized by a per-address lock, and the state write carries a
// version compare-and-swap so concurrent deliveries from another process
// cannot silently drop each other's updates.
type Engine struct {
	users      userStore
	counts     listingCounts
	assembler  listingAssembler
	requests   requestCreator
	classifier itemClassifier
	moderate   func(text string) moderation.Decision
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates the conversation engine.
func NewEngine(
	log *slog.Logger,
	store userStore,
	counts listingCounts,
	assembler listingAssembler,
	requests requestCreator,
	classifier itemClassifier,
) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		users:      store,
		counts:     counts,
		assembler:  assembler,
		requests:   requests,
		classifier: classifier,
		moderate:   moderation.Moderate,
		logger:     log.With(slog.String("service", "conversation")),
		now:        time.Now,
		locks:      map[string]*sync.Mutex{},
	}
}

// HandleMessage runs one turn for the user behind address and returns the
// reply text. Errors are internal failures the caller should log; validation
// and policy rejections come back as ordinary replies.
func (e *Engine) HandleMessage(ctx context.Context, address string, turn Turn) (string, error) {
	user, err := e.users.GetOrCreate(ctx, address)
	if err != nil {
		return "", err
	}

	unlock := e.lock(address)
	defer unlock()

	// Re-read under the lock: another turn may have advanced the state while
	// this one waited.
	user, err = e.users.GetOrCreate(ctx, address)
	if err != nil {
		return "", err
	}

	state := State(user.ConversationState)
	data := decodeFlowData(user.ConversationData)
	recovered := false
	if user.ConversationState != "" && !state.Valid() {
		// Corrupt or unknown state: recover by re-onboarding instead of
		// erroring on every subsequent message.
		e.logger.Warn("unknown conversation state, restarting",
			slog.String("address", address),
			slog.String("state", user.ConversationState),
		)
		recovered = true
		state = StateInitial
		data = FlowData{}
	}
	if user.ConversationState == "" {
		state = StateInitial
	}

	newState, newData, reply, err := e.dispatch(ctx, user, state, data, turn)
	if err != nil {
		return "", err
	}
	if recovered {
		reply = replyStateRecovered
		newState, newData = StateAwaitingConsent, FlowData{}
	}

	err = e.users.SaveState(ctx, address, string(newState), encodeFlowData(newData), user.StateVersion)
	if errors.Is(err, users.ErrStateConflict) {
		// A concurrent delivery from another process won the race. Its reply
		// is already on the way; asking the user to repeat beats applying
		// this turn's side effects twice.
		e.logger.Warn("state version conflict", slog.String("address", address))
		return replyBusy, nil
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// lock serializes turns per address. The lock table only grows; at campus
// scale (thousands of addresses, one mutex each) that is acceptable.
func (e *Engine) lock(address string) func() {
	e.mu.Lock()
	l, ok := e.locks[address]
	if !ok {
		l = &sync.Mutex{}
		e.locks[address] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}
