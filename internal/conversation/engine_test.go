package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormline/dormline/internal/classify"
	"github.com/dormline/dormline/internal/listings"
	"github.com/dormline/dormline/internal/subscriptions"
	"github.com/dormline/dormline/internal/users"
)

var engineNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeUsers struct {
	mu          sync.Mutex
	user        users.User
	spamRecords int
	conflictOn  int // save call number that reports a version conflict, 0 = never
	saves       int
}

func (f *fakeUsers) GetOrCreate(_ context.Context, address string) (users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user.Address == "" {
		f.user = users.User{Address: address, TrustLevel: users.TrustBasic}
	}
	return f.user, nil
}

func (f *fakeUsers) SaveState(_ context.Context, _, state string, data []byte, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.conflictOn != 0 && f.saves == f.conflictOn {
		return users.ErrStateConflict
	}
	if expectedVersion != f.user.StateVersion {
		return users.ErrStateConflict
	}
	f.user.ConversationState = state
	f.user.ConversationData = data
	f.user.StateVersion++
	return nil
}

func (f *fakeUsers) RecordConsent(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user.ConsentedAt = engineNow
	return nil
}

func (f *fakeUsers) RecordSpamAttempt(_ context.Context, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spamRecords++
	f.user.SpamAttempts++
	return f.user.SpamAttempts, nil
}

func (f *fakeUsers) SetTrustLevel(_ context.Context, _ string, level users.TrustLevel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user.TrustLevel = level
	return nil
}

func (f *fakeUsers) IncrementDailyCount(_ context.Context, _ string, day time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user.DailyListingCount++
	f.user.LastListingDate = day
	return nil
}

type fakeCounts struct {
	active    int
	published int
}

func (f *fakeCounts) CountActive(context.Context, string, time.Time) (int, error) {
	return f.active, nil
}

func (f *fakeCounts) CountPublishedSince(context.Context, string, time.Time) (int, error) {
	return f.published, nil
}

type fakeAssembler struct {
	mu        sync.Mutex
	assembled []listings.Fields
}

func (f *fakeAssembler) Assemble(_ context.Context, seller string, fields listings.Fields, now time.Time) (listings.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assembled = append(f.assembled, fields)
	return listings.Listing{
		ID:            "listing-1",
		SellerAddress: seller,
		Title:         fields.Title,
		Price:         fields.Price,
		Status:        listings.StatusPublished,
		PublishedAt:   now,
	}, nil
}

type fakeRequests struct {
	created []subscriptions.BuyRequest
}

func (f *fakeRequests) Create(_ context.Context, r subscriptions.BuyRequest) (subscriptions.BuyRequest, error) {
	r.ID = "request-1"
	f.created = append(f.created, r)
	return r, nil
}

type fixedClassifier struct {
	result classify.Result
}

func (f fixedClassifier) Classify(context.Context, string) classify.Result {
	return f.result
}

type engineFixture struct {
	engine    *Engine
	users     *fakeUsers
	counts    *fakeCounts
	assembler *fakeAssembler
	requests  *fakeRequests
}

func newFixture() *engineFixture {
	f := &engineFixture{
		users:     &fakeUsers{},
		counts:    &fakeCounts{},
		assembler: &fakeAssembler{},
		requests:  &fakeRequests{},
	}
	f.engine = NewEngine(nil, f.users, f.counts, f.assembler, f.requests,
		fixedClassifier{result: classify.Result{Category: "Textbooks", Condition: "Good", Confidence: 80}})
	f.engine.now = func() time.Time { return engineNow }
	return f
}

func (f *engineFixture) say(t *testing.T, text string) string {
	t.Helper()
	reply, err := f.engine.HandleMessage(context.Background(), "15550001111", Turn{Text: text})
	require.NoError(t, err)
	return reply
}

func (f *engineFixture) onboard(t *testing.T) {
	t.Helper()
	f.say(t, "hi")
	f.say(t, "yes")
}

func TestOnboarding(t *testing.T) {
	t.Parallel()
	f := newFixture()

	reply := f.say(t, "hello there")
	assert.Equal(t, promptConsent, reply)
	assert.Equal(t, string(StateAwaitingConsent), f.users.user.ConversationState)

	reply = f.say(t, "yes")
	assert.Equal(t, promptIntent, reply)
	assert.True(t, f.users.user.Consented())
	assert.Equal(t, string(StateAwaitingIntent), f.users.user.ConversationState)
}

func TestConsentDeclined(t *testing.T) {
	t.Parallel()
	f := newFixture()

	f.say(t, "hi")
	reply := f.say(t, "no")
	assert.Equal(t, replyConsentDeclined, reply)
	assert.False(t, f.users.user.Consented())
	// A later change of heart still works.
	reply = f.say(t, "yes")
	assert.Equal(t, promptIntent, reply)
	assert.True(t, f.users.user.Consented())
}

func TestSellingFlowEndToEnd(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.onboard(t)

	assert.Equal(t, promptSellingItemName, f.say(t, "sell"))
	assert.Equal(t, promptSellingPrice, f.say(t, "Calculus textbook"))
	assert.Equal(t, promptSellingImage, f.say(t, "$1,234.50"))

	reply, err := f.engine.HandleMessage(context.Background(), "15550001111",
		Turn{Text: "", Images: []string{"https://cdn.example/img1.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, promptCategoryConfirm("Textbooks", "Good"), reply)

	assert.Equal(t, promptMeetingSpot, f.say(t, "yes"))
	assert.Equal(t, promptExternalLink, f.say(t, "Library steps"))

	reply = f.say(t, "skip")
	assert.Equal(t, replyListingPublished("Calculus textbook", 1234.50), reply)
	assert.Equal(t, string(StateVerified), f.users.user.ConversationState)
	assert.Equal(t, 1, f.users.user.DailyListingCount)

	require.Len(t, f.assembler.assembled, 1)
	fields := f.assembler.assembled[0]
	assert.Equal(t, "Calculus textbook", fields.Title)
	assert.Equal(t, 1234.50, fields.Price)
	assert.Equal(t, "Textbooks", fields.Category)
	assert.Equal(t, "Good", fields.Condition)
	assert.Equal(t, "Library steps", fields.MeetingSpot)
	assert.Empty(t, fields.ExternalLink)
	assert.Equal(t, []string{"https://cdn.example/img1.jpg"}, fields.Images)
}

func TestSellingModerationBlockStaysInState(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.onboard(t)
	f.say(t, "sell")

	reply := f.say(t, "firearm, barely used")
	assert.Contains(t, reply, "Weapons")
	assert.Equal(t, string(StateSellingItemName), f.users.user.ConversationState)
	assert.Equal(t, 1, f.users.spamRecords)

	// A clean retry proceeds.
	assert.Equal(t, promptSellingPrice, f.say(t, "calculus textbook"))
}

func TestThreeModerationBlocksShadowBan(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.onboard(t)
	f.say(t, "sell")

	f.say(t, "firearm")
	f.say(t, "firearm again")
	f.say(t, "firearm once more")
	assert.Equal(t, users.TrustShadowBanned, f.users.user.TrustLevel)
}

func TestSellingBadPriceReprompts(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.onboard(t)
	f.say(t, "sell")
	f.say(t, "desk lamp")

	assert.Equal(t, replyBadPrice, f.say(t, "cheap"))
	assert.Equal(t, replyBadPrice, f.say(t, "-5"))
	assert.Equal(t, string(StateSellingPrice), f.users.user.ConversationState)
	assert.Equal(t, promptSellingImage, f.say(t, "15"))
}

func TestSellingImageRequired(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.onboard(t)
	f.say(t, "sell")
	f.say(t, "desk lamp")
	f.say(t, "15")

	assert.Equal(t, replyImageMissing, f.say(t, "it looks great"))
	assert.Equal(t, string(StateSellingImage), f.users.user.ConversationState)
}

func TestCategoryCorrection(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.onboard(t)
	f.say(t, "sell")
	f.say(t, "desk lamp")
	f.say(t, "15")
	_, err := f.engine.HandleMessage(context.Background(), "15550001111",
		Turn{Images: []string{"img"}})
	require.NoError(t, err)

	assert.Equal(t, promptMeetingSpot, f.say(t, "Electronics - Like New"))
	f.say(t, "skip")
	f.say(t, "skip")

	require.Len(t, f.assembler.assembled, 1)
	assert.Equal(t, "Electronics", f.assembler.assembled[0].Category)
	assert.Equal(t, "Like New", f.assembler.assembled[0].Condition)
}

func TestRateLimitedSellDoesNotPersist(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.counts.active = 10
	f.onboard(t)
	f.say(t, "sell")
	f.say(t, "desk lamp")
	f.say(t, "15")
	_, err := f.engine.HandleMessage(context.Background(), "15550001111",
		Turn{Images: []string{"img"}})
	require.NoError(t, err)
	f.say(t, "yes")
	f.say(t, "skip")

	reply := f.say(t, "skip")
	assert.Contains(t, reply, "active listings")
	assert.Empty(t, f.assembler.assembled)
	assert.Equal(t, string(StateVerified), f.users.user.ConversationState)
	assert.Equal(t, 0, f.users.user.DailyListingCount)
}

func TestRestartMidFlowKeepsIntent(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.onboard(t)
	f.say(t, "sell")
	f.say(t, "desk lamp")
	f.say(t, "15")

	// Restart drops the accumulated fields but stays in the selling flow.
	reply := f.say(t, "restart")
	assert.Equal(t, promptSellingItemName, reply)
	assert.Equal(t, string(StateSellingItemName), f.users.user.ConversationState)
	assert.NotContains(t, string(f.users.user.ConversationData), "desk lamp")
	assert.Contains(t, string(f.users.user.ConversationData), "sell")

	// The flow continues cleanly from the top.
	assert.Equal(t, promptSellingPrice, f.say(t, "lava lamp"))
}

func TestRestartFromIdleResets(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.onboard(t)
	f.say(t, "help")

	reply := f.say(t, "restart")
	assert.Equal(t, replyRestart, reply)
	assert.Equal(t, string(StateVerified), f.users.user.ConversationState)
	assert.Equal(t, []byte("{}"), f.users.user.ConversationData)
}

func TestBuyingFlowStandingSubscription(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.onboard(t)

	assert.Equal(t, promptBuyingItemName, f.say(t, "buy"))
	assert.Equal(t, promptBuyingPriceRange, f.say(t, "graphing calculator"))

	reply := f.say(t, "50-100")
	assert.Contains(t, reply, "graphing calculator")

	// Unrecognized input re-prompts without changing state.
	assert.Equal(t, replyBuyingConfirm, f.say(t, "maybe"))

	reply = f.say(t, "confirm")
	assert.Equal(t, replySubscriptionCreated(true), reply)
	require.Len(t, f.requests.created, 1)

	created := f.requests.created[0]
	assert.True(t, created.Standing)
	assert.Equal(t, "graphing calculator", created.Keywords)
	assert.Equal(t, 50.0, created.MinPrice)
	assert.Equal(t, 100.0, created.MaxPrice)
	assert.Equal(t, engineNow.Add(subscriptions.RequestLifetime), created.ExpiresAt)
	assert.Equal(t, string(StateVerified), f.users.user.ConversationState)
}

func TestBuyingOneShotRequest(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.onboard(t)
	f.say(t, "buy")
	f.say(t, "mini fridge")
	f.say(t, "skip")

	reply := f.say(t, "post request")
	assert.Equal(t, replySubscriptionCreated(false), reply)
	require.Len(t, f.requests.created, 1)
	assert.False(t, f.requests.created[0].Standing)
	assert.Zero(t, f.requests.created[0].MinPrice)
	assert.Zero(t, f.requests.created[0].MaxPrice)
}

func TestExistingRowWithDefaultStateOnboards(t *testing.T) {
	t.Parallel()
	f := newFixture()
	// A row created by GetOrCreate carries the users table's column default
	// for conversation_state. That default must land on the onboarding path,
	// not on corrupt-state recovery.
	f.users.user = users.User{
		Address:           "15550001111",
		TrustLevel:        users.TrustBasic,
		ConversationState: "",
	}

	reply := f.say(t, "hi")
	assert.Equal(t, promptConsent, reply)
	assert.NotEqual(t, replyStateRecovered, reply)
	assert.Equal(t, string(StateAwaitingConsent), f.users.user.ConversationState)
}

func TestMeetingSpotNeedsAnswer(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.onboard(t)
	f.say(t, "sell")
	f.say(t, "desk lamp")
	f.say(t, "15")
	_, err := f.engine.HandleMessage(context.Background(), "15550001111",
		Turn{Images: []string{"img"}})
	require.NoError(t, err)
	f.say(t, "yes")

	// An image-only message answers nothing; the step re-prompts instead of
	// recording an empty meeting spot.
	reply, err := f.engine.HandleMessage(context.Background(), "15550001111",
		Turn{Images: []string{"img2"}})
	require.NoError(t, err)
	assert.Equal(t, promptMeetingSpot, reply)
	assert.Equal(t, string(StateSellingMeetingSpot), f.users.user.ConversationState)

	assert.Equal(t, promptExternalLink, f.say(t, "skip"))
}

func TestUnknownStoredStateRecovers(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.users.user = users.User{
		Address:           "15550001111",
		TrustLevel:        users.TrustBasic,
		ConversationState: "TOTALLY_BOGUS",
	}

	reply := f.say(t, "hello?")
	assert.Equal(t, replyStateRecovered, reply)
	assert.Equal(t, string(StateAwaitingConsent), f.users.user.ConversationState)
}

func TestVersionConflictAsksToRetry(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.users.conflictOn = 1

	reply := f.say(t, "hi")
	assert.Equal(t, replyBusy, reply)
}

func TestIdleUnknownInputHints(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.onboard(t)
	f.say(t, "buy")
	f.say(t, "mini fridge")
	f.say(t, "skip")
	f.say(t, "post")

	assert.Equal(t, replyIdleHint, f.say(t, "what's up"))
	assert.Equal(t, replyHelp, f.say(t, "help"))
}

func TestConcurrentTurnsSameUserSerialized(t *testing.T) {
	t.Parallel()
	f := newFixture()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.HandleMessage(context.Background(), "15550001111", Turn{Text: "hi"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Every turn observed a consistent version; none were lost.
	assert.Equal(t, int64(8), f.users.user.StateVersion)
}
