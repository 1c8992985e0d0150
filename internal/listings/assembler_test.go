package listings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assembleNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

type fakeStore struct {
	created Listing
	renewed string
}

func (f *fakeStore) Create(_ context.Context, l Listing) (Listing, error) {
	l.ID = "listing-1"
	f.created = l
	return l, nil
}

func (f *fakeStore) Renew(_ context.Context, id string, now time.Time) (Listing, error) {
	f.renewed = id
	return Listing{ID: id, ExpiresAt: now.Add(Lifetime)}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	wake   chan struct{}
	called []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{wake: make(chan struct{}, 1)}
}

func (f *fakeNotifier) NotifyMatches(_ context.Context, l Listing) {
	f.mu.Lock()
	f.called = append(f.called, l.ID)
	f.mu.Unlock()
	f.wake <- struct{}{}
}

func TestFieldsComplete(t *testing.T) {
	t.Parallel()

	complete := Fields{Title: "Desk lamp", Price: 12, Images: []string{"img"}}
	assert.True(t, complete.Complete())

	assert.False(t, Fields{Price: 12, Images: []string{"img"}}.Complete())
	assert.False(t, Fields{Title: "Lamp", Images: []string{"img"}}.Complete())
	assert.False(t, Fields{Title: "Lamp", Price: -5, Images: []string{"img"}}.Complete())
	assert.False(t, Fields{Title: "Lamp", Price: 12}.Complete())
}

func TestAssemble_CompleteDraftPublishes(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	notifier := newFakeNotifier()
	a := NewAssembler(nil, store, notifier, nil)

	got, err := a.Assemble(context.Background(), "15550001111",
		Fields{Title: "Mini fridge", Price: 40, Images: []string{"a.jpg"}}, assembleNow)
	require.NoError(t, err)

	assert.Equal(t, StatusPublished, got.Status)
	assert.Equal(t, assembleNow, got.PublishedAt)
	assert.Equal(t, assembleNow.Add(Lifetime), got.ExpiresAt)

	select {
	case <-notifier.wake:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription matching was never triggered")
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{"listing-1"}, notifier.called)
}

func TestAssemble_IncompleteDraftStaysDraft(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	notifier := newFakeNotifier()
	a := NewAssembler(nil, store, notifier, nil)

	got, err := a.Assemble(context.Background(), "15550001111",
		Fields{Title: "Mystery box"}, assembleNow)
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, got.Status)
	assert.True(t, got.PublishedAt.IsZero())

	select {
	case <-notifier.wake:
		t.Fatal("draft must not trigger subscription matching")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRenew(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	a := NewAssembler(nil, store, nil, nil)

	got, err := a.Renew(context.Background(), "listing-9", assembleNow)
	require.NoError(t, err)
	assert.Equal(t, "listing-9", store.renewed)
	assert.Equal(t, assembleNow.Add(Lifetime), got.ExpiresAt)
}

func TestStatusActive(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusReady.Active())
	assert.True(t, StatusPublished.Active())
	assert.False(t, StatusDraft.Active())
	assert.False(t, StatusExpired.Active())
}
