package inbound

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormline/dormline/internal/channel"
	"github.com/dormline/dormline/internal/conversation"
	"github.com/dormline/dormline/internal/dedupe"
	"github.com/dormline/dormline/internal/media"
)

type fakeEngine struct {
	turns []conversation.Turn
	reply string
	err   error
}

func (f *fakeEngine) HandleMessage(_ context.Context, _ string, turn conversation.Turn) (string, error) {
	f.turns = append(f.turns, turn)
	return f.reply, f.err
}

type fakeAdapter struct {
	sent       map[string]string
	sendErr    error
	resolveErr error
}

func (f *fakeAdapter) Type() channel.ChannelType { return channel.TypeWhatsApp }

func (f *fakeAdapter) Descriptor() channel.Descriptor {
	return channel.Descriptor{Type: channel.TypeWhatsApp, DisplayName: "fake"}
}

func (f *fakeAdapter) SendText(_ context.Context, address, text string) error {
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[address] = text
	return f.sendErr
}

func (f *fakeAdapter) ResolveAttachment(_ context.Context, attachment channel.Attachment) (channel.AttachmentPayload, error) {
	if f.resolveErr != nil {
		return channel.AttachmentPayload{}, f.resolveErr
	}
	return channel.AttachmentPayload{
		Reader: io.NopCloser(strings.NewReader("bytes for " + attachment.ID)),
		Mime:   "image/jpeg",
	}, nil
}

type fakeIngester struct {
	ingested int
	err      error
}

func (f *fakeIngester) Ingest(_ context.Context, input media.IngestInput) (media.Asset, error) {
	if f.err != nil {
		return media.Asset{}, f.err
	}
	f.ingested++
	data, _ := io.ReadAll(input.Reader)
	return media.Asset{StorageKey: "key-" + string(data[len(data)-1])}, nil
}

func (f *fakeIngester) AccessPath(asset media.Asset) string {
	return "https://cdn.test/" + asset.StorageKey
}

func newProcessor(engine *fakeEngine, adapter *fakeAdapter, ingester *fakeIngester) *Processor {
	registry := channel.NewRegistry()
	registry.MustRegister(adapter)
	return NewProcessor(nil, engine, registry, ingester, dedupe.NewMemoryDeduper())
}

func textMessage(id, text string) channel.InboundMessage {
	return channel.InboundMessage{
		MessageID: id,
		Channel:   channel.TypeWhatsApp,
		From:      "15550001111",
		Text:      text,
		Timestamp: time.Now(),
	}
}

func TestProcess_RepliesThroughSender(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{reply: "hello!"}
	adapter := &fakeAdapter{}
	p := newProcessor(engine, adapter, &fakeIngester{})

	p.Process(context.Background(), textMessage("wamid.1", "hi"))

	require.Len(t, engine.turns, 1)
	assert.Equal(t, "hi", engine.turns[0].Text)
	assert.Equal(t, "hello!", adapter.sent["15550001111"])
}

func TestProcess_DuplicateDropped(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{reply: "hello!"}
	p := newProcessor(engine, &fakeAdapter{}, &fakeIngester{})

	p.Process(context.Background(), textMessage("wamid.dup", "hi"))
	p.Process(context.Background(), textMessage("wamid.dup", "hi"))

	assert.Len(t, engine.turns, 1)
}

func TestProcess_AttachmentsBecomeImagePaths(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{reply: "got it"}
	ingester := &fakeIngester{}
	p := newProcessor(engine, &fakeAdapter{}, ingester)

	msg := textMessage("wamid.2", "")
	msg.Attachments = []channel.Attachment{{ID: "media-1", Mime: "image/jpeg"}}
	p.Process(context.Background(), msg)

	require.Len(t, engine.turns, 1)
	require.Len(t, engine.turns[0].Images, 1)
	assert.True(t, strings.HasPrefix(engine.turns[0].Images[0], "https://cdn.test/"))
	assert.Equal(t, 1, ingester.ingested)
}

func TestProcess_ResolveFailureDegradesToTextTurn(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{reply: "still need a photo"}
	adapter := &fakeAdapter{resolveErr: errors.New("download failed")}
	p := newProcessor(engine, adapter, &fakeIngester{})

	msg := textMessage("wamid.3", "")
	msg.Attachments = []channel.Attachment{{ID: "media-1"}}
	p.Process(context.Background(), msg)

	require.Len(t, engine.turns, 1)
	assert.Empty(t, engine.turns[0].Images)
	assert.Equal(t, "still need a photo", adapter.sent["15550001111"])
}

func TestProcess_EngineFailureSendsNothing(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{err: errors.New("db down")}
	adapter := &fakeAdapter{}
	p := newProcessor(engine, adapter, &fakeIngester{})

	p.Process(context.Background(), textMessage("wamid.4", "hi"))
	assert.Empty(t, adapter.sent)
}

func TestProcess_SendFailureSwallowed(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{reply: "hello"}
	adapter := &fakeAdapter{sendErr: errors.New("network")}
	p := newProcessor(engine, adapter, &fakeIngester{})

	// Must not panic or error; the failure is logged only.
	p.Process(context.Background(), textMessage("wamid.5", "hi"))
}
