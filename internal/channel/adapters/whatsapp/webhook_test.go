package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormline/dormline/internal/channel"
	"github.com/dormline/dormline/internal/config"
)

type recordingProcessor struct {
	mu       sync.Mutex
	wake     chan struct{}
	received []channel.InboundMessage
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{wake: make(chan struct{}, 8)}
}

func (p *recordingProcessor) Process(_ context.Context, msg channel.InboundMessage) {
	p.mu.Lock()
	p.received = append(p.received, msg)
	p.mu.Unlock()
	p.wake <- struct{}{}
}

func newHandler(processor Processor) *WebhookHandler {
	return NewWebhookHandler(nil, config.WhatsAppConfig{VerifyToken: "secret-token"}, processor)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid handshake echoes challenge",
			query:      "hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345",
			wantStatus: http.StatusOK,
			wantBody:   "12345",
		},
		{
			name:       "wrong token rejected",
			query:      "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "wrong mode rejected",
			query:      "hub.mode=unsubscribe&hub.verify_token=secret-token&hub.challenge=12345",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "empty token rejected",
			query:      "hub.mode=subscribe&hub.verify_token=&hub.challenge=12345",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?"+tt.query, nil)
			rec := httptest.NewRecorder()
			h := newHandler(newRecordingProcessor())

			require.NoError(t, h.Verify(e.NewContext(req, rec)))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

const sampleDelivery = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "entry-1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "messages": [
          {"id": "wamid.1", "from": "15550001111", "timestamp": "1767225600", "type": "text", "text": {"body": "sell"}},
          {"id": "wamid.2", "from": "15550002222", "timestamp": "1767225601", "type": "image", "image": {"id": "media-9", "mime_type": "image/jpeg", "caption": "here it is"}},
          {"id": "wamid.3", "from": "15550003333", "timestamp": "1767225602", "type": "sticker"}
        ]
      }
    }]
  }]
}`

func TestReceive(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(sampleDelivery))
	rec := httptest.NewRecorder()
	processor := newRecordingProcessor()
	h := newHandler(processor)

	require.NoError(t, h.Receive(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	for range 2 {
		select {
		case <-processor.wake:
		case <-time.After(2 * time.Second):
			t.Fatal("processor never received messages")
		}
	}

	processor.mu.Lock()
	defer processor.mu.Unlock()
	require.Len(t, processor.received, 2, "unknown message types are dropped")

	byID := map[string]channel.InboundMessage{}
	for _, msg := range processor.received {
		byID[msg.MessageID] = msg
	}
	text := byID["wamid.1"]
	assert.Equal(t, "15550001111", text.From)
	assert.Equal(t, "sell", text.Text)
	assert.False(t, text.HasImage())

	image := byID["wamid.2"]
	assert.Equal(t, "here it is", image.Text)
	require.True(t, image.HasImage())
	assert.Equal(t, "media-9", image.Attachments[0].ID)
	assert.Equal(t, "image/jpeg", image.Attachments[0].Mime)
}

func TestReceive_MalformedBodyStillAcks(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h := newHandler(newRecordingProcessor())

	require.NoError(t, h.Receive(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParseWebhook_Empty(t *testing.T) {
	t.Parallel()

	messages, err := ParseWebhook([]byte(`{"object":"whatsapp_business_account","entry":[]}`))
	require.NoError(t, err)
	assert.Empty(t, messages)
}
