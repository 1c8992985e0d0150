package whatsapp

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/dormline/dormline/internal/channel"
)

// Webhook payload shapes, trimmed to the fields the engine consumes. The
// Cloud API nests messages three levels deep: entry → changes → value.
type webhookEnvelope struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string       `json:"field"`
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Messages         []webhookMessage `json:"messages"`
}

type webhookMessage struct {
	ID        string        `json:"id"`
	From      string        `json:"from"`
	Timestamp string        `json:"timestamp"`
	Type      string        `json:"type"`
	Text      *webhookText  `json:"text,omitempty"`
	Image     *webhookImage `json:"image,omitempty"`
}

type webhookText struct {
	Body string `json:"body"`
}

type webhookImage struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

// ParseWebhook flattens a webhook delivery into normalized inbound messages.
// Unknown message types are dropped; a delivery with no usable messages
// yields an empty slice, not an error.
func ParseWebhook(body []byte) ([]channel.InboundMessage, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}

	var messages []channel.InboundMessage
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				normalized, ok := normalizeMessage(msg)
				if !ok {
					continue
				}
				messages = append(messages, normalized)
			}
		}
	}
	return messages, nil
}

func normalizeMessage(msg webhookMessage) (channel.InboundMessage, bool) {
	out := channel.InboundMessage{
		MessageID: msg.ID,
		Channel:   channel.TypeWhatsApp,
		From:      msg.From,
		Timestamp: parseTimestamp(msg.Timestamp),
	}
	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return channel.InboundMessage{}, false
		}
		out.Text = msg.Text.Body
	case "image":
		if msg.Image == nil {
			return channel.InboundMessage{}, false
		}
		out.Text = msg.Image.Caption
		out.Attachments = []channel.Attachment{{
			ID:   msg.Image.ID,
			Mime: msg.Image.MimeType,
		}}
	default:
		return channel.InboundMessage{}, false
	}
	return out, true
}

func parseTimestamp(raw string) time.Time {
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(unix, 0)
}
