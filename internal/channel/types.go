// Package channel defines the messaging-channel abstraction the conversation
// engine sits behind: inbound messages normalized from platform webhooks,
// outbound text sends, and an adapter registry keyed by channel type.
package channel

import "time"

// ChannelType identifies a messaging platform.
type ChannelType string

// Type returns the ChannelType as a string.
func (t ChannelType) String() string {
	return string(t)
}

const (
	// TypeWhatsApp is the WhatsApp Cloud API channel.
	TypeWhatsApp ChannelType = "whatsapp"
)

// Attachment references a platform-hosted media object on an inbound message.
// ID is the platform's media identifier; resolving it into bytes is the
// adapter's job.
type Attachment struct {
	ID   string `json:"id"`
	Mime string `json:"mime,omitempty"`
	Name string `json:"name,omitempty"`
}

// InboundMessage is a single user message normalized out of a webhook
// delivery. From is the stable channel address identifying the user.
type InboundMessage struct {
	MessageID   string       `json:"message_id"`
	Channel     ChannelType  `json:"channel"`
	From        string       `json:"from"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// HasImage reports whether the message carries at least one image attachment.
func (m InboundMessage) HasImage() bool {
	return len(m.Attachments) > 0
}

// Descriptor holds read-only metadata for a registered channel type.
type Descriptor struct {
	Type        ChannelType
	DisplayName string
}
