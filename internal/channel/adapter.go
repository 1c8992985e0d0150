package channel

import (
	"context"
	"io"
)

// Adapter is the base interface every channel adapter must implement.
// Behavior beyond identification is expressed through the optional
// interfaces below; callers feature-detect with type assertions.
type Adapter interface {
	Type() ChannelType
	Descriptor() Descriptor
}

// Sender is an adapter capable of sending outbound text messages. Send
// failures are the caller's to log; adapters return them unwrapped.
type Sender interface {
	SendText(ctx context.Context, address, text string) error
}

// AttachmentPayload contains resolved attachment bytes and metadata.
// Caller must close Reader.
type AttachmentPayload struct {
	Reader io.ReadCloser
	Mime   string
	Name   string
	Size   int64
}

// AttachmentResolver resolves platform attachment references into readable
// bytes for the media intake pipeline.
type AttachmentResolver interface {
	ResolveAttachment(ctx context.Context, attachment Attachment) (AttachmentPayload, error)
}
