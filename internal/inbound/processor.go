// Package inbound glues the webhook to the conversation engine: dedupe,
// media intake, dispatch, and the asynchronous reply send.
package inbound

import (
	"context"
	"log/slog"

	"github.com/dormline/dormline/internal/channel"
	"github.com/dormline/dormline/internal/conversation"
	"github.com/dormline/dormline/internal/dedupe"
	"github.com/dormline/dormline/internal/media"
)

// Engine runs a conversation turn and returns the reply text.
type Engine interface {
	HandleMessage(ctx context.Context, address string, turn conversation.Turn) (string, error)
}

// Ingester persists attachment bytes and renders their access paths.
type Ingester interface {
	Ingest(ctx context.Context, input media.IngestInput) (media.Asset, error)
	AccessPath(asset media.Asset) string
}

// Processor handles one inbound message end to end. Every failure inside is
// logged and contained: by the time Process runs, the webhook has already
// been acknowledged, so there is nobody upstream to report an error to.
type Processor struct {
	engine   Engine
	registry *channel.Registry
	ingester Ingester
	deduper  dedupe.Deduper
	logger   *slog.Logger
}

// NewProcessor creates the inbound processor.
func NewProcessor(
	log *slog.Logger,
	engine Engine,
	registry *channel.Registry,
	ingester Ingester,
	deduper dedupe.Deduper,
) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		engine:   engine,
		registry: registry,
		ingester: ingester,
		deduper:  deduper,
		logger:   log.With(slog.String("service", "inbound")),
	}
}

// Process runs a single inbound message through dedupe, media intake, the
// conversation engine, and the outbound reply.
func (p *Processor) Process(ctx context.Context, msg channel.InboundMessage) {
	if !p.deduper.Claim(ctx, msg.MessageID) {
		p.logger.Debug("duplicate delivery dropped",
			slog.String("message_id", msg.MessageID),
		)
		return
	}

	turn := conversation.Turn{
		Text:   msg.Text,
		Images: p.intakeImages(ctx, msg),
	}

	reply, err := p.engine.HandleMessage(ctx, msg.From, turn)
	if err != nil {
		p.logger.Error("conversation turn failed",
			slog.String("address", msg.From),
			slog.String("message_id", msg.MessageID),
			slog.Any("error", err),
		)
		return
	}
	if reply == "" {
		return
	}

	sender, ok := p.registry.Sender(msg.Channel)
	if !ok {
		p.logger.Error("no sender for channel",
			slog.String("channel", msg.Channel.String()),
		)
		return
	}
	// Fire and forget relative to the conversation turn: a failed send is
	// logged, the state has already advanced.
	if err := sender.SendText(ctx, msg.From, reply); err != nil {
		p.logger.Warn("reply send failed",
			slog.String("address", msg.From),
			slog.Any("error", err),
		)
	}
}

// intakeImages resolves and stores this turn's attachments, returning their
// access paths. A failed attachment is skipped; the flow re-prompts for an
// image when it needed one.
func (p *Processor) intakeImages(ctx context.Context, msg channel.InboundMessage) []string {
	if len(msg.Attachments) == 0 {
		return nil
	}
	resolver, ok := p.registry.AttachmentResolver(msg.Channel)
	if !ok {
		p.logger.Warn("no attachment resolver for channel",
			slog.String("channel", msg.Channel.String()),
		)
		return nil
	}

	var paths []string
	for _, attachment := range msg.Attachments {
		payload, err := resolver.ResolveAttachment(ctx, attachment)
		if err != nil {
			p.logger.Warn("attachment resolve failed",
				slog.String("attachment_id", attachment.ID),
				slog.Any("error", err),
			)
			continue
		}
		asset, err := p.ingester.Ingest(ctx, media.IngestInput{
			MediaType: media.MediaTypeImage,
			Mime:      payload.Mime,
			Reader:    payload.Reader,
		})
		payload.Reader.Close()
		if err != nil {
			p.logger.Warn("attachment ingest failed",
				slog.String("attachment_id", attachment.ID),
				slog.Any("error", err),
			)
			continue
		}
		paths = append(paths, p.ingester.AccessPath(asset))
	}
	return paths
}
