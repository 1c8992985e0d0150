package whatsapp

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dormline/dormline/internal/channel"
	"github.com/dormline/dormline/internal/config"
)

// Processor consumes a normalized inbound message. Implementations own their
// error handling; the webhook has already acknowledged by the time they run.
type Processor interface {
	Process(ctx context.Context, msg channel.InboundMessage)
}

// WebhookHandler terminates the Cloud API webhook: subscription verification
// on GET, message intake on POST.
type WebhookHandler struct {
	verifyToken string
	processor   Processor
	logger      *slog.Logger
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(log *slog.Logger, cfg config.WhatsAppConfig, processor Processor) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		verifyToken: cfg.VerifyToken,
		processor:   processor,
		logger:      log.With(slog.String("handler", "whatsapp_webhook")),
	}
}

// Register mounts the webhook routes.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/webhook/whatsapp", h.Verify)
	e.POST("/webhook/whatsapp", h.Receive)
}

// Verify answers the platform's subscription handshake: echo the challenge
// when the mode and token match, 403 otherwise.
func (h *WebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		return c.String(http.StatusOK, challenge)
	}
	h.logger.Warn("webhook verification rejected", slog.String("mode", mode))
	return c.NoContent(http.StatusForbidden)
}

// Receive accepts a webhook delivery. The response is always 200 with a
// minimal body: surfacing processing errors as non-200 would only provoke
// channel-side retry storms, so they are logged and swallowed instead.
// Messages are handed to the processor detached from the request context,
// keeping the acknowledgement prompt.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("webhook body read failed", slog.Any("error", err))
		return c.JSON(http.StatusOK, map[string]string{"status": "received"})
	}

	messages, err := ParseWebhook(body)
	if err != nil {
		h.logger.Error("webhook parse failed", slog.Any("error", err))
		return c.JSON(http.StatusOK, map[string]string{"status": "received"})
	}

	for _, msg := range messages {
		msg := msg
		go h.processor.Process(context.WithoutCancel(c.Request().Context()), msg)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "received"})
}
