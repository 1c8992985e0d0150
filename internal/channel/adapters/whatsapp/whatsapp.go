// Package whatsapp adapts the WhatsApp Cloud API: outbound text sends and
// media resolution through the Graph API, and the webhook endpoint delivering
// inbound messages.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dormline/dormline/internal/channel"
	"github.com/dormline/dormline/internal/config"
)

// Adapter implements channel.Adapter, channel.Sender, and
// channel.AttachmentResolver for the WhatsApp Cloud API.
type Adapter struct {
	cfg        config.WhatsAppConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates the WhatsApp adapter.
func New(log *slog.Logger, cfg config.WhatsAppConfig) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.With(slog.String("adapter", "whatsapp")),
	}
}

// Type returns the channel type.
func (a *Adapter) Type() channel.ChannelType {
	return channel.TypeWhatsApp
}

// Descriptor returns the adapter metadata.
func (a *Adapter) Descriptor() channel.Descriptor {
	return channel.Descriptor{
		Type:        channel.TypeWhatsApp,
		DisplayName: "WhatsApp",
	}
}

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// SendText delivers a text message through the Cloud API messages endpoint.
func (a *Adapter) SendText(ctx context.Context, address, text string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("address is required")
	}
	payload := sendTextRequest{
		MessagingProduct: "whatsapp",
		To:               address,
		Type:             "text",
		Text:             textBody{Body: text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(a.cfg.GraphBaseURL, "/"), a.cfg.PhoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.AccessToken)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp send failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

type mediaMetadata struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// ResolveAttachment turns a media id into readable bytes: one Graph API call
// for the download URL, a second for the content. Both are authenticated with
// the same bearer token.
func (a *Adapter) ResolveAttachment(ctx context.Context, attachment channel.Attachment) (channel.AttachmentPayload, error) {
	if strings.TrimSpace(attachment.ID) == "" {
		return channel.AttachmentPayload{}, fmt.Errorf("attachment id is required")
	}

	meta, err := a.mediaMetadata(ctx, attachment.ID)
	if err != nil {
		return channel.AttachmentPayload{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return channel.AttachmentPayload{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.AccessToken)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return channel.AttachmentPayload{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return channel.AttachmentPayload{}, fmt.Errorf("media download failed: status %d", resp.StatusCode)
	}

	mime := meta.MimeType
	if mime == "" {
		mime = attachment.Mime
	}
	return channel.AttachmentPayload{
		Reader: resp.Body,
		Mime:   mime,
		Name:   attachment.Name,
		Size:   meta.FileSize,
	}, nil
}

func (a *Adapter) mediaMetadata(ctx context.Context, mediaID string) (mediaMetadata, error) {
	url := fmt.Sprintf("%s/%s", strings.TrimRight(a.cfg.GraphBaseURL, "/"), mediaID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return mediaMetadata{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.AccessToken)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return mediaMetadata{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return mediaMetadata{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mediaMetadata{}, fmt.Errorf("media lookup failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var meta mediaMetadata
	if err := json.Unmarshal(respBody, &meta); err != nil {
		return mediaMetadata{}, fmt.Errorf("parse media metadata: %w", err)
	}
	if meta.URL == "" {
		return mediaMetadata{}, fmt.Errorf("media metadata missing download url")
	}
	return meta, nil
}
