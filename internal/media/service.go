package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
)

// Service persists listing photos through the configured storage provider.
// Content-addressed keys make repeat ingests of the same bytes idempotent.
type Service struct {
	provider StorageProvider
	logger   *slog.Logger
}

// NewService creates a media service with the given storage provider.
func NewService(log *slog.Logger, provider StorageProvider) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		provider: provider,
		logger:   log.With(slog.String("service", "media")),
	}
}

// Ingest reads the payload within the size limit, hashes it, and stores it
// under a content-addressed key. Storing the same bytes twice lands on the
// same key, so the operation is safe against webhook re-delivery.
func (s *Service) Ingest(ctx context.Context, input IngestInput) (Asset, error) {
	if s.provider == nil {
		return Asset{}, ErrProviderUnavailable
	}
	if input.Reader == nil {
		return Asset{}, fmt.Errorf("reader is required")
	}
	mediaType := input.MediaType
	if mediaType == "" {
		mediaType = MediaTypeImage
	}

	maxBytes := input.MaxBytes
	if maxBytes <= 0 {
		maxBytes = MaxImageBytes
	}
	data, err := ReadAllWithLimit(input.Reader, maxBytes)
	if err != nil {
		return Asset{}, fmt.Errorf("read input: %w", err)
	}
	if len(data) == 0 {
		return Asset{}, fmt.Errorf("asset payload is empty")
	}

	sum := sha256.Sum256(data)
	contentHash := hex.EncodeToString(sum[:])
	storageKey := path.Join(
		string(mediaType),
		contentHash[:4],
		contentHash+extensionFromMime(input.Mime),
	)

	if err := s.provider.Put(ctx, storageKey, bytes.NewReader(data)); err != nil {
		return Asset{}, fmt.Errorf("store media: %w", err)
	}

	return Asset{
		ContentHash: contentHash,
		MediaType:   mediaType,
		Mime:        coalesce(input.Mime, "application/octet-stream"),
		SizeBytes:   int64(len(data)),
		StorageKey:  storageKey,
		CreatedAt:   time.Now(),
	}, nil
}

// AccessPath returns a consumer-accessible reference for a persisted asset.
// Delegates to the storage provider to compute the format-appropriate path.
func (s *Service) AccessPath(asset Asset) string {
	if s.provider == nil {
		return ""
	}
	return s.provider.AccessPath(asset.StorageKey)
}

// --- helpers ---

func extensionFromMime(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
