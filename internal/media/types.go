// Package media ingests listing photos: size-limited download, content
// hashing, and storage behind a pluggable object-store provider.
package media

import (
	"context"
	"io"
	"time"
)

// MediaType classifies the kind of media asset and prefixes its storage key.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
)

// Asset describes a stored media object.
type Asset struct {
	ContentHash string    `json:"content_hash"`
	MediaType   MediaType `json:"media_type"`
	Mime        string    `json:"mime"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"storage_key"`
	CreatedAt   time.Time `json:"created_at"`
}

// IngestInput carries the data needed to persist a new media asset.
type IngestInput struct {
	MediaType MediaType
	Mime      string
	// Reader provides the raw bytes; caller is responsible for closing.
	Reader io.Reader
	// MaxBytes optionally overrides the default size limit.
	MaxBytes int64
}

// StorageProvider abstracts object storage operations.
type StorageProvider interface {
	// Put writes data to storage under the given key.
	Put(ctx context.Context, key string, reader io.Reader) error
	// Open returns a reader for the given storage key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
	// AccessPath returns a consumer-accessible reference for a storage key.
	// The format depends on the backend (e.g. served URL, object URL).
	AccessPath(key string) string
}
