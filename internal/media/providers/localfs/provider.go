// Package localfs implements media.StorageProvider on a local directory tree.
// It is the default backend for single-node deployments; keys map to files
// under <dataRoot>/media/<key> and AccessPath prepends the public base URL.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Provider stores media assets on the local filesystem.
type Provider struct {
	dataRoot string
	baseURL  string
}

// New creates a filesystem storage provider. dataRoot is the directory that
// holds media files; baseURL is the public prefix AccessPath uses.
func New(dataRoot, baseURL string) (*Provider, error) {
	abs, err := filepath.Abs(dataRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve data root: %w", err)
	}
	return &Provider{
		dataRoot: abs,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

// Put writes data to the file mapped from the storage key.
func (p *Provider) Put(_ context.Context, key string, reader io.Reader) error {
	dest, err := p.filePath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Open reads the file mapped from the storage key.
func (p *Provider) Open(_ context.Context, key string) (io.ReadCloser, error) {
	dest, err := p.filePath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(dest)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Delete removes the file mapped from the storage key.
func (p *Provider) Delete(_ context.Context, key string) error {
	dest, err := p.filePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// AccessPath returns the public URL for a storage key.
func (p *Provider) AccessPath(key string) string {
	return p.baseURL + "/media/" + key
}

// filePath converts a storage key into a filesystem path, refusing anything
// that would escape the data root.
func (p *Provider) filePath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("absolute key is forbidden: %s", key)
	}
	if strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("path traversal is forbidden: %s", key)
	}
	joined := filepath.Join(p.dataRoot, "media", clean)
	if !strings.HasPrefix(joined, p.dataRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes data root: %s", key)
	}
	return joined, nil
}
