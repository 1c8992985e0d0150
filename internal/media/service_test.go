package media

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProvider struct {
	objects map[string][]byte
}

func newMemProvider() *memProvider {
	return &memProvider{objects: map[string][]byte{}}
}

func (m *memProvider) Put(_ context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memProvider) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.objects[key])), nil
}

func (m *memProvider) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memProvider) AccessPath(key string) string {
	return "mem://" + key
}

func TestIngest(t *testing.T) {
	t.Parallel()

	provider := newMemProvider()
	svc := NewService(nil, provider)

	asset, err := svc.Ingest(context.Background(), IngestInput{
		Mime:   "image/jpeg",
		Reader: strings.NewReader("fake jpeg bytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, MediaTypeImage, asset.MediaType)
	assert.Equal(t, int64(len("fake jpeg bytes")), asset.SizeBytes)
	assert.True(t, strings.HasSuffix(asset.StorageKey, ".jpg"))
	assert.Contains(t, provider.objects, asset.StorageKey)
	assert.Equal(t, "mem://"+asset.StorageKey, svc.AccessPath(asset))
}

func TestIngest_SameBytesSameKey(t *testing.T) {
	t.Parallel()

	provider := newMemProvider()
	svc := NewService(nil, provider)

	first, err := svc.Ingest(context.Background(), IngestInput{
		Mime:   "image/png",
		Reader: strings.NewReader("same content"),
	})
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), IngestInput{
		Mime:   "image/png",
		Reader: strings.NewReader("same content"),
	})
	require.NoError(t, err)

	assert.Equal(t, first.StorageKey, second.StorageKey)
	assert.Len(t, provider.objects, 1)
}

func TestIngest_RejectsOversized(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, newMemProvider())
	_, err := svc.Ingest(context.Background(), IngestInput{
		Mime:     "image/jpeg",
		Reader:   strings.NewReader("0123456789"),
		MaxBytes: 5,
	})
	assert.ErrorIs(t, err, ErrAssetTooLarge)
}

func TestIngest_NoProvider(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, nil)
	_, err := svc.Ingest(context.Background(), IngestInput{Reader: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestReadAllWithLimit(t *testing.T) {
	t.Parallel()

	data, err := ReadAllWithLimit(strings.NewReader("hello"), 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = ReadAllWithLimit(strings.NewReader("hello"), 4)
	assert.ErrorIs(t, err, ErrAssetTooLarge)

	_, err = ReadAllWithLimit(nil, 10)
	assert.Error(t, err)
}
