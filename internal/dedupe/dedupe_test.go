package dedupe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryDeduper(t *testing.T) {
	t.Parallel()

	d := NewMemoryDeduper()
	ctx := context.Background()

	assert.True(t, d.Claim(ctx, "wamid.1"))
	assert.False(t, d.Claim(ctx, "wamid.1"))
	assert.True(t, d.Claim(ctx, "wamid.2"))
}

func TestMemoryDeduper_EmptyIDAlwaysClaims(t *testing.T) {
	t.Parallel()

	d := NewMemoryDeduper()
	ctx := context.Background()

	assert.True(t, d.Claim(ctx, ""))
	assert.True(t, d.Claim(ctx, ""))
}
