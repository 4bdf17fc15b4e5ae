package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryResultDeduper_Seen(t *testing.T) {
	ctx := context.Background()
	d := NewMemory(time.Minute)

	seen, err := d.Seen(ctx, "payment:1:abc:000.000.000")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(ctx, "payment:1:abc:000.000.000")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.Seen(ctx, "payment:1:abc:000.200.000")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryResultDeduper_Release(t *testing.T) {
	ctx := context.Background()
	d := NewMemory(time.Minute)

	_, _ = d.Seen(ctx, "refund:3:r1:000.000.000")
	require.NoError(t, d.Release(ctx, "refund:3:r1:000.000.000"))

	seen, err := d.Seen(ctx, "refund:3:r1:000.000.000")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryResultDeduper_TTLExpiration(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := newMemoryResultDeduper(time.Minute, func() time.Time { return now })

	_, _ = d.Seen(ctx, "k")
	now = now.Add(2 * time.Minute)

	seen, err := d.Seen(ctx, "k")
	require.NoError(t, err)
	assert.False(t, seen)

	// The expired entry was replaced and the sweep kept only live keys.
	assert.Len(t, d.seen, 1)
}

func TestNew_WithoutRedisAddrUsesMemory(t *testing.T) {
	d, err := New("", "", 0, 0)
	require.NoError(t, err)
	_, ok := d.(*memoryResultDeduper)
	assert.True(t, ok)
}
