package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := New()

	_, ok, err := c.Get(ctx, "0000320193")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "0000320193", 42))
	id, ok, err := c.Get(ctx, "0000320193")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, 1, c.Len())
}
