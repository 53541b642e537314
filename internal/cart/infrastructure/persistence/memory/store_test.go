package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, ok, err := s.Get(ctx, "@RocketShoes:cart")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "@RocketShoes:cart", `[{"id":1}]`))
	v, ok, err := s.Get(ctx, "@RocketShoes:cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, v)

	require.NoError(t, s.Set(ctx, "@RocketShoes:cart", `[]`))
	v, _, _ = s.Get(ctx, "@RocketShoes:cart")
	assert.Equal(t, `[]`, v)
	assert.NoError(t, s.Ping(ctx))
}
