package cache

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	var dst map[string]int
	assert.False(t, c.GetJSON(ctx, "k", &dst))
	c.SetJSON(ctx, "k", map[string]int{"a": 1})
	c.InvalidatePrefix(ctx, "k")
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(ctx))
}

func TestNewWithoutAddressDisablesCache(t *testing.T) {
	c, err := New(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestKeyIsStablePerFilter(t *testing.T) {
	type filter struct {
		Category string `json:"category"`
		Brand    string `json:"brand"`
	}
	a := Key("comparator:list", filter{Category: "shoes"})
	b := Key("comparator:list", filter{Category: "shoes"})
	c := Key("comparator:list", filter{Category: "clothing"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "comparator:list:"))
}
