package facttoken_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factline/factrt/facttoken"
)

func TestLeaseProviderGrantsAtMostOneLivingLeasePerKey(t *testing.T) {
	p := facttoken.NewLeaseProvider(time.Minute)
	ctx := context.Background()

	tok, ok, err := p.Acquire(ctx, "orders-projector", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, tok)

	_, ok, err = p.Acquire(ctx, "orders-projector", 0)
	require.NoError(t, err)
	assert.False(t, ok, "a second acquire on the same key must fail while the first lease is live")

	require.NoError(t, tok.Release(ctx))

	_, ok, err = p.Acquire(ctx, "orders-projector", 0)
	require.NoError(t, err)
	assert.True(t, ok, "the key must be acquirable again once the holder releases it")
}

func TestLeaseProviderReassignsAnExpiredLease(t *testing.T) {
	p := facttoken.NewLeaseProvider(time.Millisecond)
	ctx := context.Background()

	_, ok, err := p.Acquire(ctx, "k", 0)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	_, ok, err = p.Acquire(ctx, "k", 0)
	require.NoError(t, err)
	assert.True(t, ok, "an expired lease must be reassignable without an explicit release")
}

func TestLeaseProviderDifferentKeysDoNotContend(t *testing.T) {
	p := facttoken.NewLeaseProvider(time.Minute)
	ctx := context.Background()

	_, ok1, err := p.Acquire(ctx, "a", 0)
	require.NoError(t, err)
	_, ok2, err := p.Acquire(ctx, "b", 0)
	require.NoError(t, err)

	assert.True(t, ok1)
	assert.True(t, ok2)
}
