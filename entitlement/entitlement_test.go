package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealscope/config"
)

func TestStatic_Get(t *testing.T) {
	s, err := NewStatic(config.EntitlementConfig{
		DefaultTier: "free",
		PaidOwners:  []string{"owner-paid"},
		FreeLimit:   1,
	})
	require.NoError(t, err)

	free, err := s.Get(context.Background(), "owner-free")
	require.NoError(t, err)
	assert.Equal(t, TierFree, free.Tier)
	assert.Equal(t, 1, free.OfferLimit)
	assert.False(t, free.PremiumPillars)
	assert.False(t, free.Unlimited())

	paid, err := s.Get(context.Background(), "owner-paid")
	require.NoError(t, err)
	assert.Equal(t, TierPaid, paid.Tier)
	assert.True(t, paid.PremiumPillars)
	assert.True(t, paid.Unlimited())
}

func TestStatic_PaidDefault(t *testing.T) {
	s, err := NewStatic(config.EntitlementConfig{DefaultTier: "paid", PaidLimit: 5})
	require.NoError(t, err)

	e, err := s.Get(context.Background(), "anyone")
	require.NoError(t, err)
	assert.Equal(t, 5, e.OfferLimit)
	assert.True(t, e.PremiumPillars)
}

func TestStatic_CancelledContext(t *testing.T) {
	s, err := NewStatic(config.EntitlementConfig{DefaultTier: "free"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Get(ctx, "owner")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewStatic_RejectsUnknownTier(t *testing.T) {
	_, err := NewStatic(config.EntitlementConfig{DefaultTier: "gold"})
	assert.Error(t, err)
}
