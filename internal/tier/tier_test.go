package tier_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bozor/internal/tier"
)

func TestExpiresAt_PremiumDurations(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		label    string
		duration time.Duration
	}{
		{tier.Premium24h, 24 * time.Hour},
		{tier.Premium7d, 7 * 24 * time.Hour},
		{tier.Premium15d, 15 * 24 * time.Hour},
		{tier.Premium30d, 30 * 24 * time.Hour},
	}

	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			at := tier.ExpiresAt(tc.label, now)
			require.NotNil(t, at)
			assert.Equal(t, tc.duration, at.Sub(now))
		})
	}
}

func TestExpiresAt_StandardAndUnknownDegradeToNil(t *testing.T) {
	now := time.Now()

	assert.Nil(t, tier.ExpiresAt(tier.Standard, now))
	assert.Nil(t, tier.ExpiresAt("premium_gold", now))
	assert.Nil(t, tier.ExpiresAt("", now))
}

func TestIsPremium(t *testing.T) {
	assert.True(t, tier.IsPremium(tier.Premium24h))
	assert.True(t, tier.IsPremium(tier.Premium30d))
	assert.False(t, tier.IsPremium(tier.Standard))
	assert.False(t, tier.IsPremium("vip"))
}

func TestPrice(t *testing.T) {
	price, ok := tier.Price(tier.Premium7d)
	assert.True(t, ok)
	assert.Positive(t, price)

	price, ok = tier.Price(tier.Standard)
	assert.True(t, ok)
	assert.Zero(t, price)

	_, ok = tier.Price("vip")
	assert.False(t, ok)
}
