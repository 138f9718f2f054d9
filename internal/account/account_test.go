package account

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/pkg/database/dbtest"
)

func TestTierPricingClass(t *testing.T) {
	assert.Equal(t, catalog.Retail, TierStandard.PricingClass())
	assert.Equal(t, catalog.Wholesale, TierReseller.PricingClass())
	assert.Equal(t, catalog.Wholesale, TierOperator.PricingClass())
	assert.Panics(t, func() { Tier("GUEST").PricingClass() })
}

func TestTierCapabilities(t *testing.T) {
	tests := []struct {
		tier Tier
		cap  Capability
		want bool
	}{
		{TierStandard, CapStorefront, false},
		{TierStandard, CapWithdraw, false},
		{TierReseller, CapStorefront, true},
		{TierReseller, CapAPIToken, true},
		{TierReseller, CapWithdraw, true},
		{TierReseller, CapOperate, false},
		{TierOperator, CapOperate, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier)+"/"+string(tt.cap), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tier.Can(tt.cap))
		})
	}
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("agent")
	require.NoError(t, err)
	assert.Equal(t, TierReseller, tier)

	tier, err = ParseTier(" operator ")
	require.NoError(t, err)
	assert.Equal(t, TierOperator, tier)

	_, err = ParseTier("vip")
	assert.Error(t, err)
}

func TestRepositoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t, &Account{}))

	acct := &Account{Handle: "kofi", Email: " Kofi@Example.com "}
	require.NoError(t, repo.Create(ctx, acct))
	assert.NotEqual(t, uuid.Nil, acct.ID)
	assert.Equal(t, TierStandard, acct.Tier)

	found, err := repo.FindByEmail(ctx, "KOFI@example.com")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, found.ID)
	assert.Equal(t, int64(0), found.WalletBalance)

	err = repo.Create(ctx, &Account{Handle: "kofi", Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = repo.FindByHandle(ctx, "ama")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryTokenAndOverrides(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t, &Account{}))

	acct := &Account{Handle: "esi", Email: "esi@example.com", Tier: TierReseller}
	require.NoError(t, repo.Create(ctx, acct))

	require.NoError(t, repo.SetAPIToken(ctx, acct.ID, "hash-1", "sk_live_...abcd", []string{"READ", "PURCHASE"}))
	found, err := repo.FindByAPITokenHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, found.ID)
	assert.True(t, found.APITokenScopes.Has("PURCHASE"))

	require.NoError(t, repo.SetCustomPrices(ctx, acct.ID, map[string]int64{"MTN:5GB": 2300}))
	found, err = repo.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	overrides, err := found.PriceOverrides()
	require.NoError(t, err)
	assert.Equal(t, int64(2300), overrides["MTN:5GB"])

	require.NoError(t, repo.ClearAPIToken(ctx, acct.ID))
	_, err = repo.FindByAPITokenHash(ctx, "hash-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.SetTier(ctx, uuid.New(), TierOperator), ErrNotFound)
}
