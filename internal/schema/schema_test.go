package schema

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/internal/shop"
	"github.com/zjoart/go-databundle-store/internal/withdrawal"
	"github.com/zjoart/go-databundle-store/pkg/database"
)

func TestMigrate(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "schema.db"))
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	// idempotent
	require.NoError(t, Migrate(db))

	for _, model := range []interface{}{&account.Account{}, &order.Order{}, &shop.Shop{}, &withdrawal.Withdrawal{}} {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.True(t, db.Migrator().HasIndex(&order.Order{}, "Reference"))
}

func TestMigratedAccountStoresTokenScopes(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "scopes.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasColumn(&account.Account{}, "APITokenScopes"))

	repo := account.NewRepository(db)
	acct := &account.Account{Handle: "nana", Email: "nana@example.com", Tier: account.TierReseller}
	require.NoError(t, repo.Create(ctx, acct))
	require.NoError(t, repo.SetAPIToken(ctx, acct.ID, "hash-1", "sk_live_****abcd", []string{"READ", "PURCHASE"}))

	found, err := repo.FindByAPITokenHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, account.Scopes{"READ", "PURCHASE"}, found.APITokenScopes)
	assert.True(t, found.APITokenScopes.Has("PURCHASE"))

	require.NoError(t, repo.ClearAPIToken(ctx, acct.ID))
	found, err = repo.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Empty(t, found.APITokenScopes)
}
