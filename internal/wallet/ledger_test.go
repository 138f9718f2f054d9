package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/pkg/database/dbtest"
	"gorm.io/gorm"
)

func seedAccount(t *testing.T, db *gorm.DB, wallet, payout int64) uuid.UUID {
	t.Helper()
	acct := &account.Account{
		Handle:        "user-" + uuid.NewString()[:8],
		Email:         uuid.NewString() + "@example.com",
		WalletBalance: wallet,
		PayoutBalance: payout,
	}
	require.NoError(t, db.Create(acct).Error)
	return acct.ID
}

func TestReserveAndCredit(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t, &account.Account{})
	l := NewLedger(db)
	id := seedAccount(t, db, 10000, 0)

	require.NoError(t, l.Reserve(ctx, id, 3000))
	b, err := l.Balances(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), b.Wallet)

	require.NoError(t, l.Credit(ctx, id, 3000))
	b, err = l.Balances(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), b.Wallet)
}

func TestReserveNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t, &account.Account{})
	l := NewLedger(db)
	id := seedAccount(t, db, 1000, 0)

	err := l.Reserve(ctx, id, 3000)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	b, err := l.Balances(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), b.Wallet)

	require.NoError(t, l.Reserve(ctx, id, 1000))
	assert.ErrorIs(t, l.Reserve(ctx, id, 1), ErrInsufficientFunds)
}

func TestReserveSequences(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t, &account.Account{})
	l := NewLedger(db)
	id := seedAccount(t, db, 500, 0)

	ops := []struct {
		reserve bool
		amount  int64
	}{
		{true, 200}, {true, 400}, {false, 100}, {true, 400}, {true, 1}, {false, 50}, {true, 50},
	}

	expected := int64(500)
	for _, op := range ops {
		if op.reserve {
			err := l.Reserve(ctx, id, op.amount)
			if expected >= op.amount {
				require.NoError(t, err)
				expected -= op.amount
			} else {
				require.ErrorIs(t, err, ErrInsufficientFunds)
			}
		} else {
			require.NoError(t, l.Credit(ctx, id, op.amount))
			expected += op.amount
		}

		b, err := l.Balances(ctx, id)
		require.NoError(t, err)
		require.Equal(t, expected, b.Wallet)
		require.GreaterOrEqual(t, b.Wallet, int64(0))
	}
}

func TestConcurrentReservesOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t, &account.Account{})
	l := NewLedger(db)
	id := seedAccount(t, db, 3000, 0)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		shortfall int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Reserve(ctx, id, 3000)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInsufficientFunds):
				shortfall++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 7, shortfall)
	b, err := l.Balances(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Wallet)
}

func TestPayoutBalanceIsSeparate(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t, &account.Account{})
	l := NewLedger(db)
	id := seedAccount(t, db, 5000, 800)

	assert.ErrorIs(t, l.ReservePayout(ctx, id, 1000), ErrInsufficientFunds)
	require.NoError(t, l.ReservePayout(ctx, id, 800))
	require.NoError(t, l.CreditPayout(ctx, id, 300))

	b, err := l.Balances(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), b.Wallet)
	assert.Equal(t, int64(300), b.Payout)
}

func TestLedgerRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t, &account.Account{})
	l := NewLedger(db)
	id := seedAccount(t, db, 100, 0)

	assert.ErrorIs(t, l.Reserve(ctx, id, 0), ErrInvalidAmount)
	assert.ErrorIs(t, l.Credit(ctx, id, -5), ErrInvalidAmount)
	assert.ErrorIs(t, l.Credit(ctx, uuid.New(), 100), account.ErrNotFound)
	assert.ErrorIs(t, l.Reserve(ctx, uuid.New(), 100), account.ErrNotFound)
}

func TestReserveRollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t, &account.Account{})
	l := NewLedger(db)
	id := seedAccount(t, db, 1000, 0)

	boom := errors.New("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := l.WithTx(tx).Reserve(ctx, id, 400); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	b, err := l.Balances(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), b.Wallet)
}
