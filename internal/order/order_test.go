package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/go-databundle-store/pkg/database/dbtest"
)

func newOrder(ref string, accountID uuid.UUID, status Status) *Order {
	return &Order{
		Reference:   ref,
		AccountID:   accountID,
		Kind:        KindPurchase,
		Network:     "MTN",
		PlanLabel:   "5GB",
		PhoneNumber: "0241234567",
		AmountMinor: 3000,
		Status:      status,
		Origin:      OriginWebWallet,
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusCreated, StatusReserved))
	assert.True(t, CanTransition(StatusReserved, StatusRefunded))
	assert.True(t, CanTransition(StatusSubmitted, StatusDelivered))
	assert.True(t, CanTransition(StatusRequested, StatusPaid))

	assert.False(t, CanTransition(StatusDelivered, StatusRefunded))
	assert.False(t, CanTransition(StatusRefunded, StatusDelivered))
	assert.False(t, CanTransition(StatusCreated, StatusDelivered))
	assert.False(t, CanTransition(StatusCompleted, StatusRefunded))

	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusRefunded.Terminal())
	assert.False(t, StatusSubmitted.Terminal())
}

func TestCreateRejectsDuplicateReference(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t, &Order{}))
	acct := uuid.New()

	require.NoError(t, repo.Create(ctx, newOrder("ref-1", acct, StatusCreated)))
	err := repo.Create(ctx, newOrder("ref-1", acct, StatusCreated))
	assert.ErrorIs(t, err, ErrDuplicateReference)

	ok, err := repo.Exists(ctx, "ref-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "ref-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransition(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t, &Order{}))
	acct := uuid.New()
	require.NoError(t, repo.Create(ctx, newOrder("pur-1", acct, StatusCreated)))

	require.NoError(t, repo.Transition(ctx, "pur-1", StatusCreated, StatusReserved, nil))
	require.NoError(t, repo.Transition(ctx, "pur-1", StatusReserved, StatusSubmitted, nil))

	// a second writer that still believes the order is reserved loses
	err := repo.Transition(ctx, "pur-1", StatusReserved, StatusRefunded, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, repo.Transition(ctx, "pur-1", StatusSubmitted, StatusDelivered, map[string]interface{}{
		"reference": "PRV-778",
	}))

	_, err = repo.FindByReference(ctx, "pur-1")
	assert.ErrorIs(t, err, ErrNotFound)

	o, err := repo.FindByReference(ctx, "PRV-778")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)

	err = repo.Transition(ctx, "PRV-778", StatusDelivered, StatusRefunded, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionReferenceCollision(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t, &Order{}))
	acct := uuid.New()
	require.NoError(t, repo.Create(ctx, newOrder("taken", acct, StatusDelivered)))
	require.NoError(t, repo.Create(ctx, newOrder("pur-2", acct, StatusSubmitted)))

	err := repo.Transition(ctx, "pur-2", StatusSubmitted, StatusDelivered, map[string]interface{}{
		"reference": "taken",
	})
	assert.ErrorIs(t, err, ErrDuplicateReference)

	o, err := repo.FindByReference(ctx, "pur-2")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, o.Status)
}

func TestListCountAndSum(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t, &Order{}))
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, repo.Create(ctx, newOrder("a-1", alice, StatusDelivered)))
	require.NoError(t, repo.Create(ctx, newOrder("a-2", alice, StatusRefunded)))
	topUp := newOrder("a-3", alice, StatusCompleted)
	topUp.Kind = KindWalletTopUp
	topUp.AmountMinor = 5000
	require.NoError(t, repo.Create(ctx, topUp))
	require.NoError(t, repo.Create(ctx, newOrder("b-1", bob, StatusDelivered)))

	list, err := repo.List(ctx, Filter{AccountID: alice}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	n, err := repo.Count(ctx, Filter{Kind: KindPurchase, Status: StatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	sum, err := repo.SumAmount(ctx, Filter{Kind: KindPurchase, Status: StatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, int64(6000), sum)

	sum, err = repo.SumAmount(ctx, Filter{Kind: KindWithdrawal})
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)

	page, err := repo.List(ctx, Filter{}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestFindStale(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t, &Order{})
	repo := NewRepository(db)
	acct := uuid.New()

	require.NoError(t, repo.Create(ctx, newOrder("old", acct, StatusSubmitted)))
	require.NoError(t, repo.Create(ctx, newOrder("fresh", acct, StatusSubmitted)))
	require.NoError(t, repo.Create(ctx, newOrder("done", acct, StatusDelivered)))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&Order{}).Where("reference IN ?", []string{"old", "done"}).
		UpdateColumn("updated_at", past).Error)

	stale, err := repo.FindStale(ctx, KindPurchase, []Status{StatusReserved, StatusSubmitted}, time.Now().Add(-15*time.Minute), 50)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].Reference)
}
