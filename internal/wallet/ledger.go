package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/zjoart/go-databundle-store/internal/account"
	"gorm.io/gorm"
)

var (
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

const (
	walletColumn = "wallet_balance"
	payoutColumn = "payout_balance"
)

// Ledger mutates account balances. Every mutation is a single conditional
// UPDATE, so concurrent reserves against one account cannot both pass the
// sufficiency check.
type Ledger interface {
	Reserve(ctx context.Context, accountID uuid.UUID, amount int64) error
	Credit(ctx context.Context, accountID uuid.UUID, amount int64) error
	ReservePayout(ctx context.Context, accountID uuid.UUID, amount int64) error
	CreditPayout(ctx context.Context, accountID uuid.UUID, amount int64) error
	Balances(ctx context.Context, accountID uuid.UUID) (Balances, error)
	WithTx(tx *gorm.DB) Ledger
}

type Balances struct {
	Wallet int64 `json:"wallet_balance"`
	Payout int64 `json:"payout_balance"`
}

type ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	return &ledger{db: tx}
}

func (l *ledger) Reserve(ctx context.Context, accountID uuid.UUID, amount int64) error {
	return l.debit(ctx, walletColumn, accountID, amount)
}

func (l *ledger) Credit(ctx context.Context, accountID uuid.UUID, amount int64) error {
	return l.credit(ctx, walletColumn, accountID, amount)
}

func (l *ledger) ReservePayout(ctx context.Context, accountID uuid.UUID, amount int64) error {
	return l.debit(ctx, payoutColumn, accountID, amount)
}

func (l *ledger) CreditPayout(ctx context.Context, accountID uuid.UUID, amount int64) error {
	return l.credit(ctx, payoutColumn, accountID, amount)
}

func (l *ledger) Balances(ctx context.Context, accountID uuid.UUID) (Balances, error) {
	var b Balances
	err := l.db.WithContext(ctx).Model(&account.Account{}).
		Select("wallet_balance AS wallet, payout_balance AS payout").
		Where("id = ?", accountID).
		Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Balances{}, account.ErrNotFound
	}
	return b, err
}

func (l *ledger) debit(ctx context.Context, column string, accountID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	res := l.db.WithContext(ctx).Model(&account.Account{}).
		Where("id = ? AND "+column+" >= ?", accountID, amount).
		UpdateColumn(column, gorm.Expr(column+" - ?", amount))
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		// distinguish a missing account from a short balance
		if _, err := l.Balances(ctx, accountID); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}

func (l *ledger) credit(ctx context.Context, column string, accountID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	res := l.db.WithContext(ctx).Model(&account.Account{}).
		Where("id = ?", accountID).
		UpdateColumn(column, gorm.Expr(column+" + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return account.ErrNotFound
	}
	return nil
}
