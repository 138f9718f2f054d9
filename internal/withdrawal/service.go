package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/internal/wallet"
	"github.com/zjoart/go-databundle-store/pkg/id"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"github.com/zjoart/go-databundle-store/pkg/metrics"
	"gorm.io/gorm"
)

var (
	ErrNotAllowed        = errors.New("account tier cannot withdraw")
	ErrInvalidAmount     = errors.New("withdrawal amount must be positive")
	ErrInvalidPayee      = errors.New("invalid payee details")
	ErrNotPending        = errors.New("withdrawal is no longer pending")
	ErrInsufficientFunds = wallet.ErrInsufficientFunds
)

type Payee struct {
	Method        Method `json:"method"`
	Provider      string `json:"provider"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

func (p Payee) validate() error {
	if p.Method != MethodBank && p.Method != MethodMobileMoney {
		return fmt.Errorf("%w: method must be bank or momo", ErrInvalidPayee)
	}
	if strings.TrimSpace(p.AccountName) == "" || strings.TrimSpace(p.AccountNumber) == "" {
		return fmt.Errorf("%w: account name and number are required", ErrInvalidPayee)
	}
	return nil
}

type Service struct {
	db          *gorm.DB
	withdrawals Repository
	orders      order.Repository
	ledger      wallet.Ledger
}

func NewService(db *gorm.DB, withdrawals Repository, orders order.Repository, ledger wallet.Ledger) *Service {
	return &Service{db: db, withdrawals: withdrawals, orders: orders, ledger: ledger}
}

// Request debits the payout balance and records a pending withdrawal.
func (s *Service) Request(ctx context.Context, acct account.Account, amountMinor int64, payee Payee) (*Withdrawal, error) {
	if !acct.Tier.Can(account.CapWithdraw) {
		return nil, ErrNotAllowed
	}
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := payee.validate(); err != nil {
		return nil, err
	}

	w := &Withdrawal{
		Reference:     id.Reference("wd"),
		AccountID:     acct.ID,
		AmountMinor:   amountMinor,
		Status:        order.StatusRequested,
		Method:        payee.Method,
		Provider:      strings.TrimSpace(payee.Provider),
		AccountName:   strings.TrimSpace(payee.AccountName),
		AccountNumber: strings.TrimSpace(payee.AccountNumber),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.WithTx(tx).ReservePayout(ctx, acct.ID, amountMinor); err != nil {
			return err
		}
		if err := s.withdrawals.WithTx(tx).Create(ctx, w); err != nil {
			return err
		}
		return s.orders.WithTx(tx).Create(ctx, &order.Order{
			Reference:   w.Reference,
			AccountID:   acct.ID,
			Kind:        order.KindWithdrawal,
			AmountMinor: amountMinor,
			Status:      order.StatusRequested,
			Origin:      order.OriginPayout,
			Detail:      string(w.Method) + " " + w.Provider,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Withdrawal requested", logger.Fields{
		logger.AccountIDKey: acct.ID.String(),
		logger.ReferenceKey: w.Reference,
		"amount_minor":      amountMinor,
	})
	return w, nil
}

// Approve marks a pending withdrawal as paid out. Disbursement happens outside the system.
func (s *Service) Approve(ctx context.Context, withdrawalID uuid.UUID) (*Withdrawal, error) {
	return s.settle(ctx, withdrawalID, order.StatusPaid, "")
}

// Reject closes a pending withdrawal and returns the amount to the payout balance.
func (s *Service) Reject(ctx context.Context, withdrawalID uuid.UUID, reason string) (*Withdrawal, error) {
	return s.settle(ctx, withdrawalID, order.StatusRejected, reason)
}

func (s *Service) settle(ctx context.Context, withdrawalID uuid.UUID, to order.Status, note string) (*Withdrawal, error) {
	w, err := s.withdrawals.FindByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.withdrawals.WithTx(tx).Transition(ctx, w.ID, order.StatusRequested, to, note); err != nil {
			return err
		}
		if err := s.orders.WithTx(tx).Transition(ctx, w.Reference, order.StatusRequested, to, map[string]interface{}{"detail": note}); err != nil {
			return err
		}
		if to == order.StatusRejected {
			return s.ledger.WithTx(tx).CreditPayout(ctx, w.AccountID, w.AmountMinor)
		}
		return nil
	})
	if errors.Is(err, order.ErrInvalidTransition) {
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, err
	}

	if to == order.StatusRejected {
		metrics.WalletCreditsTotal.WithLabelValues("withdrawal_reversal").Inc()
	}
	logger.Info("Withdrawal settled", logger.Fields{
		logger.AccountIDKey: w.AccountID.String(),
		logger.ReferenceKey: w.Reference,
		"status":            string(to),
	})

	w.Status = to
	w.Note = note
	return w, nil
}

func (s *Service) ListForAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Withdrawal, error) {
	return s.withdrawals.ListByAccount(ctx, accountID, limit, offset)
}

func (s *Service) Pending(ctx context.Context, limit, offset int) ([]Withdrawal, error) {
	return s.withdrawals.ListByStatus(ctx, order.StatusRequested, limit, offset)
}
