// Package reconcile turns verified external payments into exactly one ledger
// effect per payment reference.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/internal/paystack"
	"github.com/zjoart/go-databundle-store/internal/wallet"
	"github.com/zjoart/go-databundle-store/pkg/events"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"github.com/zjoart/go-databundle-store/pkg/metrics"
	"gorm.io/gorm"
)

var (
	ErrAlreadyProcessed   = errors.New("transaction already processed")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMissingReference   = errors.New("reference is required")
)

const (
	EventChargeSuccess = "charge.success"
	PurposeUpgrade     = "agent_upgrade"
)

type Verifier interface {
	Verify(ctx context.Context, reference string, rule paystack.Rule) paystack.Verification
}

type Config struct {
	FeeRate    decimal.Decimal
	Tolerance  decimal.Decimal
	MinTopUp   int64
	UpgradeFee int64
}

type Service struct {
	db       *gorm.DB
	accounts account.Repository
	ledger   wallet.Ledger
	orders   order.Repository
	verifier Verifier
	cfg      Config
}

func NewService(db *gorm.DB, accounts account.Repository, ledger wallet.Ledger, orders order.Repository, verifier Verifier, cfg Config) *Service {
	return &Service{db: db, accounts: accounts, ledger: ledger, orders: orders, verifier: verifier, cfg: cfg}
}

// CreditedAmount strips the processing fee from a gross payment.
func (s *Service) CreditedAmount(paidMinor int64) int64 {
	gross := decimal.NewFromInt(paidMinor)
	return gross.Div(decimal.NewFromInt(1).Add(s.cfg.FeeRate)).Round(0).IntPart()
}

// FundWallet credits creditMinor once the gateway confirms reference was paid
// with the processing fee on top. It returns the new wallet balance.
func (s *Service) FundWallet(ctx context.Context, accountID uuid.UUID, reference string, creditMinor int64) (int64, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return 0, ErrMissingReference
	}
	if creditMinor < s.cfg.MinTopUp {
		return 0, fmt.Errorf("%w: minimum top-up is %s", ErrInvalidAmount, catalog.FromMinor(s.cfg.MinTopUp).StringFixed(2))
	}

	if taken, err := s.orders.Exists(ctx, reference); err != nil {
		return 0, err
	} else if taken {
		return 0, ErrAlreadyProcessed
	}

	v := s.verifier.Verify(ctx, reference, paystack.ExactFee{
		CreditMinor: creditMinor,
		FeeRate:     s.cfg.FeeRate,
		Tolerance:   s.cfg.Tolerance,
	})
	if err := verificationError(v); err != nil {
		logger.Warn("Top-up verification failed", logger.Fields{
			logger.ReferenceKey: reference,
			logger.AccountIDKey: accountID.String(),
			"reason":            v.Reason,
		})
		return 0, err
	}

	if err := s.credit(ctx, accountID, reference, creditMinor, order.OriginWebWallet); err != nil {
		return 0, err
	}

	b, err := s.ledger.Balances(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return b.Wallet, nil
}

// UpgradeTier promotes a Standard account to Reseller once the upgrade fee
// is confirmed. Replaying the same reference for the same account succeeds
// without recording a second fee.
func (s *Service) UpgradeTier(ctx context.Context, accountID uuid.UUID, reference string) (account.Tier, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", ErrMissingReference
	}

	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return "", err
	}

	if existing, err := s.orders.FindByReference(ctx, reference); err == nil {
		return s.replayUpgrade(ctx, acct, existing)
	} else if !errors.Is(err, order.ErrNotFound) {
		return "", err
	}

	v := s.verifier.Verify(ctx, reference, paystack.MinimumThreshold{MinMinor: s.cfg.UpgradeFee})
	if err := verificationError(v); err != nil {
		return "", err
	}

	tier := acct.Tier
	if tier == account.TierStandard {
		tier = account.TierReseller
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, &order.Order{
			Reference:   reference,
			AccountID:   acct.ID,
			Kind:        order.KindAgentUpgradeFee,
			AmountMinor: v.Transaction.AmountMinor,
			Status:      order.StatusCompleted,
			Origin:      order.OriginWebWallet,
			Detail:      "Reseller upgrade fee",
		}); err != nil {
			return err
		}
		return s.accounts.WithTx(tx).SetTier(ctx, acct.ID, tier)
	})
	if errors.Is(err, order.ErrDuplicateReference) {
		existing, findErr := s.orders.FindByReference(ctx, reference)
		if findErr != nil {
			return "", findErr
		}
		return s.replayUpgrade(ctx, acct, existing)
	}
	if err != nil {
		return "", err
	}

	logger.Info("Account upgraded", logger.Fields{
		logger.AccountIDKey: acct.ID.String(),
		logger.ReferenceKey: reference,
		"tier":              string(tier),
	})
	return tier, nil
}

func (s *Service) replayUpgrade(ctx context.Context, acct *account.Account, existing *order.Order) (account.Tier, error) {
	if existing.AccountID != acct.ID || existing.Kind != order.KindAgentUpgradeFee {
		return "", ErrAlreadyProcessed
	}
	if acct.Tier != account.TierStandard {
		return acct.Tier, nil
	}
	if err := s.accounts.SetTier(ctx, acct.ID, account.TierReseller); err != nil {
		return "", err
	}
	return account.TierReseller, nil
}

type Outcome string

const (
	Credited  Outcome = "credited"
	Duplicate Outcome = "duplicate"
	Ignored   Outcome = "ignored"
)

type Result struct {
	Outcome     Outcome
	AccountID   uuid.UUID
	CreditMinor int64
	Reason      string
}

// ProcessWebhook applies an authenticated gateway notification. Only
// infrastructure failures are returned as errors; those are worth retrying.
func (s *Service) ProcessWebhook(ctx context.Context, ev events.WebhookEvent) (Result, error) {
	fields := logger.Fields{logger.ReferenceKey: ev.Reference, "event": ev.Event}

	switch {
	case ev.Event != EventChargeSuccess:
		return s.ignore(fields, "unhandled event type"), nil
	case ev.Status != "" && ev.Status != "success":
		return s.ignore(fields, "charge not successful"), nil
	case ev.Purpose == PurposeUpgrade:
		return s.ignore(fields, "upgrade fees are settled by the upgrade flow"), nil
	case ev.Reference == "" || ev.AmountMinor <= 0:
		return s.ignore(fields, "missing reference or amount"), nil
	}

	if taken, err := s.orders.Exists(ctx, ev.Reference); err != nil {
		return Result{}, err
	} else if taken {
		metrics.WebhookEventsTotal.WithLabelValues(string(Duplicate)).Inc()
		logger.Info("Webhook: reference already processed", fields)
		return Result{Outcome: Duplicate}, nil
	}

	acct, err := s.accounts.FindByEmail(ctx, ev.PayerContact)
	if errors.Is(err, account.ErrNotFound) {
		return s.ignore(logger.Merge(fields, logger.Fields{"payer": ev.PayerContact}), "no account for payer"), nil
	}
	if err != nil {
		return Result{}, err
	}

	credit := s.CreditedAmount(ev.AmountMinor)
	err = s.credit(ctx, acct.ID, ev.Reference, credit, order.OriginGatewayWebhook)
	if errors.Is(err, ErrAlreadyProcessed) {
		metrics.WebhookEventsTotal.WithLabelValues(string(Duplicate)).Inc()
		return Result{Outcome: Duplicate, AccountID: acct.ID}, nil
	}
	if err != nil {
		return Result{}, err
	}

	metrics.WebhookEventsTotal.WithLabelValues(string(Credited)).Inc()
	return Result{Outcome: Credited, AccountID: acct.ID, CreditMinor: credit}, nil
}

func (s *Service) ignore(fields logger.Fields, reason string) Result {
	metrics.WebhookEventsTotal.WithLabelValues(string(Ignored)).Inc()
	logger.Warn("Webhook: event ignored", logger.Merge(fields, logger.Fields{"reason": reason}))
	return Result{Outcome: Ignored, Reason: reason}
}

// credit records the top-up order and the wallet credit together; the unique
// reference makes the pair happen at most once.
func (s *Service) credit(ctx context.Context, accountID uuid.UUID, reference string, amount int64, origin order.Origin) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, &order.Order{
			Reference:   reference,
			AccountID:   accountID,
			Kind:        order.KindWalletTopUp,
			AmountMinor: amount,
			Status:      order.StatusCompleted,
			Origin:      origin,
			Detail:      "Wallet funding",
		}); err != nil {
			return err
		}
		return s.ledger.WithTx(tx).Credit(ctx, accountID, amount)
	})
	if errors.Is(err, order.ErrDuplicateReference) {
		return ErrAlreadyProcessed
	}
	if err != nil {
		return err
	}

	kind := "topup"
	if origin == order.OriginGatewayWebhook {
		kind = "webhook"
	}
	metrics.WalletCreditsTotal.WithLabelValues(kind).Inc()
	logger.Info("Wallet credited", logger.Fields{
		logger.ReferenceKey: reference,
		logger.AccountIDKey: accountID.String(),
		"amount_minor":      amount,
		"origin":            string(origin),
	})
	return nil
}

func verificationError(v paystack.Verification) error {
	switch v.Outcome {
	case paystack.Confirmed:
		return nil
	case paystack.GatewayError:
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, v.Err)
	default:
		return fmt.Errorf("%w: %s", ErrVerificationFailed, v.Reason)
	}
}
