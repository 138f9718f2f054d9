// Package purchase runs the bundle purchase state machine:
// Created -> Reserved -> Submitted -> Delivered | Refunded.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/internal/provider"
	"github.com/zjoart/go-databundle-store/internal/shop"
	"github.com/zjoart/go-databundle-store/internal/wallet"
	"github.com/zjoart/go-databundle-store/pkg/id"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"github.com/zjoart/go-databundle-store/pkg/metrics"
	"gorm.io/gorm"
)

var (
	ErrInsufficientFunds  = wallet.ErrInsufficientFunds
	ErrDuplicateReference = order.ErrDuplicateReference
	ErrFulfillmentFailed  = errors.New("fulfillment failed")
)

type Request struct {
	AccountID uuid.UUID
	Network   catalog.Network
	PlanID    string
	Phone     string
	Origin    order.Origin
	// Reference is an optional caller-supplied idempotency key.
	Reference string
	// Storefront carries an already resolved shop price; the markup is paid
	// to the shop owner once the bundle is delivered.
	Storefront *shop.Quote
}

// Receipt is what the caller learns about a finished purchase.
type Receipt struct {
	Reference   string       `json:"reference"`
	Status      order.Status `json:"status"`
	Network     string       `json:"network"`
	Plan        string       `json:"plan"`
	Phone       string       `json:"phone_number"`
	AmountMinor int64        `json:"amount_minor"`
	Amount      string       `json:"amount"`
	Refunded    bool         `json:"refunded"`
	Reason      string       `json:"reason,omitempty"`
}

type Orchestrator struct {
	db       *gorm.DB
	accounts account.Repository
	ledger   wallet.Ledger
	orders   order.Repository
	catalog  *catalog.Catalog
	gateway  provider.Gateway
	timeout  time.Duration
}

func NewOrchestrator(db *gorm.DB, accounts account.Repository, ledger wallet.Ledger, orders order.Repository,
	cat *catalog.Catalog, gateway provider.Gateway, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		db:       db,
		accounts: accounts,
		ledger:   ledger,
		orders:   orders,
		catalog:  cat,
		gateway:  gateway,
		timeout:  timeout,
	}
}

// ResolvePrice picks the price the account pays for a plan. Overrides apply
// only to the external API and fall back to the tier table.
func (o *Orchestrator) ResolvePrice(acct *account.Account, origin order.Origin, network catalog.Network, planID string) (catalog.Price, error) {
	price, err := o.catalog.PriceFor(acct.Tier.PricingClass(), network, planID)
	if err != nil {
		return catalog.Price{}, err
	}
	if origin != order.OriginExternalAPI {
		return price, nil
	}

	overrides, err := acct.PriceOverrides()
	if err != nil {
		return catalog.Price{}, fmt.Errorf("decode price overrides: %w", err)
	}
	if minor, ok := overrides[catalog.PlanKey(network, price.PlanID)]; ok {
		price.Minor = minor
		price.Amount = catalog.FromMinor(minor)
	}
	return price, nil
}

// Purchase reserves the price, asks the provider to deliver, and either
// settles the order as Delivered or refunds the exact reserved amount.
// A failed delivery returns both the receipt and an ErrFulfillmentFailed error.
func (o *Orchestrator) Purchase(ctx context.Context, req Request) (*Receipt, error) {
	acct, err := o.accounts.FindByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	var price catalog.Price
	if req.Storefront != nil {
		price = req.Storefront.Price
	} else if price, err = o.ResolvePrice(acct, req.Origin, req.Network, req.PlanID); err != nil {
		return nil, err
	}

	reference := req.Reference
	if reference != "" {
		taken, err := o.orders.Exists(ctx, reference)
		if err != nil {
			return nil, err
		}
		if taken {
			metrics.PurchasesTotal.WithLabelValues("duplicate").Inc()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReference, reference)
		}
	} else {
		reference = id.Reference("pur")
	}

	ord := &order.Order{
		Reference:   reference,
		AccountID:   acct.ID,
		Kind:        order.KindPurchase,
		Network:     string(price.Network),
		PlanLabel:   price.PlanLabel,
		PhoneNumber: req.Phone,
		AmountMinor: price.Minor,
		Status:      order.StatusCreated,
		Origin:      req.Origin,
	}

	err = o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := o.orders.WithTx(tx)
		if err := orders.Create(ctx, ord); err != nil {
			return err
		}
		if err := o.ledger.WithTx(tx).Reserve(ctx, acct.ID, ord.AmountMinor); err != nil {
			return err
		}
		return orders.Transition(ctx, ord.Reference, order.StatusCreated, order.StatusReserved, nil)
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			metrics.PurchasesTotal.WithLabelValues("insufficient").Inc()
		}
		return nil, err
	}

	fields := logger.Fields{
		logger.ReferenceKey: ord.Reference,
		logger.AccountIDKey: acct.ID.String(),
		"network":           ord.Network,
		"plan":              ord.PlanLabel,
		"amount_minor":      ord.AmountMinor,
	}

	// From here on the funds are out of the spendable balance; finish the
	// order even when the caller goes away.
	settleCtx := context.WithoutCancel(ctx)

	if err := o.orders.Transition(settleCtx, ord.Reference, order.StatusReserved, order.StatusSubmitted, nil); err != nil {
		logger.Error("Failed to submit reserved order", logger.Merge(fields, logger.WithError(err)))
		if _, refundErr := o.Refund(settleCtx, ord, order.StatusReserved, "system error"); refundErr != nil {
			return nil, refundErr
		}
		return o.receipt(ord, order.StatusRefunded, "system error"), fmt.Errorf("%w: system error", ErrFulfillmentFailed)
	}

	deliverCtx, cancel := context.WithTimeout(ctx, o.timeout)
	result := o.gateway.Deliver(deliverCtx, provider.Request{
		Network:   price.Network,
		PlanID:    price.PlanID,
		Recipient: req.Phone,
	})
	cancel()

	if result.Outcome == provider.Delivered {
		return o.settleDelivered(settleCtx, ord, result.ProviderRef, req.Reference == "", req.Storefront, fields)
	}

	logger.Warn("Provider did not confirm delivery, refunding", logger.Merge(fields, logger.Fields{
		"outcome": string(result.Outcome),
		"reason":  result.Reason,
	}))
	if _, err := o.Refund(settleCtx, ord, order.StatusSubmitted, result.Reason); err != nil {
		return nil, err
	}
	return o.receipt(ord, order.StatusRefunded, result.Reason), fmt.Errorf("%w: %s", ErrFulfillmentFailed, result.Reason)
}

// settleDelivered swaps a system placeholder for the provider's reference.
// Caller-supplied references are kept so replays stay detectable.
func (o *Orchestrator) settleDelivered(ctx context.Context, ord *order.Order, providerRef string, placeholder bool, quote *shop.Quote, fields logger.Fields) (*Receipt, error) {
	finalRef := ord.Reference
	settle := func(changes map[string]interface{}) error {
		return o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := o.orders.WithTx(tx).Transition(ctx, ord.Reference, order.StatusSubmitted, order.StatusDelivered, changes); err != nil {
				return err
			}
			if quote != nil && quote.MarkupMinor > 0 {
				return o.ledger.WithTx(tx).CreditPayout(ctx, quote.OwnerID, quote.MarkupMinor)
			}
			return nil
		})
	}

	changes := map[string]interface{}{"provider_ref": providerRef}
	if providerRef != "" && placeholder {
		changes["reference"] = providerRef
	}
	err := settle(changes)
	if errors.Is(err, order.ErrDuplicateReference) {
		// provider reused an order number; keep our placeholder reference
		logger.Warn("Provider reference already recorded, keeping placeholder", logger.Merge(fields, logger.Fields{"provider_ref": providerRef}))
		err = settle(map[string]interface{}{"provider_ref": providerRef})
	} else if err == nil && providerRef != "" && placeholder {
		finalRef = providerRef
	}

	switch {
	case err == nil:
	case errors.Is(err, order.ErrInvalidTransition):
		logger.Error("CRITICAL: provider delivered an order that was already refunded", logger.Merge(fields, logger.Fields{"provider_ref": providerRef}))
	default:
		logger.Error("CRITICAL: provider delivered but order could not be settled", logger.Merge(fields, logger.WithError(err), logger.Fields{"provider_ref": providerRef}))
		return nil, err
	}

	if quote != nil && quote.MarkupMinor > 0 && err == nil {
		metrics.WalletCreditsTotal.WithLabelValues("commission").Inc()
	}
	metrics.PurchasesTotal.WithLabelValues("delivered").Inc()
	logger.Info("Bundle delivered", logger.Merge(fields, logger.Fields{"provider_ref": providerRef}))

	ord.Reference = finalRef
	return o.receipt(ord, order.StatusDelivered, ""), nil
}

// Refund moves an order from `from` to Refunded and credits back the exact
// reserved amount in one transaction. It reports false when another writer
// already finalized the order, in which case nothing is credited.
func (o *Orchestrator) Refund(ctx context.Context, ord *order.Order, from order.Status, reason string) (bool, error) {
	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := o.orders.WithTx(tx).Transition(ctx, ord.Reference, from, order.StatusRefunded, map[string]interface{}{"detail": reason}); err != nil {
			return err
		}
		return o.ledger.WithTx(tx).Credit(ctx, ord.AccountID, ord.AmountMinor)
	})

	fields := logger.Fields{
		logger.ReferenceKey: ord.Reference,
		logger.AccountIDKey: ord.AccountID.String(),
		"amount_minor":      ord.AmountMinor,
		"reason":            reason,
	}
	if errors.Is(err, order.ErrInvalidTransition) {
		logger.Info("Order already finalized, skipping refund", fields)
		return false, nil
	}
	if err != nil {
		logger.Error("CRITICAL: refund failed, order needs manual reconciliation", logger.Merge(fields, logger.WithError(err)))
		return false, err
	}

	metrics.PurchasesTotal.WithLabelValues("refunded").Inc()
	metrics.WalletCreditsTotal.WithLabelValues("refund").Inc()
	logger.Info("Order refunded", fields)
	return true, nil
}

func (o *Orchestrator) receipt(ord *order.Order, status order.Status, reason string) *Receipt {
	return &Receipt{
		Reference:   ord.Reference,
		Status:      status,
		Network:     ord.Network,
		Plan:        ord.PlanLabel,
		Phone:       ord.PhoneNumber,
		AmountMinor: ord.AmountMinor,
		Amount:      catalog.FromMinor(ord.AmountMinor).StringFixed(2),
		Refunded:    status == order.StatusRefunded,
		Reason:      reason,
	}
}
