package admin

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/pkg/logger"
)

var profitMargin = decimal.NewFromFloat(0.15)

type Metrics struct {
	RevenueMinor    int64 `json:"revenue_minor"`
	NetProfitMinor  int64 `json:"net_profit_minor"`
	TotalOrders     int64 `json:"total_orders"`
	DeliveredOrders int64 `json:"delivered_orders"`
	RefundedOrders  int64 `json:"refunded_orders"`
	TotalAccounts   int64 `json:"total_accounts"`
}

type Service struct {
	orders   order.Repository
	accounts account.Repository
}

func NewService(orders order.Repository, accounts account.Repository) *Service {
	return &Service{orders: orders, accounts: accounts}
}

// Metrics counts revenue from delivered purchases only.
func (s *Service) Metrics(ctx context.Context) (Metrics, error) {
	var m Metrics
	var err error

	delivered := order.Filter{Kind: order.KindPurchase, Status: order.StatusDelivered}
	if m.RevenueMinor, err = s.orders.SumAmount(ctx, delivered); err != nil {
		return m, fmt.Errorf("sum revenue: %w", err)
	}
	if m.DeliveredOrders, err = s.orders.Count(ctx, delivered); err != nil {
		return m, fmt.Errorf("count delivered: %w", err)
	}
	if m.RefundedOrders, err = s.orders.Count(ctx, order.Filter{Kind: order.KindPurchase, Status: order.StatusRefunded}); err != nil {
		return m, fmt.Errorf("count refunded: %w", err)
	}
	if m.TotalOrders, err = s.orders.Count(ctx, order.Filter{Kind: order.KindPurchase}); err != nil {
		return m, fmt.Errorf("count orders: %w", err)
	}
	if m.TotalAccounts, err = s.accounts.Count(ctx); err != nil {
		return m, fmt.Errorf("count accounts: %w", err)
	}

	m.NetProfitMinor = decimal.NewFromInt(m.RevenueMinor).Mul(profitMargin).Round(0).IntPart()
	return m, nil
}

// Promote sets an account's tier out-of-band, used by the operator CLI.
func (s *Service) Promote(ctx context.Context, handle string, tier account.Tier) (*account.Account, error) {
	acct, err := s.accounts.FindByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.SetTier(ctx, acct.ID, tier); err != nil {
		return nil, err
	}
	logger.Info("account tier changed", logger.Fields{
		logger.AccountIDKey: acct.ID.String(),
		"from":              acct.Tier,
		"to":                tier,
	})
	acct.Tier = tier
	return acct, nil
}
