package routes

import (
	"fmt"

	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/admin"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/internal/key"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/internal/paystack"
	"github.com/zjoart/go-databundle-store/internal/provider"
	"github.com/zjoart/go-databundle-store/internal/purchase"
	"github.com/zjoart/go-databundle-store/internal/reconcile"
	"github.com/zjoart/go-databundle-store/internal/shop"
	"github.com/zjoart/go-databundle-store/internal/wallet"
	"github.com/zjoart/go-databundle-store/internal/withdrawal"
	"github.com/zjoart/go-databundle-store/pkg/config"
	"github.com/zjoart/go-databundle-store/pkg/events"
	"gorm.io/gorm"
)

// Services holds every wired domain component the router and background jobs share.
type Services struct {
	Accounts     account.Repository
	Ledger       wallet.Ledger
	Orders       order.Repository
	Catalog      *catalog.Catalog
	Orchestrator *purchase.Orchestrator
	Sweeper      *purchase.Sweeper
	Reconciler   *reconcile.Service
	Shops        *shop.Service
	Withdrawals  *withdrawal.Service
	Keys         *key.Service
	Admin        *admin.Service
	Queue        events.Queue
}

func NewServices(db *gorm.DB, cfg config.Config, queue events.Queue) (*Services, error) {
	cat, err := catalog.Load(cfg.PriceCatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load price catalog: %w", err)
	}

	accounts := account.NewRepository(db)
	ledger := wallet.NewLedger(db)
	orders := order.NewRepository(db)

	gateway := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderTimeout)
	orch := purchase.NewOrchestrator(db, accounts, ledger, orders, cat, gateway, cfg.ProviderTimeout)

	verifier := paystack.NewVerifier(paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecret))
	reconciler := reconcile.NewService(db, accounts, ledger, orders, verifier, reconcile.Config{
		FeeRate:    cfg.TopUpFeeRate,
		Tolerance:  cfg.TopUpTolerance,
		MinTopUp:   cfg.MinTopUpAmount,
		UpgradeFee: cfg.AgentUpgradeFee,
	})

	return &Services{
		Accounts:     accounts,
		Ledger:       ledger,
		Orders:       orders,
		Catalog:      cat,
		Orchestrator: orch,
		Sweeper:      purchase.NewSweeper(orch, orders, cfg.SweepStaleAfter),
		Reconciler:   reconciler,
		Shops:        shop.NewService(db, shop.NewRepository(db), accounts, cat, cfg.MaxMarkup),
		Withdrawals:  withdrawal.NewService(db, withdrawal.NewRepository(db), orders, ledger),
		Keys:         key.NewService(accounts, cat),
		Admin:        admin.NewService(orders, accounts),
		Queue:        queue,
	}, nil
}
