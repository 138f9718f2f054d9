package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"gorm.io/gorm"
)

type Kind string

const (
	KindPurchase        Kind = "PURCHASE"
	KindWalletTopUp     Kind = "WALLET_TOPUP"
	KindAgentUpgradeFee Kind = "AGENT_UPGRADE_FEE"
	KindWithdrawal      Kind = "WITHDRAWAL"
)

type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusReserved  Status = "RESERVED"
	StatusSubmitted Status = "SUBMITTED"
	StatusDelivered Status = "DELIVERED"
	StatusRefunded  Status = "REFUNDED"
	// StatusCompleted is the terminal state of top-ups and upgrade fees.
	StatusCompleted Status = "COMPLETED"
	StatusRequested Status = "REQUESTED"
	StatusPaid      Status = "PAID"
	StatusRejected  Status = "REJECTED"
)

type Origin string

const (
	OriginWebWallet      Origin = "web-wallet"
	OriginExternalAPI    Origin = "external-api"
	OriginGatewayWebhook Origin = "gateway-webhook"
	OriginPayout         Origin = "payout"
	OriginStorefront     Origin = "storefront"
)

var transitions = map[Status][]Status{
	StatusCreated:   {StatusReserved},
	StatusReserved:  {StatusSubmitted, StatusRefunded},
	StatusSubmitted: {StatusDelivered, StatusRefunded},
	StatusRequested: {StatusPaid, StatusRejected},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

type Order struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Reference   string    `gorm:"uniqueIndex;not null" json:"reference"`
	AccountID   uuid.UUID `gorm:"type:uuid;not null;index:idx_orders_account_created,priority:1" json:"account_id"`
	Kind        Kind      `gorm:"type:varchar(32);not null" json:"kind"`
	Network     string    `json:"network,omitempty"`
	PlanLabel   string    `json:"plan_label,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	AmountMinor int64     `gorm:"not null" json:"amount_minor"`
	Status      Status    `gorm:"type:varchar(16);not null;index" json:"status"`
	Origin      Origin    `gorm:"type:varchar(32);not null" json:"origin"`
	ProviderRef *string   `json:"provider_ref,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `gorm:"index:idx_orders_account_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Amount is the wallet-affecting amount in major units.
func (o Order) Amount() decimal.Decimal {
	return catalog.FromMinor(o.AmountMinor)
}
