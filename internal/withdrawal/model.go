package withdrawal

import (
	"time"

	"github.com/google/uuid"
	"github.com/zjoart/go-databundle-store/internal/order"
	"gorm.io/gorm"
)

type Method string

const (
	MethodBank        Method = "bank"
	MethodMobileMoney Method = "momo"
)

// Withdrawal is a payout request. Its status uses the order statuses
// Requested, Paid and Rejected, mirrored on the matching Withdrawal order.
type Withdrawal struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Reference     string       `gorm:"uniqueIndex;not null" json:"reference"`
	AccountID     uuid.UUID    `gorm:"type:uuid;not null;index" json:"account_id"`
	AmountMinor   int64        `gorm:"not null;check:chk_withdrawals_amount,amount_minor > 0" json:"amount_minor"`
	Status        order.Status `gorm:"type:varchar(16);not null;index" json:"status"`
	Method        Method       `gorm:"type:varchar(8);not null" json:"method"`
	Provider      string       `json:"provider"`
	AccountName   string       `gorm:"not null" json:"account_name"`
	AccountNumber string       `gorm:"not null" json:"account_number"`
	Note          string       `json:"note,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (w *Withdrawal) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
