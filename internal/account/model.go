package account

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type Account struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Handle         string         `gorm:"uniqueIndex;not null" json:"handle"`
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash   string         `json:"-"`
	GoogleID       *string        `gorm:"uniqueIndex" json:"-"`
	WalletBalance  int64          `gorm:"not null;default:0;check:chk_accounts_wallet_balance,wallet_balance >= 0" json:"wallet_balance"`
	PayoutBalance  int64          `gorm:"not null;default:0;check:chk_accounts_payout_balance,payout_balance >= 0" json:"payout_balance"`
	Tier           Tier           `gorm:"type:varchar(16);not null;default:STANDARD" json:"tier"`
	ShopHandle     *string        `gorm:"uniqueIndex" json:"shop_handle,omitempty"`
	APITokenHash   *string        `gorm:"uniqueIndex" json:"-"`
	APITokenMasked string         `json:"api_token_masked,omitempty"`
	APITokenScopes Scopes         `json:"api_token_scopes,omitempty"`
	CustomPrices   datatypes.JSON `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Tier == "" {
		a.Tier = TierStandard
	}
	return nil
}

// PriceOverrides decodes the per-plan overrides, keyed by catalog.PlanKey, in minor units.
func (a Account) PriceOverrides() (map[string]int64, error) {
	overrides := map[string]int64{}
	if len(a.CustomPrices) == 0 {
		return overrides, nil
	}
	if err := json.Unmarshal(a.CustomPrices, &overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}

// Scopes is stored as text[] on postgres and as its text form elsewhere.
type Scopes pq.StringArray

// GormDataType lets schema parsing accept the field; the column type itself
// comes from GormDBDataType.
func (Scopes) GormDataType() string {
	return "text"
}

func (Scopes) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (s Scopes) Value() (driver.Value, error) {
	return pq.StringArray(s).Value()
}

func (s *Scopes) Scan(src interface{}) error {
	return (*pq.StringArray)(s).Scan(src)
}

func (s Scopes) Has(scope string) bool {
	for _, v := range s {
		if v == scope {
			return true
		}
	}
	return false
}
