package account

import (
	"fmt"
	"strings"

	"github.com/zjoart/go-databundle-store/internal/catalog"
)

// Tier is the closed set of account classes.
type Tier string

const (
	TierStandard Tier = "STANDARD"
	TierReseller Tier = "RESELLER"
	TierOperator Tier = "OPERATOR"
)

func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToUpper(strings.TrimSpace(s))) {
	case TierStandard:
		return TierStandard, nil
	case TierReseller, "AGENT":
		return TierReseller, nil
	case TierOperator, "ADMIN":
		return TierOperator, nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

// PricingClass selects the price table that applies to the tier.
func (t Tier) PricingClass() catalog.PricingClass {
	switch t {
	case TierStandard:
		return catalog.Retail
	case TierReseller, TierOperator:
		return catalog.Wholesale
	default:
		panic(fmt.Sprintf("account: unhandled tier %q", string(t)))
	}
}

// Capability is something an account may be allowed to do beyond buying bundles.
type Capability string

const (
	CapStorefront Capability = "storefront"
	CapAPIToken   Capability = "api_token"
	CapWithdraw   Capability = "withdraw"
	CapOperate    Capability = "operate"
)

func (t Tier) Can(c Capability) bool {
	switch t {
	case TierStandard:
		return false
	case TierReseller:
		return c == CapStorefront || c == CapAPIToken || c == CapWithdraw
	case TierOperator:
		return true
	default:
		panic(fmt.Sprintf("account: unhandled tier %q", string(t)))
	}
}
