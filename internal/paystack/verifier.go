package paystack

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/zjoart/go-databundle-store/internal/catalog"
)

type Outcome string

const (
	Confirmed    Outcome = "CONFIRMED"
	Rejected     Outcome = "REJECTED"
	GatewayError Outcome = "GATEWAY_ERROR"
)

// Rule checks a successful transaction's amount. It returns an empty string
// when the amount is acceptable, otherwise the rejection reason.
type Rule interface {
	Check(paidMinor int64) string
}

// ExactFee accepts a payment equal to CreditMinor grossed up by FeeRate,
// within Tolerance major units.
type ExactFee struct {
	CreditMinor int64
	FeeRate     decimal.Decimal
	Tolerance   decimal.Decimal
}

func (r ExactFee) Expected() decimal.Decimal {
	return catalog.FromMinor(r.CreditMinor).Mul(decimal.NewFromInt(1).Add(r.FeeRate))
}

func (r ExactFee) Check(paidMinor int64) string {
	expected := r.Expected()
	paid := catalog.FromMinor(paidMinor)
	if paid.Sub(expected).Abs().LessThan(r.Tolerance) {
		return ""
	}
	return fmt.Sprintf("Amount mismatch. Expected %s, paid %s", expected.StringFixed(2), paid.StringFixed(2))
}

// MinimumThreshold accepts any payment of at least MinMinor.
type MinimumThreshold struct {
	MinMinor int64
}

func (r MinimumThreshold) Check(paidMinor int64) string {
	if paidMinor >= r.MinMinor {
		return ""
	}
	return fmt.Sprintf("Insufficient payment. Required %s, paid %s",
		catalog.FromMinor(r.MinMinor).StringFixed(2), catalog.FromMinor(paidMinor).StringFixed(2))
}

type Verification struct {
	Outcome     Outcome
	Transaction *Transaction
	Reason      string
	Err         error
}

type lookuper interface {
	Lookup(ctx context.Context, reference string) (*Transaction, error)
}

type Verifier struct {
	gateway lookuper
}

func NewVerifier(gateway lookuper) *Verifier {
	return &Verifier{gateway: gateway}
}

// Verify confirms that reference names a successful payment that satisfies rule.
// A reference never confirms more than once; callers enforce that through the
// order ledger's unique reference.
func (v *Verifier) Verify(ctx context.Context, reference string, rule Rule) Verification {
	tx, err := v.gateway.Lookup(ctx, reference)
	if err != nil {
		return Verification{Outcome: GatewayError, Reason: "Payment verification failed", Err: err}
	}
	if !tx.Succeeded() {
		return Verification{Outcome: Rejected, Transaction: tx, Reason: "Payment not successful"}
	}
	if reason := rule.Check(tx.AmountMinor); reason != "" {
		return Verification{Outcome: Rejected, Transaction: tx, Reason: reason}
	}
	return Verification{Outcome: Confirmed, Transaction: tx}
}
