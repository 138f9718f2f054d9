// Package catalog holds the static bundle price tables. A Catalog is loaded once
// at startup and is read-only afterwards, so lookups are pure functions of
// (pricing class, network, plan id).
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrPlanNotFound   = errors.New("plan not found")
	ErrUnknownNetwork = errors.New("unknown network")
)

//go:embed default_prices.json
var defaultPrices []byte

type PricingClass string

const (
	Retail    PricingClass = "retail"
	Wholesale PricingClass = "wholesale"
)

type Network string

const (
	MTN        Network = "MTN"
	AirtelTigo Network = "AirtelTigo"
	Telecel    Network = "Telecel"
)

var Networks = []Network{MTN, AirtelTigo, Telecel}

func ParseNetwork(s string) (Network, error) {
	for _, n := range Networks {
		if strings.EqualFold(strings.TrimSpace(s), string(n)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNetwork, s)
}

type Plan struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Price is a resolved plan price.
type Price struct {
	Network   Network
	PlanID    string
	PlanLabel string
	Amount    decimal.Decimal
	Minor     int64
}

type Catalog struct {
	tables map[PricingClass]map[Network][]Plan
}

// Load reads a catalog file, falling back to the built-in tables when path is empty.
func Load(path string) (*Catalog, error) {
	raw := defaultPrices
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read price catalog: %w", err)
		}
		raw = data
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	var doc map[PricingClass]map[string][]Plan
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse price catalog: %w", err)
	}

	c := &Catalog{tables: make(map[PricingClass]map[Network][]Plan)}
	for _, class := range []PricingClass{Retail, Wholesale} {
		table, ok := doc[class]
		if !ok {
			return nil, fmt.Errorf("price catalog: missing %s table", class)
		}
		c.tables[class] = make(map[Network][]Plan)
		for name, plans := range table {
			network, err := ParseNetwork(name)
			if err != nil {
				return nil, fmt.Errorf("price catalog: %w", err)
			}
			for i := range plans {
				plans[i].ID = NormalizePlanID(plans[i].ID)
				if !plans[i].Price.IsPositive() {
					return nil, fmt.Errorf("price catalog: %s %s %s has non-positive price", class, network, plans[i].ID)
				}
			}
			c.tables[class][network] = plans
		}
	}
	return c, nil
}

// PriceFor resolves the price of a plan in the table for class.
func (c *Catalog) PriceFor(class PricingClass, network Network, planID string) (Price, error) {
	planID = NormalizePlanID(planID)
	for _, p := range c.tables[class][network] {
		if p.ID == planID {
			return Price{
				Network:   network,
				PlanID:    p.ID,
				PlanLabel: p.Name,
				Amount:    p.Price,
				Minor:     ToMinor(p.Price),
			}, nil
		}
	}
	return Price{}, fmt.Errorf("%w: %s %s", ErrPlanNotFound, network, planID)
}

// Plans returns a copy of the table for class.
func (c *Catalog) Plans(class PricingClass) map[Network][]Plan {
	out := make(map[Network][]Plan, len(c.tables[class]))
	for network, plans := range c.tables[class] {
		cp := make([]Plan, len(plans))
		copy(cp, plans)
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].Price.LessThan(cp[j].Price) })
		out[network] = cp
	}
	return out
}

// NormalizePlanID upper-cases the id and treats a bare number as gigabytes ("5" -> "5GB").
func NormalizePlanID(planID string) string {
	id := strings.ToUpper(strings.TrimSpace(planID))
	if id != "" && strings.IndexFunc(id, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		return id + "GB"
	}
	return id
}

// Capacity is the numeric part of a plan id with the unit suffix removed.
func Capacity(planID string) string {
	id := NormalizePlanID(planID)
	end := strings.IndexFunc(id, func(r rune) bool { return !unicode.IsDigit(r) && r != '.' })
	if end == -1 {
		return id
	}
	return id[:end]
}

// PlanKey identifies a plan across networks, e.g. "MTN:5GB".
func PlanKey(network Network, planID string) string {
	return string(network) + ":" + NormalizePlanID(planID)
}

var hundred = decimal.NewFromInt(100)

func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
