package shop

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"gorm.io/gorm"
)

var (
	ErrNotAllowed    = errors.New("account tier cannot run a storefront")
	ErrInvalidHandle = errors.New("shop handle must be 3-32 lowercase letters, digits or hyphens")
	ErrInvalidMarkup = errors.New("invalid markup")
	ErrAlreadyOwned  = errors.New("account already has a shop")
)

var handlePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{2,31}$`)

// Quote is a storefront price: wholesale base plus the owner's markup.
type Quote struct {
	ShopID      uuid.UUID
	OwnerID     uuid.UUID
	Handle      string
	Price       catalog.Price
	MarkupMinor int64
}

type ListedPlan struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Listing struct {
	Handle string                           `json:"handle"`
	Name   string                           `json:"name"`
	Plans  map[catalog.Network][]ListedPlan `json:"plans"`
}

type Service struct {
	db        *gorm.DB
	shops     Repository
	accounts  account.Repository
	catalog   *catalog.Catalog
	maxMarkup int64
}

func NewService(db *gorm.DB, shops Repository, accounts account.Repository, cat *catalog.Catalog, maxMarkup int64) *Service {
	return &Service{db: db, shops: shops, accounts: accounts, catalog: cat, maxMarkup: maxMarkup}
}

func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// Create opens a storefront for owner and records the handle on the account.
func (s *Service) Create(ctx context.Context, owner *account.Account, handle, name string) (*Shop, error) {
	if !owner.Tier.Can(account.CapStorefront) {
		return nil, ErrNotAllowed
	}
	handle = NormalizeHandle(handle)
	if !handlePattern.MatchString(handle) {
		return nil, ErrInvalidHandle
	}
	if owner.ShopHandle != nil {
		return nil, ErrAlreadyOwned
	}
	if strings.TrimSpace(name) == "" {
		name = handle
	}

	shop := &Shop{OwnerID: owner.ID, Handle: handle, Name: strings.TrimSpace(name)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.shops.WithTx(tx).Create(ctx, shop); err != nil {
			return err
		}
		if err := s.accounts.WithTx(tx).SetShopHandle(ctx, owner.ID, handle); err != nil {
			if errors.Is(err, account.ErrDuplicate) {
				return ErrHandleTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shop, nil
}

// SetMarkups replaces the owner's markup table. Every key must name a
// wholesale plan and every value must lie in [0, maxMarkup].
func (s *Service) SetMarkups(ctx context.Context, ownerID uuid.UUID, markups map[string]int64) error {
	shop, err := s.shops.FindByOwner(ctx, ownerID)
	if err != nil {
		return err
	}

	clean := make(map[string]int64, len(markups))
	for key, minor := range markups {
		network, planID, err := SplitPlanKey(key)
		if err != nil {
			return err
		}
		if _, err := s.catalog.PriceFor(catalog.Wholesale, network, planID); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidMarkup, err)
		}
		if minor < 0 || minor > s.maxMarkup {
			return fmt.Errorf("%w: %s must be between 0 and %s", ErrInvalidMarkup, key, catalog.FromMinor(s.maxMarkup).StringFixed(2))
		}
		clean[catalog.PlanKey(network, planID)] = minor
	}
	return s.shops.SetMarkups(ctx, shop.ID, clean)
}

// SplitPlanKey parses "NETWORK:PLAN".
func SplitPlanKey(key string) (catalog.Network, string, error) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("%w: key %q is not NETWORK:PLAN", ErrInvalidMarkup, key)
	}
	network, err := catalog.ParseNetwork(parts[0])
	if err != nil {
		return "", "", err
	}
	return network, catalog.NormalizePlanID(parts[1]), nil
}

func (s *Service) Storefront(ctx context.Context, handle string) (*Listing, error) {
	shop, err := s.shops.FindByHandle(ctx, NormalizeHandle(handle))
	if err != nil {
		return nil, err
	}
	markups, err := shop.MarkupTable()
	if err != nil {
		return nil, err
	}

	listing := &Listing{Handle: shop.Handle, Name: shop.Name, Plans: map[catalog.Network][]ListedPlan{}}
	for network, plans := range s.catalog.Plans(catalog.Wholesale) {
		for _, p := range plans {
			markup := catalog.FromMinor(markups[catalog.PlanKey(network, p.ID)])
			listing.Plans[network] = append(listing.Plans[network], ListedPlan{
				ID:    p.ID,
				Name:  p.Name,
				Price: p.Price.Add(markup),
			})
		}
	}
	return listing, nil
}

// Quote resolves the storefront price a buyer pays for a plan.
func (s *Service) Quote(ctx context.Context, handle string, network catalog.Network, planID string) (*Quote, error) {
	shop, err := s.shops.FindByHandle(ctx, NormalizeHandle(handle))
	if err != nil {
		return nil, err
	}
	base, err := s.catalog.PriceFor(catalog.Wholesale, network, planID)
	if err != nil {
		return nil, err
	}
	markups, err := shop.MarkupTable()
	if err != nil {
		return nil, err
	}

	markup := markups[catalog.PlanKey(network, base.PlanID)]
	price := base
	price.Minor = base.Minor + markup
	price.Amount = catalog.FromMinor(price.Minor)

	return &Quote{
		ShopID:      shop.ID,
		OwnerID:     shop.OwnerID,
		Handle:      shop.Handle,
		Price:       price,
		MarkupMinor: markup,
	}, nil
}
