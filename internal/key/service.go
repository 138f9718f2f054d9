package key

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/catalog"
)

var (
	ErrNotAllowed   = errors.New("account tier cannot use the API")
	ErrTokenExists  = errors.New("an API key already exists, roll it over instead")
	ErrNoToken      = errors.New("no API key issued")
	ErrInvalidToken = errors.New("invalid API key")

	ErrInvalidPermission = errors.New("invalid permission")
	ErrInvalidPrices     = errors.New("invalid custom prices")
)

// Service manages the single external API token an account may hold.
type Service struct {
	accounts account.Repository
	catalog  *catalog.Catalog
}

func NewService(accounts account.Repository, cat *catalog.Catalog) *Service {
	return &Service{accounts: accounts, catalog: cat}
}

func (s *Service) Issue(ctx context.Context, acct account.Account, permissions []string) (*Token, error) {
	if !acct.Tier.Can(account.CapAPIToken) {
		return nil, ErrNotAllowed
	}
	if acct.APITokenHash != nil {
		return nil, ErrTokenExists
	}
	scopes, err := validatePermissions(permissions)
	if err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		scopes = []string{string(PermissionRead), string(PermissionPurchase)}
	}
	return s.store(ctx, acct.ID, scopes)
}

// Rollover replaces the current token, keeping its scopes. The old token
// stops working immediately.
func (s *Service) Rollover(ctx context.Context, acct account.Account) (*Token, error) {
	if !acct.Tier.Can(account.CapAPIToken) {
		return nil, ErrNotAllowed
	}
	if acct.APITokenHash == nil {
		return nil, ErrNoToken
	}
	return s.store(ctx, acct.ID, []string(acct.APITokenScopes))
}

func (s *Service) Revoke(ctx context.Context, acct account.Account) error {
	if acct.APITokenHash == nil {
		return ErrNoToken
	}
	return s.accounts.ClearAPIToken(ctx, acct.ID)
}

// Resolve finds the account owning a plain token.
func (s *Service) Resolve(ctx context.Context, plain string) (*account.Account, error) {
	if !strings.HasPrefix(plain, tokenPrefix) {
		return nil, ErrInvalidToken
	}
	acct, err := s.accounts.FindByAPITokenHash(ctx, hashKey(plain))
	if errors.Is(err, account.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !acct.Tier.Can(account.CapAPIToken) {
		return nil, ErrNotAllowed
	}
	return acct, nil
}

// SetCustomPrices replaces an account's API price overrides, keyed "NETWORK:PLAN".
func (s *Service) SetCustomPrices(ctx context.Context, accountID uuid.UUID, prices map[string]int64) error {
	clean := make(map[string]int64, len(prices))
	for k, minor := range prices {
		parts := strings.SplitN(k, ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			return fmt.Errorf("%w: key %q is not NETWORK:PLAN", ErrInvalidPrices, k)
		}
		network, err := catalog.ParseNetwork(parts[0])
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidPrices, err)
		}
		planID := catalog.NormalizePlanID(parts[1])
		if _, err := s.catalog.PriceFor(catalog.Wholesale, network, planID); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidPrices, err)
		}
		if minor <= 0 {
			return fmt.Errorf("%w: price for %s must be positive", ErrInvalidPrices, k)
		}
		clean[catalog.PlanKey(network, planID)] = minor
	}
	return s.accounts.SetCustomPrices(ctx, accountID, clean)
}

func (s *Service) store(ctx context.Context, accountID uuid.UUID, scopes []string) (*Token, error) {
	plain, err := generateSecureKey()
	if err != nil {
		return nil, err
	}
	masked := maskKey(plain)
	if err := s.accounts.SetAPIToken(ctx, accountID, hashKey(plain), masked, scopes); err != nil {
		return nil, err
	}
	return &Token{Plain: plain, Masked: masked, Scopes: scopes}, nil
}

const tokenPrefix = "sk_live_"

func generateSecureKey() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return tokenPrefix + hex.EncodeToString(bytes), nil
}

func hashKey(key string) string {
	h := sha256.New()
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

func maskKey(key string) string {
	if len(key) <= 12 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}

func validatePermissions(requested []string) ([]string, error) {
	var normalized []string
	for _, p := range requested {
		upperP := strings.ToUpper(strings.TrimSpace(p))
		isValid := false
		for _, allowed := range AllowedPermissions {
			if Permission(upperP) == allowed {
				isValid = true
				break
			}
		}
		if !isValid {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPermission, p)
		}
		normalized = append(normalized, upperP)
	}
	return normalized, nil
}
