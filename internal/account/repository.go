package account

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/zjoart/go-databundle-store/pkg/database"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("account not found")
	ErrDuplicate = errors.New("account already exists")
)

type Repository interface {
	Create(ctx context.Context, acct *Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByHandle(ctx context.Context, handle string) (*Account, error)
	FindByGoogleID(ctx context.Context, googleID string) (*Account, error)
	FindByAPITokenHash(ctx context.Context, hash string) (*Account, error)
	SetTier(ctx context.Context, id uuid.UUID, tier Tier) error
	SetShopHandle(ctx context.Context, id uuid.UUID, handle string) error
	SetAPIToken(ctx context.Context, id uuid.UUID, hash, masked string, scopes []string) error
	ClearAPIToken(ctx context.Context, id uuid.UUID) error
	SetCustomPrices(ctx context.Context, id uuid.UUID, prices map[string]int64) error
	Count(ctx context.Context) (int64, error)
	WithTx(tx *gorm.DB) Repository
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, acct *Account) error {
	acct.Email = strings.ToLower(strings.TrimSpace(acct.Email))
	if err := r.db.WithContext(ctx).Create(acct).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *repository) FindByHandle(ctx context.Context, handle string) (*Account, error) {
	return r.first(ctx, "handle = ?", handle)
}

func (r *repository) FindByGoogleID(ctx context.Context, googleID string) (*Account, error) {
	return r.first(ctx, "google_id = ?", googleID)
}

func (r *repository) FindByAPITokenHash(ctx context.Context, hash string) (*Account, error) {
	return r.first(ctx, "api_token_hash = ?", hash)
}

func (r *repository) first(ctx context.Context, query string, args ...interface{}) (*Account, error) {
	var acct Account
	if err := r.db.WithContext(ctx).Where(query, args...).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &acct, nil
}

func (r *repository) SetTier(ctx context.Context, id uuid.UUID, tier Tier) error {
	return r.update(ctx, id, map[string]interface{}{"tier": tier})
}

func (r *repository) SetShopHandle(ctx context.Context, id uuid.UUID, handle string) error {
	err := r.update(ctx, id, map[string]interface{}{"shop_handle": handle})
	if database.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *repository) SetAPIToken(ctx context.Context, id uuid.UUID, hash, masked string, scopes []string) error {
	return r.update(ctx, id, map[string]interface{}{
		"api_token_hash":   hash,
		"api_token_masked": masked,
		"api_token_scopes": Scopes(scopes),
	})
}

func (r *repository) ClearAPIToken(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id, map[string]interface{}{
		"api_token_hash":   nil,
		"api_token_masked": "",
		"api_token_scopes": nil,
	})
}

func (r *repository) SetCustomPrices(ctx context.Context, id uuid.UUID, prices map[string]int64) error {
	raw, err := json.Marshal(prices)
	if err != nil {
		return err
	}
	return r.update(ctx, id, map[string]interface{}{"custom_prices": datatypes.JSON(raw)})
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Account{}).Count(&count).Error
	return count, err
}

func (r *repository) update(ctx context.Context, id uuid.UUID, columns map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
