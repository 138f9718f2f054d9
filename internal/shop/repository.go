package shop

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/zjoart/go-databundle-store/pkg/database"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("shop not found")
	ErrHandleTaken = errors.New("shop handle already taken")
)

type Repository interface {
	Create(ctx context.Context, s *Shop) error
	FindByHandle(ctx context.Context, handle string) (*Shop, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*Shop, error)
	SetMarkups(ctx context.Context, shopID uuid.UUID, markups map[string]int64) error
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

func (r *repository) Create(ctx context.Context, s *Shop) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrHandleTaken
		}
		return err
	}
	return nil
}

func (r *repository) FindByHandle(ctx context.Context, handle string) (*Shop, error) {
	return r.first(ctx, "handle = ?", handle)
}

func (r *repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*Shop, error) {
	return r.first(ctx, "owner_id = ?", ownerID)
}

func (r *repository) first(ctx context.Context, query string, args ...interface{}) (*Shop, error) {
	var s Shop
	if err := r.db.WithContext(ctx).Where(query, args...).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *repository) SetMarkups(ctx context.Context, shopID uuid.UUID, markups map[string]int64) error {
	raw, err := json.Marshal(markups)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&Shop{}).Where("id = ?", shopID).Update("markups", datatypes.JSON(raw))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
