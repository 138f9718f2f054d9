package withdrawal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zjoart/go-databundle-store/internal/order"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("withdrawal not found")

type Repository interface {
	Create(ctx context.Context, w *Withdrawal) error
	FindByID(ctx context.Context, id uuid.UUID) (*Withdrawal, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Withdrawal, error)
	ListByStatus(ctx context.Context, status order.Status, limit, offset int) ([]Withdrawal, error)
	Transition(ctx context.Context, id uuid.UUID, from, to order.Status, note string) error
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

func (r *repository) Create(ctx context.Context, w *Withdrawal) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*Withdrawal, error) {
	var w Withdrawal
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Withdrawal, error) {
	var out []Withdrawal
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).
		Order("created_at desc").Limit(limit).Offset(offset).Find(&out).Error
	return out, err
}

func (r *repository) ListByStatus(ctx context.Context, status order.Status, limit, offset int) ([]Withdrawal, error) {
	var out []Withdrawal
	err := r.db.WithContext(ctx).Where("status = ?", status).
		Order("created_at asc").Limit(limit).Offset(offset).Find(&out).Error
	return out, err
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to order.Status, note string) error {
	if !order.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", order.ErrInvalidTransition, from, to)
	}
	res := r.db.WithContext(ctx).Model(&Withdrawal{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "note": note})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: withdrawal is not %s", order.ErrInvalidTransition, from)
	}
	return nil
}
