package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zjoart/go-databundle-store/pkg/database"
	"gorm.io/gorm"
)

var (
	ErrDuplicateReference = errors.New("duplicate reference")
	ErrNotFound           = errors.New("order not found")
	ErrInvalidTransition  = errors.New("invalid order status transition")
)

// Filter narrows order listings; zero values match everything.
type Filter struct {
	AccountID uuid.UUID
	Kind      Kind
	Status    Status
}

type Repository interface {
	Create(ctx context.Context, o *Order) error
	Exists(ctx context.Context, reference string) (bool, error)
	FindByReference(ctx context.Context, reference string) (*Order, error)
	// Transition moves an order from one status to another, applying extra column changes.
	// It fails with ErrInvalidTransition when the order is no longer in the from status.
	Transition(ctx context.Context, reference string, from, to Status, changes map[string]interface{}) error
	List(ctx context.Context, f Filter, limit, offset int) ([]Order, error)
	Count(ctx context.Context, f Filter) (int64, error)
	SumAmount(ctx context.Context, f Filter) (int64, error)
	FindStale(ctx context.Context, kind Kind, statuses []Status, before time.Time, limit int) ([]Order, error)
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

func (r *repository) Create(ctx context.Context, o *Order) error {
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, o.Reference)
		}
		return err
	}
	return nil
}

func (r *repository) Exists(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Order{}).Where("reference = ?", reference).Count(&count).Error
	return count > 0, err
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*Order, error) {
	var o Order
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *repository) Transition(ctx context.Context, reference string, from, to Status, changes map[string]interface{}) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	columns := map[string]interface{}{"status": to}
	for k, v := range changes {
		columns[k] = v
	}

	res := r.db.WithContext(ctx).Model(&Order{}).
		Where("reference = ? AND status = ?", reference, from).
		Updates(columns)
	if res.Error != nil {
		if database.IsUniqueViolation(res.Error) {
			return fmt.Errorf("%w: %v", ErrDuplicateReference, columns["reference"])
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s is not %s", ErrInvalidTransition, reference, from)
	}
	return nil
}

func (r *repository) scoped(ctx context.Context, f Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&Order{})
	if f.AccountID != uuid.Nil {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

func (r *repository) List(ctx context.Context, f Filter, limit, offset int) ([]Order, error) {
	var orders []Order
	err := r.scoped(ctx, f).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	return orders, err
}

func (r *repository) Count(ctx context.Context, f Filter) (int64, error) {
	var count int64
	err := r.scoped(ctx, f).Count(&count).Error
	return count, err
}

func (r *repository) SumAmount(ctx context.Context, f Filter) (int64, error) {
	var total struct{ Total int64 }
	err := r.scoped(ctx, f).Select("coalesce(sum(amount_minor),0) AS total").Scan(&total).Error
	return total.Total, err
}

func (r *repository) FindStale(ctx context.Context, kind Kind, statuses []Status, before time.Time, limit int) ([]Order, error) {
	var orders []Order
	err := r.db.WithContext(ctx).
		Where("kind = ? AND status IN ? AND updated_at < ?", kind, statuses, before).
		Order("updated_at asc").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
