// Package schema owns the list of persisted models and their migration.
package schema

import (
	"fmt"

	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/internal/shop"
	"github.com/zjoart/go-databundle-store/internal/withdrawal"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"gorm.io/gorm"
)

func Models() []interface{} {
	return []interface{}{
		&account.Account{},
		&order.Order{},
		&shop.Shop{},
		&withdrawal.Withdrawal{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("Database migrated", logger.Fields{"models": len(Models())})
	return nil
}
