// Package gormpersistence implements the repository ports on GORM
// (MySQL). The transactional handle travels in the context so that
// repository calls made inside TxManager.RunInTx join the transaction.
package gormpersistence

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// txFrom extracts the transactional handle from ctx, if any.
func txFrom(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}

// GormTxManager implements repository.TxManager on a GORM connection.
type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) *GormTxManager {
	if db == nil {
		panic("database connection cannot be nil for GormTxManager")
	}
	return &GormTxManager{db: db}
}

// RunInTx executes fn inside a database transaction. If ctx already
// carries a transaction the enclosing one is reused, so nested service
// calls share a single unit of work.
func (m *GormTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transactional handle from ctx when present, else
// the base connection bound to ctx.
func conn(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return base.WithContext(ctx)
}
