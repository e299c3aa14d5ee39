package database

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// Conn returns the transaction bound to ctx, or db scoped to ctx when there is none.
// Repositories call it for every statement so they join the caller's transaction.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

// Transaction runs fn inside a transaction. A nested call becomes a savepoint
// of the enclosing transaction. Returning an error rolls back.
func Transaction(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) error {
	return Conn(ctx, db).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}
