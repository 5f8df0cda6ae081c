package ports

import "context"

// Tx is an opaque transaction handle owned by the persistence adapter
// (for the gorm adapter it is a *gorm.DB).
type Tx interface{}

// UnitOfWork runs fn inside one transaction: a nil return commits, an error rolls back.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in ctx for repositories to pick up.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the handle stored by WithTxContext, or nil.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
