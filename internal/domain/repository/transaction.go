package repository

import "context"

// TransactionManager runs fn inside a database transaction carried by ctx.
// Calling it with a ctx that already holds a transaction opens a savepoint.
type TransactionManager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
