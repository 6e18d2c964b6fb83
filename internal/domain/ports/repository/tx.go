package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager executes a function inside a database transaction,
// passing the tx handle through `qx`. Repositories accept a nil qx for the
// non-transactional path; the concrete type is infra-defined (pgx.Tx for
// Postgres). Keep this interface small and stable.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
