package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smsflow/smsflow/internal/dispatch/repository"
)

type pgTxManager struct {
	pool *pgxpool.Pool
}

// NewPgTxManager wraps a pgx pool as a repository.TxManager.
func NewPgTxManager(pool *pgxpool.Pool) repository.TxManager {
	return &pgTxManager{pool: pool}
}

func (m *pgTxManager) WithinTx(ctx context.Context, fn func(q repository.Querier) error) error {
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
}
