package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smsflow/smsflow/internal/dispatch/domain"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so repository
// methods run unchanged inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager runs a function inside one database transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(q Querier) error) error
}

// MessageRepository persists parent Message records.
type MessageRepository interface {
	Create(ctx context.Context, q Querier, userID int64, body string, totalRecipients int) (int64, error)
	// UpdateCounters writes the aggregate outcome of a dispatch: the
	// success/failure counts plus the delivery rate derived from them.
	UpdateCounters(ctx context.Context, q Querier, messageID int64, successful, failed int) error
	GetByIDForUser(ctx context.Context, q Querier, messageID, userID int64) (*domain.Message, error)
}

// RecipientRepository persists per-destination status rows.
type RecipientRepository interface {
	Insert(ctx context.Context, q Querier, rec *domain.Recipient) (int64, error)
	// FailedDestinations returns the distinct destinations of a message's
	// failed recipients, scoped to the owning user.
	FailedDestinations(ctx context.Context, q Querier, messageID, userID int64) ([]string, error)
}
