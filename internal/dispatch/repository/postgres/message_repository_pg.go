package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/smsflow/smsflow/internal/dispatch/domain"
	"github.com/smsflow/smsflow/internal/dispatch/repository"
)

type pgMessageRepository struct{}

// NewPgMessageRepository creates the PostgreSQL message repository.
func NewPgMessageRepository() repository.MessageRepository {
	return &pgMessageRepository{}
}

func (r *pgMessageRepository) Create(ctx context.Context, q repository.Querier, userID int64, body string, totalRecipients int) (int64, error) {
	query := `
		INSERT INTO messages (user_id, body, total_recipients, successful_sends, failed_sends, delivery_rate)
		VALUES ($1, $2, $3, 0, 0, 0)
		RETURNING id
	`
	var id int64
	if err := q.QueryRow(ctx, query, userID, body, totalRecipients).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *pgMessageRepository) UpdateCounters(ctx context.Context, q repository.Querier, messageID int64, successful, failed int) error {
	// delivery_rate is derived from the counters in the same statement so
	// the row can never hold a rate that disagrees with them.
	query := `
		UPDATE messages
		SET successful_sends = $2, failed_sends = $3,
		    delivery_rate = CASE WHEN total_recipients = 0 THEN 0
		                         ELSE ROUND($2::numeric / total_recipients * 100, 2) END
		WHERE id = $1
	`
	tag, err := q.Exec(ctx, query, messageID, successful, failed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *pgMessageRepository) GetByIDForUser(ctx context.Context, q repository.Querier, messageID, userID int64) (*domain.Message, error) {
	msg := &domain.Message{}
	query := `
		SELECT id, user_id, body, total_recipients, successful_sends, failed_sends, delivery_rate, created_at
		FROM messages
		WHERE id = $1 AND user_id = $2
	`
	err := q.QueryRow(ctx, query, messageID, userID).Scan(
		&msg.ID, &msg.UserID, &msg.Body, &msg.TotalRecipients,
		&msg.SuccessfulSends, &msg.FailedSends, &msg.DeliveryRate, &msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}
