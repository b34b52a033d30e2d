package postgres

import (
	"context"

	"github.com/smsflow/smsflow/internal/dispatch/domain"
	"github.com/smsflow/smsflow/internal/dispatch/repository"
)

type pgRecipientRepository struct{}

// NewPgRecipientRepository creates the PostgreSQL recipient repository.
func NewPgRecipientRepository() repository.RecipientRepository {
	return &pgRecipientRepository{}
}

func (r *pgRecipientRepository) Insert(ctx context.Context, q repository.Querier, rec *domain.Recipient) (int64, error) {
	query := `
		INSERT INTO recipients (message_id, phone_number, status, provider_message_id, cost, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := q.QueryRow(ctx, query,
		rec.MessageID, rec.PhoneNumber, rec.Status,
		rec.ProviderMessageID, rec.Cost, rec.ErrorMessage, rec.SentAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *pgRecipientRepository) FailedDestinations(ctx context.Context, q repository.Querier, messageID, userID int64) ([]string, error) {
	query := `
		SELECT DISTINCT r.phone_number
		FROM recipients r
		JOIN messages m ON m.id = r.message_id
		WHERE r.message_id = $1 AND m.user_id = $2 AND r.status = $3
		ORDER BY r.phone_number
	`
	rows, err := q.Query(ctx, query, messageID, userID, domain.StatusFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var destinations []string
	for rows.Next() {
		var dest string
		if err := rows.Scan(&dest); err != nil {
			return nil, err
		}
		destinations = append(destinations, dest)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return destinations, nil
}
