package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smsflow/smsflow/internal/dispatch/domain"
	"github.com/smsflow/smsflow/internal/dispatch/provider"
	"github.com/smsflow/smsflow/internal/dispatch/repository"
)

// DispatchResult is the per-destination slice of a DispatchSummary.
type DispatchResult struct {
	PhoneNumber string                `json:"phoneNumber"`
	Status      domain.DeliveryStatus `json:"status"`
	MessageID   string                `json:"messageId,omitempty"` // carrier-assigned id
	Error       string                `json:"error,omitempty"`
	Provider    string                `json:"provider"`
	Cost        *float64              `json:"cost,omitempty"`
}

// DispatchTotals aggregates one dispatch.
type DispatchTotals struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// DispatchSummary is returned to callers after every dispatch. Partial
// failure is represented in-band: the call itself only errors when
// persistence is down.
type DispatchSummary struct {
	Success   bool             `json:"success"`
	Provider  string           `json:"provider"`
	MessageID *int64           `json:"messageId"` // nil in dry mode
	Results   []DispatchResult `json:"results"`
	Summary   DispatchTotals   `json:"summary"`
}

// DispatchService owns the lifecycle of one send operation: it creates
// the parent Message, invokes the configured carrier, persists one
// Recipient row per outcome plus a single aggregate counter update, and
// returns the normalized summary.
//
// Inputs are trusted: destinations arrive non-empty, deduplicated and in
// canonical form, and the body fits one SMS segment. Validation is the
// caller's contract (see the HTTP transport).
type DispatchService struct {
	carrier    provider.Carrier
	messages   repository.MessageRepository
	recipients repository.RecipientRepository
	tx         repository.TxManager
	db         repository.Querier
	logger     *slog.Logger
}

func NewDispatchService(
	carrier provider.Carrier,
	messages repository.MessageRepository,
	recipients repository.RecipientRepository,
	tx repository.TxManager,
	db repository.Querier,
	logger *slog.Logger,
) *DispatchService {
	return &DispatchService{
		carrier:    carrier,
		messages:   messages,
		recipients: recipients,
		tx:         tx,
		db:         db,
		logger:     logger.With("service", "dispatch"),
	}
}

// Dispatch fans one logical send out to every destination. When userID
// is nil it runs in dry mode: the carrier is still invoked but nothing
// is persisted (ad-hoc and test callers).
func (s *DispatchService) Dispatch(ctx context.Context, destinations []string, body string, userID *int64) (*DispatchSummary, error) {
	var messageID *int64
	if userID != nil {
		id, err := s.messages.Create(ctx, s.db, *userID, body, len(destinations))
		if err != nil {
			return nil, fmt.Errorf("creating message record: %w", err)
		}
		messageID = &id
	}

	timer := prometheus.NewTimer(carrierRequestDurationHist.WithLabelValues(s.carrier.Name()))
	outcomes, err := s.carrier.SendBatch(ctx, destinations, body)
	timer.ObserveDuration()
	if err != nil {
		return nil, fmt.Errorf("carrier %s batch send: %w", s.carrier.Name(), err)
	}

	sent, failed := tally(outcomes)

	if messageID != nil {
		// One transaction covers every recipient row and the aggregate
		// update, so a crash mid-dispatch cannot leave counters behind
		// the rows they summarize.
		now := time.Now().UTC()
		err := s.tx.WithinTx(ctx, func(q repository.Querier) error {
			for i := range outcomes {
				rec := recipientFromOutcome(*messageID, &outcomes[i], now)
				if _, err := s.recipients.Insert(ctx, q, rec); err != nil {
					return fmt.Errorf("inserting recipient %s: %w", rec.PhoneNumber, err)
				}
			}
			return s.messages.UpdateCounters(ctx, q, *messageID, sent, failed)
		})
		if err != nil {
			return nil, fmt.Errorf("persisting dispatch outcomes: %w", err)
		}
	}

	mode := "dry"
	if messageID != nil {
		mode = "persisted"
	}
	dispatchesTotal.WithLabelValues(s.carrier.Name(), mode).Inc()
	recipientOutcomesTotal.WithLabelValues(s.carrier.Name(), string(domain.StatusSent)).Add(float64(sent))
	recipientOutcomesTotal.WithLabelValues(s.carrier.Name(), string(domain.StatusFailed)).Add(float64(failed))

	s.logger.InfoContext(ctx, "dispatch settled",
		"provider", s.carrier.Name(), "total", len(destinations), "sent", sent, "failed", failed,
		"persisted", messageID != nil)

	return s.buildSummary(messageID, outcomes, sent, failed), nil
}

// Resend re-enters Dispatch scoped to the previously failed destinations
// of an existing message. It creates a brand-new Message with fresh
// Recipient rows; the original message's history is never mutated.
func (s *DispatchService) Resend(ctx context.Context, messageID, userID int64) (*DispatchSummary, error) {
	msg, err := s.messages.GetByIDForUser(ctx, s.db, messageID, userID)
	if err != nil {
		return nil, err
	}

	failedDests, err := s.recipients.FailedDestinations(ctx, s.db, messageID, userID)
	if err != nil {
		return nil, fmt.Errorf("loading failed recipients for message %d: %w", messageID, err)
	}
	if len(failedDests) == 0 {
		return nil, domain.ErrNothingToResend
	}

	s.logger.InfoContext(ctx, "resending failed recipients",
		"original_message_id", messageID, "recipients", len(failedDests))
	return s.Dispatch(ctx, failedDests, msg.Body, &userID)
}

// GetMessage returns the parent record with its settled counters.
func (s *DispatchService) GetMessage(ctx context.Context, messageID, userID int64) (*domain.Message, error) {
	return s.messages.GetByIDForUser(ctx, s.db, messageID, userID)
}

func tally(outcomes []provider.Outcome) (sent, failed int) {
	for _, oc := range outcomes {
		if oc.Status == domain.StatusSent {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

func recipientFromOutcome(messageID int64, oc *provider.Outcome, now time.Time) *domain.Recipient {
	rec := &domain.Recipient{
		MessageID:   messageID,
		PhoneNumber: oc.PhoneNumber,
		Status:      oc.Status,
		Cost:        oc.Cost,
	}
	if oc.ProviderMessageID != "" {
		id := oc.ProviderMessageID
		rec.ProviderMessageID = &id
	}
	if oc.Status == domain.StatusSent {
		sentAt := now
		rec.SentAt = &sentAt
	}
	if oc.ErrorMessage != "" {
		errMsg := oc.ErrorMessage
		rec.ErrorMessage = &errMsg
	}
	return rec
}

func (s *DispatchService) buildSummary(messageID *int64, outcomes []provider.Outcome, sent, failed int) *DispatchSummary {
	results := make([]DispatchResult, len(outcomes))
	for i, oc := range outcomes {
		results[i] = DispatchResult{
			PhoneNumber: oc.PhoneNumber,
			Status:      oc.Status,
			MessageID:   oc.ProviderMessageID,
			Error:       oc.ErrorMessage,
			Provider:    s.carrier.Name(),
			Cost:        oc.Cost,
		}
	}
	return &DispatchSummary{
		Success:   true,
		Provider:  s.carrier.Name(),
		MessageID: messageID,
		Results:   results,
		Summary: DispatchTotals{
			Total:  len(outcomes),
			Sent:   sent,
			Failed: failed,
		},
	}
}
