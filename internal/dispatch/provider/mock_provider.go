package provider

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const mockFailureDiagnostic = "mock carrier: simulated delivery failure"

// MockCarrier simulates a carrier for development and tests. Each
// destination draws an independent success outcome; a fixed small delay
// per destination models network latency. The random source is
// injectable so tests can pin exact outcomes.
type MockCarrier struct {
	logger      *slog.Logger
	successRate float64
	latency     time.Duration
	rng         *rand.Rand
}

func NewMockCarrier(logger *slog.Logger, successRate float64, latency time.Duration, rng *rand.Rand) *MockCarrier {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MockCarrier{
		logger:      logger.With("provider", "mock"),
		successRate: successRate,
		latency:     latency,
		rng:         rng,
	}
}

func (c *MockCarrier) Name() string {
	return "mock"
}

func (c *MockCarrier) SendBatch(ctx context.Context, destinations []string, body string) ([]Outcome, error) {
	outcomes := make([]Outcome, len(destinations))
	for i, dest := range destinations {
		if c.latency > 0 {
			time.Sleep(c.latency)
		}
		if c.rng.Float64() < c.successRate {
			outcomes[i] = sentOutcome(dest, "mock-"+uuid.NewString(), nil)
		} else {
			outcomes[i] = failedOutcome(dest, mockFailureDiagnostic)
		}
	}
	c.logger.InfoContext(ctx, "mock carrier processed batch",
		"recipients", len(destinations), "content_len", len(body))
	return outcomes, nil
}
