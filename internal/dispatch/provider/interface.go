package provider

import (
	"context"

	"github.com/smsflow/smsflow/internal/dispatch/domain"
)

// Outcome is the normalized per-destination result of one send attempt.
// Status is always StatusSent or StatusFailed; carrier-reported failures
// are outcomes, never errors.
type Outcome struct {
	PhoneNumber       string
	Status            domain.DeliveryStatus
	ProviderMessageID string   // opaque carrier id, empty on failure
	ErrorMessage      string   // populated only on failure
	Cost              *float64 // only carriers that report cost set it
}

// Carrier is the uniform send capability over the configured transport.
// SendBatch returns one outcome per destination, in input order. A
// transport-level failure on a bulk carrier degrades every destination
// in the batch to a failed outcome; the error return is reserved for
// request construction problems, not carrier rejections.
type Carrier interface {
	SendBatch(ctx context.Context, destinations []string, body string) ([]Outcome, error)
	Name() string
}

func sentOutcome(destination, providerMsgID string, cost *float64) Outcome {
	return Outcome{
		PhoneNumber:       destination,
		Status:            domain.StatusSent,
		ProviderMessageID: providerMsgID,
		Cost:              cost,
	}
}

func failedOutcome(destination, errMsg string) Outcome {
	return Outcome{
		PhoneNumber:  destination,
		Status:       domain.StatusFailed,
		ErrorMessage: errMsg,
	}
}

// failAll marks every destination in a batch as failed with the same
// transport-level error text.
func failAll(destinations []string, errMsg string) []Outcome {
	outcomes := make([]Outcome, len(destinations))
	for i, dest := range destinations {
		outcomes[i] = failedOutcome(dest, errMsg)
	}
	return outcomes
}
