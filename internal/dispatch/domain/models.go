package domain

import (
	"database/sql/driver"
	"fmt"
	"math"
	"time"
)

// DeliveryStatus is the per-recipient state of one dispatch attempt.
type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "pending"
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
	// StatusDelivered is reserved for carrier delivery-report callbacks.
	// The dispatcher itself never writes it.
	StatusDelivered DeliveryStatus = "delivered"
)

// Value implements driver.Valuer for DeliveryStatus.
func (s DeliveryStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements sql.Scanner for DeliveryStatus.
func (s *DeliveryStatus) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan DeliveryStatus: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	*s = DeliveryStatus(strVal)
	switch *s {
	case StatusPending, StatusSent, StatusFailed, StatusDelivered:
		return nil
	default:
		return fmt.Errorf("unknown DeliveryStatus value: %s", strVal)
	}
}

// MaxBodyLength is the one-segment SMS budget. Enforcing it is the
// caller's job; the dispatcher trusts its inputs.
const MaxBodyLength = 160

// Message is the parent record of one dispatch. Its counters are written
// exactly once, after every per-recipient outcome is known; the delivery
// rate is always derived from the counters, never maintained separately.
type Message struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Body            string    `json:"body"`
	TotalRecipients int       `json:"total_recipients"`
	SuccessfulSends int       `json:"successful_sends"`
	FailedSends     int       `json:"failed_sends"`
	DeliveryRate    float64   `json:"delivery_rate"`
	CreatedAt       time.Time `json:"created_at"`
}

// Recipient is the per-destination status row of one dispatch attempt.
// Rows are append-only: a resend creates fresh rows under a new Message
// instead of mutating these.
type Recipient struct {
	ID                int64          `json:"id"`
	MessageID         int64          `json:"message_id"`
	PhoneNumber       string         `json:"phone_number"`
	Status            DeliveryStatus `json:"status"`
	ProviderMessageID *string        `json:"provider_message_id,omitempty"`
	Cost              *float64       `json:"cost,omitempty"`
	ErrorMessage      *string        `json:"error_message,omitempty"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// DeliveryRate returns successful/total as a percentage rounded to two
// decimal places, 0 when total is 0.
func DeliveryRate(successful, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(successful)/float64(total)*100*100) / 100
}
