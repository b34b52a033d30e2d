package http

import "time"

// DispatchRequest is the body of POST /messages/dispatch.
type DispatchRequest struct {
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
}

// MessageResponse is the body of GET /messages/{messageID}.
type MessageResponse struct {
	ID              int64     `json:"id"`
	Body            string    `json:"body"`
	TotalRecipients int       `json:"total_recipients"`
	SuccessfulSends int       `json:"successful_sends"`
	FailedSends     int       `json:"failed_sends"`
	DeliveryRate    float64   `json:"delivery_rate"`
	CreatedAt       time.Time `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}
