package domain

import "errors"

var (
	// ErrMessageNotFound is returned when a message does not exist or
	// does not belong to the requesting user.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNothingToResend is returned by resend when the message exists
	// but has no failed recipients to retry.
	ErrNothingToResend = errors.New("message has no failed recipients to resend")
)
