package models

import (
	"time"

	"susu/pkg/domain"
)

// PendingExit records a graceful exit request awaiting a replacement.
//
// The record is created by request_exit and destroyed by fill_vacancy; it
// never persists past a completed vacancy fill. RefundAmount is frozen at
// request time: the member's accumulated principal, nothing more.
type PendingExit struct {
	CircleID     domain.CircleID `json:"circle_id"`
	Member       domain.Account  `json:"member"`
	QueueIndex   int             `json:"queue_index"`
	RefundAmount domain.Amount   `json:"refund_amount"`
	RequestedAt  time.Time       `json:"requested_at"`
}
