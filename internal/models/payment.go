package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// CanTransitionTo reports whether next is reachable in one step.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentConfirmed || next == PaymentFailed
	case PaymentConfirmed:
		return next == PaymentRefunded
	}
	return false
}

type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:p"`

	ID                 string        `bun:"id,pk" json:"id"`
	BookingID          string        `bun:"booking_id,notnull" json:"bookingId"`
	Amount             float64       `bun:"amount,notnull" json:"amount"`
	PaymentMethod      string        `bun:"payment_method" json:"paymentMethod,omitempty"`
	Status             PaymentStatus `bun:"status,notnull" json:"status"`
	ProcessorPaymentID string        `bun:"processor_payment_id,unique,notnull" json:"processorPaymentId"`
	FailureReason      string        `bun:"failure_reason" json:"failureReason,omitempty"`
	RefundAmount       *float64      `bun:"refund_amount" json:"refundAmount,omitempty"`
	RefundDate         *time.Time    `bun:"refund_date" json:"refundDate,omitempty"`
	RefundReason       string        `bun:"refund_reason" json:"refundReason,omitempty"`
	CreatedAt          time.Time     `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt          time.Time     `bun:"updated_at,notnull" json:"updatedAt"`
}

type CreatePaymentRequest struct {
	BookingID     string  `json:"bookingId"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	Description   string  `json:"description,omitempty"`
}

type CreatePaymentResponse struct {
	PaymentID    string        `json:"paymentId"`
	ClientSecret string        `json:"clientSecret"`
	Status       PaymentStatus `json:"status"`
}

type RefundRequest struct {
	Reason string `json:"reason,omitempty"`
}
