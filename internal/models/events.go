package models

import "time"

const (
	EventPaymentCreated   = "payment.created"
	EventPaymentConfirmed = "payment.confirmed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
	EventBookingCreated   = "booking.created"
)

type PaymentEvent struct {
	Type      string    `json:"type"`
	PaymentID string    `json:"payment_id"`
	BookingID string    `json:"booking_id"`
	Payment   *Payment  `json:"payment"`
	Booking   *Booking  `json:"booking,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type BookingEvent struct {
	Type      string    `json:"type"`
	BookingID string    `json:"booking_id"`
	Booking   *Booking  `json:"booking"`
	Timestamp time.Time `json:"timestamp"`
}
