package storage

import (
	"context"

	"ms-vitotrips/internal/models"
)

// Store is the payment ledger: payments plus the bookings they settle.
type Store interface {
	// Booking reads used before any processor call
	GetBooking(ctx context.Context, id string) (*models.Booking, error)

	// Payment operations
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByProcessorID(ctx context.Context, processorID string) (*models.Payment, error)
	ListPayments(ctx context.Context) ([]models.Payment, error)
	ListPaymentsByBooking(ctx context.Context, bookingID string) ([]models.Payment, error)

	// RunInTx runs fn in one database transaction. Returning an error rolls
	// everything back.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	HealthCheck(ctx context.Context) error
}

// Tx is the write side of the ledger, only reachable inside RunInTx.
type Tx interface {
	LockPayment(ctx context.Context, id string) (*models.Payment, error)
	LockBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	UpdateBooking(ctx context.Context, booking *models.Booking) error
}
