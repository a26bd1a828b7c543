package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/database/dbtest"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
	"ms-vitotrips/internal/payment/storage"
)

func seed(t *testing.T) (*storage.BunStore, *models.Booking, *models.Payment) {
	db := dbtest.Open(t)
	ctx := context.Background()
	now := time.Now().UTC()

	booking := &models.Booking{
		ID: uuid.NewString(), UserID: "u-1", TourID: "t-1", TotalAmount: 80,
		PaymentStatus: models.BookingPending, BookingType: models.BookingIndividual, CreatedAt: now, UpdatedAt: now,
	}
	_, err := db.NewInsert().Model(booking).Exec(ctx)
	require.NoError(t, err)

	store := storage.NewBunStore(db, logger.Nop())
	p := &models.Payment{
		ID: uuid.NewString(), BookingID: booking.ID, Amount: 80, Status: models.PaymentPending,
		ProcessorPaymentID: "pi_store", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreatePayment(ctx, p))
	return store, booking, p
}

func TestLedgerReads(t *testing.T) {
	store, booking, p := seed(t)
	ctx := context.Background()

	got, err := store.GetPaymentByProcessorID(ctx, "pi_store")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = store.GetPayment(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = store.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	list, err := store.ListPaymentsByBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	dup := *p
	dup.ID = uuid.NewString()
	assert.Error(t, store.CreatePayment(ctx, &dup), "processor ids are unique")

	assert.NoError(t, store.HealthCheck(ctx))
}

func TestRunInTxRollsBack(t *testing.T) {
	store, booking, p := seed(t)
	ctx := context.Background()

	err := store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		lp, err := tx.LockPayment(ctx, p.ID)
		if err != nil {
			return err
		}
		lb, err := tx.LockBooking(ctx, booking.ID)
		if err != nil {
			return err
		}
		lp.Status = models.PaymentConfirmed
		lb.ApplyConfirmed(lp.Amount)
		if err := tx.UpdateBooking(ctx, lb); err != nil {
			return err
		}
		if err := tx.UpdatePayment(ctx, lp); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	got, err := store.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, got.Status)

	b, err := store.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Zero(t, b.PaidAmount)
	assert.Equal(t, models.BookingPending, b.PaymentStatus)
}

func TestRunInTxCommits(t *testing.T) {
	store, booking, p := seed(t)
	ctx := context.Background()

	err := store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		lb, err := tx.LockBooking(ctx, booking.ID)
		if err != nil {
			return err
		}
		lp, err := tx.LockPayment(ctx, p.ID)
		if err != nil {
			return err
		}
		lp.Status = models.PaymentConfirmed
		lb.ApplyConfirmed(lp.Amount)
		if err := tx.UpdateBooking(ctx, lb); err != nil {
			return err
		}
		return tx.UpdatePayment(ctx, lp)
	})
	require.NoError(t, err)

	b, err := store.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, b.PaidAmount)
	assert.Equal(t, models.BookingConfirmed, b.PaymentStatus)
}
