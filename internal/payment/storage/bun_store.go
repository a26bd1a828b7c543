package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/database"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
)

type BunStore struct {
	db  *bun.DB
	log *logger.Logger
}

func NewBunStore(db *bun.DB, log *logger.Logger) *BunStore {
	log.LogDatabase("INIT", "payments", "Payment ledger using shared database connection")
	return &BunStore{db: db, log: log}
}

// GetBooking loads the booking with its owner so receipts can be addressed.
func (s *BunStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.NewSelect().
		Model(&booking).
		Relation("User").
		Where("b.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("booking %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return &booking, nil
}

func (s *BunStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if _, err := s.db.NewInsert().Model(payment).Exec(ctx); err != nil {
		s.log.LogDatabase("INSERT", "payments", fmt.Sprintf("failed to insert payment %s: %v", payment.ID, err))
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *BunStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return selectPayment(ctx, s.db, "p.id = ?", id, false)
}

func (s *BunStore) GetPaymentByProcessorID(ctx context.Context, processorID string) (*models.Payment, error) {
	return selectPayment(ctx, s.db, "p.processor_payment_id = ?", processorID, false)
}

func (s *BunStore) ListPayments(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.NewSelect().Model(&payments).Order("p.created_at DESC").Scan(ctx)
	return payments, err
}

func (s *BunStore) ListPaymentsByBooking(ctx context.Context, bookingID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.NewSelect().
		Model(&payments).
		Where("p.booking_id = ?", bookingID).
		Order("p.created_at ASC").
		Scan(ctx)
	return payments, err
}

func (s *BunStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &bunTx{tx: tx, locks: database.SupportsRowLocks(s.db)})
	})
}

func (s *BunStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func selectPayment(ctx context.Context, db bun.IDB, where, arg string, lock bool) (*models.Payment, error) {
	var payment models.Payment
	q := db.NewSelect().Model(&payment).Where(where, arg).Limit(1)
	if lock {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("payment %s not found", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", arg, err)
	}
	return &payment, nil
}

type bunTx struct {
	tx    bun.Tx
	locks bool
}

// LockPayment re-reads the payment, holding a row lock where the dialect has them.
func (t *bunTx) LockPayment(ctx context.Context, id string) (*models.Payment, error) {
	return selectPayment(ctx, t.tx, "p.id = ?", id, t.locks)
}

func (t *bunTx) LockBooking(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	q := t.tx.NewSelect().Model(&booking).Where("b.id = ?", id).Limit(1)
	if t.locks {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("booking %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock booking %s: %w", id, err)
	}
	return &booking, nil
}

func (t *bunTx) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	_, err := t.tx.NewUpdate().Model(payment).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update payment %s: %w", payment.ID, err)
	}
	return nil
}

func (t *bunTx) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	_, err := t.tx.NewUpdate().
		Model(booking).
		Column("paid_amount", "payment_status", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update booking %s: %w", booking.ID, err)
	}
	return nil
}
