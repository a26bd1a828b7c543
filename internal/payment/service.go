package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
	"ms-vitotrips/internal/payment/storage"
)

const defaultCurrency = "usd"

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, key string, payload interface{}) error
}

// BookingLocker guards a booking across service instances. Lock returns
// false when somebody else holds it.
type BookingLocker interface {
	Lock(ctx context.Context, bookingID, owner string) (bool, error)
	Unlock(ctx context.Context, bookingID, owner string) error
}

type Option func(*PaymentService)

func WithLogger(l *logger.Logger) Option {
	return func(s *PaymentService) { s.log = l }
}

func WithEvents(p EventPublisher) Option {
	return func(s *PaymentService) { s.events = p }
}

func WithLocker(l BookingLocker) Option {
	return func(s *PaymentService) { s.locker = l }
}

func WithCurrency(c string) Option {
	return func(s *PaymentService) {
		if c != "" {
			s.currency = strings.ToLower(c)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *PaymentService) { s.now = now }
}

// PaymentService moves payments through PENDING -> CONFIRMED|FAILED and
// CONFIRMED -> REFUNDED, keeping the booking balance in step.
type PaymentService struct {
	store    storage.Store
	gateway  Gateway
	events   EventPublisher
	locker   BookingLocker
	log      *logger.Logger
	currency string
	now      func() time.Time
}

func NewPaymentService(store storage.Store, gateway Gateway, opts ...Option) *PaymentService {
	s := &PaymentService{
		store:    store,
		gateway:  gateway,
		log:      logger.Nop(),
		currency: defaultCurrency,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MinorUnits converts an amount to the processor's smallest currency unit,
// truncating anything below a cent.
func MinorUnits(amount float64) int64 {
	// round away binary noise first so 19.99 becomes 1999, not 1998
	return int64(math.Round(amount*100*100) / 100)
}

// CreatePayment opens a processor intent and records it as a PENDING payment.
// The booking balance is not touched until the payment is confirmed.
func (s *PaymentService) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error) {
	if strings.TrimSpace(req.BookingID) == "" {
		return nil, apperror.Validation("bookingId is required")
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return nil, apperror.Validation("amount must be greater than zero")
	}
	minor := MinorUnits(req.Amount)
	if minor <= 0 {
		return nil, apperror.Validation("amount must be at least one cent")
	}

	booking, err := s.store.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	intentReq := IntentRequest{
		AmountMinor: minor,
		Currency:    s.currency,
		Description: req.Description,
		Metadata:    map[string]string{"bookingId": booking.ID},
	}
	if intentReq.Description == "" {
		intentReq.Description = "Payment for booking #" + booking.ID
	}
	if booking.User != nil {
		intentReq.ReceiptEmail = booking.User.Email
	}

	intent, err := s.gateway.CreateIntent(ctx, intentReq)
	if err != nil {
		s.log.Error("PAYMENT", fmt.Sprintf("Failed to create intent for booking %s: %v", booking.ID, err))
		return nil, apperror.Gateway(err, "payment processing failed")
	}

	now := s.now().UTC()
	payment := &models.Payment{
		ID:                 uuid.New().String(),
		BookingID:          booking.ID,
		// the ledger records what the processor charges, not what was asked
		Amount:             float64(minor) / 100,
		PaymentMethod:      req.PaymentMethod,
		Status:             models.PaymentPending,
		ProcessorPaymentID: intent.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		// the intent must not outlive a payment we failed to record
		if cancelErr := s.gateway.CancelIntent(ctx, intent.ID); cancelErr != nil {
			s.log.Error("PAYMENT", fmt.Sprintf("Failed to cancel orphaned intent %s: %v", intent.ID, cancelErr))
		}
		return nil, err
	}

	s.log.LogPayment("CREATE", payment.ID, fmt.Sprintf("Intent %s for booking %s, amount %.2f", intent.ID, booking.ID, payment.Amount))
	s.publish(ctx, models.EventPaymentCreated, payment, nil)

	return &models.CreatePaymentResponse{
		PaymentID:    payment.ID,
		ClientSecret: intent.ClientSecret,
		Status:       payment.Status,
	}, nil
}

// ConfirmPayment settles a PENDING payment after the processor reports the
// intent as succeeded, crediting the booking.
func (s *PaymentService) ConfirmPayment(ctx context.Context, processorID string) (*models.Payment, error) {
	payment, err := s.store.GetPaymentByProcessorID(ctx, processorID)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.RetrieveIntent(ctx, processorID)
	if err != nil {
		return nil, apperror.Gateway(err, "failed to retrieve payment intent %s", processorID)
	}
	if intent.Status != IntentSucceeded {
		return nil, apperror.InvalidState("payment intent %s is %s, not succeeded", processorID, intent.Status)
	}

	unlock, err := s.lockBooking(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var booking *models.Booking
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.LockPayment(ctx, payment.ID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentPending {
			return apperror.InvalidState("payment %s is %s, only PENDING payments can be confirmed", p.ID, p.Status)
		}
		b, err := tx.LockBooking(ctx, p.BookingID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		p.Status = models.PaymentConfirmed
		p.UpdatedAt = now
		b.ApplyConfirmed(p.Amount)
		b.UpdatedAt = now

		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		payment, booking = p, b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.LogPayment("CONFIRM", payment.ID, fmt.Sprintf("Booking %s paid %.2f of %.2f (%s)", booking.ID, booking.PaidAmount, booking.TotalAmount, booking.PaymentStatus))
	s.publish(ctx, models.EventPaymentConfirmed, payment, booking)
	return payment, nil
}

// FailPayment marks a PENDING payment as FAILED. Failing an already failed
// payment is a no-op.
func (s *PaymentService) FailPayment(ctx context.Context, processorID, reason string) (*models.Payment, error) {
	payment, err := s.store.GetPaymentByProcessorID(ctx, processorID)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentFailed {
		return payment, nil
	}

	changed := false
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.LockPayment(ctx, payment.ID)
		if err != nil {
			return err
		}
		switch p.Status {
		case models.PaymentFailed:
			payment = p
			return nil
		case models.PaymentPending:
		default:
			return apperror.InvalidState("payment %s is %s and can no longer fail", p.ID, p.Status)
		}
		p.Status = models.PaymentFailed
		p.FailureReason = reason
		p.UpdatedAt = s.now().UTC()
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		payment, changed = p, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.LogPayment("FAIL", payment.ID, fmt.Sprintf("Intent %s failed: %s", processorID, reason))
		s.publish(ctx, models.EventPaymentFailed, payment, nil)
	}
	return payment, nil
}

// RefundPayment refunds a CONFIRMED payment in full and debits the booking.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID, reason string) (*models.Payment, error) {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentConfirmed {
		return nil, apperror.InvalidState("cannot refund a payment that is not confirmed")
	}

	unlock, err := s.lockBooking(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	refundID, err := s.gateway.CreateRefund(ctx, payment.ProcessorPaymentID)
	if err != nil {
		s.log.Error("PAYMENT", fmt.Sprintf("Refund of %s failed at the processor: %v", payment.ID, err))
		return nil, apperror.Gateway(err, "refund failed")
	}

	var booking *models.Booking
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentConfirmed {
			return apperror.InvalidState("cannot refund a payment that is not confirmed")
		}
		b, err := tx.LockBooking(ctx, p.BookingID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		amount := p.Amount
		p.Status = models.PaymentRefunded
		p.RefundAmount = &amount
		p.RefundDate = &now
		p.RefundReason = reason
		p.UpdatedAt = now
		b.ApplyRefund(amount)
		b.UpdatedAt = now

		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		payment, booking = p, b
		return nil
	})
	if err != nil {
		s.log.Error("PAYMENT", fmt.Sprintf("Processor refund %s issued but ledger update for %s failed: %v", refundID, paymentID, err))
		return nil, err
	}

	s.log.LogPayment("REFUND", payment.ID, fmt.Sprintf("Refund %s, booking %s paid now %.2f", refundID, booking.ID, booking.PaidAmount))
	s.publish(ctx, models.EventPaymentRefunded, payment, booking)
	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return s.store.GetPayment(ctx, id)
}

func (s *PaymentService) ListPayments(ctx context.Context) ([]models.Payment, error) {
	return s.store.ListPayments(ctx)
}

func (s *PaymentService) ListPaymentsByBooking(ctx context.Context, bookingID string) ([]models.Payment, error) {
	if _, err := s.store.GetBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.store.ListPaymentsByBooking(ctx, bookingID)
}

// lockBooking takes the cross-instance lock when one is configured. The
// returned func releases it.
func (s *PaymentService) lockBooking(ctx context.Context, bookingID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	owner := uuid.New().String()
	ok, err := s.locker.Lock(ctx, bookingID, owner)
	if err != nil {
		return nil, fmt.Errorf("lock booking %s: %w", bookingID, err)
	}
	if !ok {
		return nil, apperror.Conflict("booking %s is being updated, retry shortly", bookingID)
	}
	return func() {
		// release even if the request context is already gone
		if err := s.locker.Unlock(context.WithoutCancel(ctx), bookingID, owner); err != nil {
			s.log.Warn("PAYMENT", fmt.Sprintf("Failed to release lock on booking %s: %v", bookingID, err))
		}
	}, nil
}

func (s *PaymentService) publish(ctx context.Context, eventType string, p *models.Payment, b *models.Booking) {
	if s.events == nil {
		return
	}
	event := models.PaymentEvent{
		Type:      eventType,
		PaymentID: p.ID,
		BookingID: p.BookingID,
		Payment:   p,
		Booking:   b,
		Timestamp: s.now().UTC(),
	}
	if err := s.events.PublishEvent(ctx, eventType, p.BookingID, event); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish %s for payment %s: %v", eventType, p.ID, err))
	}
}

// isBenign reports errors a processor notification may legitimately hit:
// unknown payments and replays of already applied transitions.
func isBenign(err error) bool {
	return errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrInvalidState)
}
