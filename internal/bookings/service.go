package bookings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/auth"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
)

type DBLayer interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error)
}

// Catalog checks the references a booking points at.
type Catalog interface {
	GetTourByID(ctx context.Context, id string) (*models.Tour, error)
	GetGroupByID(ctx context.Context, id string) (*models.Group, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, key string, payload interface{}) error
}

type VoucherRenderer interface {
	PNG(b *models.Booking) ([]byte, error)
}

type BookingService struct {
	DB       DBLayer
	Catalog  Catalog
	Events   EventPublisher
	Vouchers VoucherRenderer
	Logger   *logger.Logger
}

func NewBookingService(db DBLayer, catalog Catalog, events EventPublisher, vouchers VoucherRenderer, log *logger.Logger) *BookingService {
	return &BookingService{DB: db, Catalog: catalog, Events: events, Vouchers: vouchers, Logger: log}
}

// CreateBooking opens a booking for the caller with nothing paid yet.
func (s *BookingService) CreateBooking(ctx context.Context, caller *auth.Principal, req models.CreateBookingRequest) (*models.Booking, error) {
	if req.TotalAmount <= 0 {
		return nil, apperror.Validation("totalAmount must be greater than zero")
	}
	if req.BookingType == "" {
		req.BookingType = models.BookingIndividual
	}
	if !req.BookingType.Valid() {
		return nil, apperror.Validation("unknown booking type %q", req.BookingType)
	}
	if strings.TrimSpace(req.TourID) == "" {
		return nil, apperror.Validation("tourId is required")
	}
	if _, err := s.Catalog.GetTourByID(ctx, req.TourID); err != nil {
		return nil, err
	}

	if req.GroupID != nil && *req.GroupID != "" {
		group, err := s.Catalog.GetGroupByID(ctx, *req.GroupID)
		if err != nil {
			return nil, err
		}
		if group.TourID != req.TourID {
			return nil, apperror.Validation("group %s belongs to another tour", group.ID)
		}
	} else {
		req.GroupID = nil
		if req.BookingType == models.BookingGroup {
			return nil, apperror.Validation("group bookings need a groupId")
		}
	}

	now := time.Now().UTC()
	booking := &models.Booking{
		ID:                  uuid.New().String(),
		UserID:              caller.UserID,
		TourID:              req.TourID,
		GroupID:             req.GroupID,
		TotalAmount:         models.RoundCents(req.TotalAmount),
		PaidAmount:          0,
		PaymentStatus:       models.BookingPending,
		BookingType:         req.BookingType,
		SpecialInstructions: req.SpecialInstructions,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.DB.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	s.Logger.LogBooking("CREATE", booking.ID, fmt.Sprintf("%s booked tour %s for %.2f", caller.Email, booking.TourID, booking.TotalAmount))

	if s.Events != nil {
		event := models.BookingEvent{Type: models.EventBookingCreated, BookingID: booking.ID, Booking: booking, Timestamp: now}
		if err := s.Events.PublishEvent(ctx, event.Type, booking.ID, event); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish %s for %s: %v", event.Type, booking.ID, err))
		}
	}
	return booking, nil
}

// GetBooking returns the booking if the caller owns it or is staff.
func (s *BookingService) GetBooking(ctx context.Context, caller *auth.Principal, id string) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeAll(caller) && booking.UserID != caller.UserID {
		return nil, ErrNotBookingOwner
	}
	return booking, nil
}

// ListBookings scopes travelers to their own bookings; staff may filter freely.
func (s *BookingService) ListBookings(ctx context.Context, caller *auth.Principal, f models.BookingFilter) ([]models.Booking, error) {
	if !canSeeAll(caller) {
		f.UserID = caller.UserID
	}
	if f.Status != "" {
		switch f.Status {
		case models.BookingPending, models.BookingConfirmed, models.BookingFailed, models.BookingRefunded:
		default:
			return nil, apperror.Validation("unknown payment status %q", f.Status)
		}
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, apperror.Validation("unknown booking type %q", f.Type)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return nil, apperror.Validation("from must not be after to")
	}
	return s.DB.ListBookings(ctx, f)
}

func (s *BookingService) Voucher(ctx context.Context, caller *auth.Principal, id string) ([]byte, error) {
	booking, err := s.GetBooking(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return s.Vouchers.PNG(booking)
}

func canSeeAll(p *auth.Principal) bool {
	return p.Role == models.RoleAdmin || p.Role == models.RoleTourOperator
}
