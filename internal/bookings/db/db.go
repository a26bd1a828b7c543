package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func New(db *bun.DB) *DB {
	return &DB{Bun: db}
}

func (d *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	_, err := d.Bun.NewInsert().Model(booking).Exec(ctx)
	return err
}

// GetBookingByID loads the booking with its owner.
func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Relation("User").
		Where("b.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("booking %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListBookings applies every non-zero field of the filter, newest first.
func (d *DB) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	var bookings []models.Booking
	q := d.Bun.NewSelect().Model(&bookings)
	if f.UserID != "" {
		q = q.Where("b.user_id = ?", f.UserID)
	}
	if f.TourID != "" {
		q = q.Where("b.tour_id = ?", f.TourID)
	}
	if f.Status != "" {
		q = q.Where("b.payment_status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("b.booking_type = ?", f.Type)
	}
	if !f.From.IsZero() {
		q = q.Where("b.created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("b.created_at <= ?", f.To)
	}
	err := q.Order("b.created_at DESC").Scan(ctx)
	return bookings, err
}

func (d *DB) ListBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return d.ListBookings(ctx, models.BookingFilter{UserID: userID})
}

func (d *DB) ListBookingsByTour(ctx context.Context, tourID string) ([]models.Booking, error) {
	return d.ListBookings(ctx, models.BookingFilter{TourID: tourID})
}

func (d *DB) ListBookingsByGroup(ctx context.Context, groupID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("b.group_id = ?", groupID).
		Order("b.created_at DESC").
		Scan(ctx)
	return bookings, err
}
