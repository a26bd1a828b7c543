package analytics

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-vitotrips/internal/models"
)

// DB handles analytics database operations
type DB struct {
	bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

type StatusTotals struct {
	Status   models.BookingStatus `bun:"status"`
	Bookings int                  `bun:"bookings"`
	Booked   float64              `bun:"booked"`
	Paid     float64              `bun:"paid"`
}

// BookingTotalsByStatus sums the bookings of a tour per payment status.
func (db *DB) BookingTotalsByStatus(ctx context.Context, tourID string) ([]StatusTotals, error) {
	var rows []StatusTotals
	err := db.bun.NewSelect().
		Model((*models.Booking)(nil)).
		ColumnExpr("b.payment_status AS status").
		ColumnExpr("COUNT(*) AS bookings").
		ColumnExpr("COALESCE(SUM(b.total_amount), 0) AS booked").
		ColumnExpr("COALESCE(SUM(b.paid_amount), 0) AS paid").
		Where("b.tour_id = ?", tourID).
		Group("b.payment_status").
		OrderExpr("b.payment_status").
		Scan(ctx, &rows)
	return rows, err
}

// PaymentsByTour returns every payment made against bookings of the tour,
// optionally limited to those created inside [from, to].
func (db *DB) PaymentsByTour(ctx context.Context, tourID string, from, to *time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	q := db.bun.NewSelect().
		Model(&payments).
		Join("JOIN bookings AS b ON b.id = p.booking_id").
		Where("b.tour_id = ?", tourID)
	if from != nil {
		q = q.Where("p.created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("p.created_at <= ?", *to)
	}
	err := q.OrderExpr("p.created_at ASC").Scan(ctx)
	return payments, err
}
