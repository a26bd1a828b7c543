package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
)

// MaxBatchTours caps how many tours a single batch request may cover.
const MaxBatchTours = 50

type TourLookup interface {
	GetTourByID(ctx context.Context, id string) (*models.Tour, error)
}

type Service struct {
	db     *DB
	tours  TourLookup
	logger *logger.Logger
}

func NewService(db *DB, tours TourLookup, log *logger.Logger) *Service {
	return &Service{db: db, tours: tours, logger: log}
}

type StatusBreakdown struct {
	Status      models.BookingStatus `json:"status"`
	Bookings    int                  `json:"bookings"`
	TotalBooked float64              `json:"totalBooked"`
	TotalPaid   float64              `json:"totalPaid"`
}

type DailyRevenue struct {
	Date      string  `json:"date"`
	Payments  int     `json:"payments"`
	Collected float64 `json:"collected"`
	Refunded  float64 `json:"refunded"`
}

// TourRevenue is the money picture of one tour.
type TourRevenue struct {
	TourID         string            `json:"tourId"`
	TourName       string            `json:"tourName"`
	Bookings       int               `json:"bookings"`
	TotalBooked    float64           `json:"totalBooked"`
	Outstanding    float64           `json:"outstanding"`
	TotalCollected float64           `json:"totalCollected"`
	TotalRefunded  float64           `json:"totalRefunded"`
	NetRevenue     float64           `json:"netRevenue"`
	PaymentCounts  map[string]int    `json:"paymentCounts"`
	ByStatus       []StatusBreakdown `json:"byStatus"`
	Daily          []DailyRevenue    `json:"daily"`
}

// GetTourRevenue aggregates bookings and payments of a tour. The optional
// window narrows the payment side only; booking totals always cover the
// whole tour.
func (s *Service) GetTourRevenue(ctx context.Context, tourID string, from, to *time.Time) (*TourRevenue, error) {
	if strings.TrimSpace(tourID) == "" {
		return nil, apperror.Validation("tourId is required")
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, apperror.Validation("from must not be after to")
	}

	tour, err := s.tours.GetTourByID(ctx, tourID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.BookingTotalsByStatus(ctx, tourID)
	if err != nil {
		s.logger.Error("ANALYTICS", fmt.Sprintf("Failed to total bookings for tour %s: %v", tourID, err))
		return nil, err
	}
	payments, err := s.db.PaymentsByTour(ctx, tourID, from, to)
	if err != nil {
		s.logger.Error("ANALYTICS", fmt.Sprintf("Failed to load payments for tour %s: %v", tourID, err))
		return nil, err
	}

	out := &TourRevenue{
		TourID:        tour.ID,
		TourName:      tour.Name,
		PaymentCounts: map[string]int{},
		ByStatus:      []StatusBreakdown{},
		Daily:         []DailyRevenue{},
	}

	for _, r := range rows {
		out.Bookings += r.Bookings
		out.TotalBooked += r.Booked
		if r.Status != models.BookingRefunded {
			out.Outstanding += r.Booked - r.Paid
		}
		out.ByStatus = append(out.ByStatus, StatusBreakdown{
			Status:      r.Status,
			Bookings:    r.Bookings,
			TotalBooked: models.RoundCents(r.Booked),
			TotalPaid:   models.RoundCents(r.Paid),
		})
	}

	days := map[string]*DailyRevenue{}
	day := func(t time.Time) *DailyRevenue {
		key := t.UTC().Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &DailyRevenue{Date: key}
			days[key] = d
		}
		return d
	}

	for _, p := range payments {
		out.PaymentCounts[string(p.Status)]++
		switch p.Status {
		case models.PaymentConfirmed, models.PaymentRefunded:
			d := day(p.CreatedAt)
			d.Payments++
			d.Collected += p.Amount
			out.TotalCollected += p.Amount
		}
		if p.Status == models.PaymentRefunded && p.RefundAmount != nil {
			when := p.UpdatedAt
			if p.RefundDate != nil {
				when = *p.RefundDate
			}
			day(when).Refunded += *p.RefundAmount
			out.TotalRefunded += *p.RefundAmount
		}
	}

	for _, d := range days {
		d.Collected = models.RoundCents(d.Collected)
		d.Refunded = models.RoundCents(d.Refunded)
		out.Daily = append(out.Daily, *d)
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })

	out.TotalBooked = models.RoundCents(out.TotalBooked)
	out.Outstanding = models.RoundCents(out.Outstanding)
	out.TotalCollected = models.RoundCents(out.TotalCollected)
	out.TotalRefunded = models.RoundCents(out.TotalRefunded)
	out.NetRevenue = models.RoundCents(out.TotalCollected - out.TotalRefunded)
	return out, nil
}

// GetBatchTourRevenue runs GetTourRevenue for several tours. Unknown tours are
// reported in the second return value instead of failing the batch.
func (s *Service) GetBatchTourRevenue(ctx context.Context, tourIDs []string, from, to *time.Time) (map[string]*TourRevenue, []string, error) {
	if len(tourIDs) == 0 {
		return nil, nil, apperror.Validation("at least one tour id is required")
	}
	if len(tourIDs) > MaxBatchTours {
		return nil, nil, apperror.Validation("at most %d tours per request", MaxBatchTours)
	}

	results := make(map[string]*TourRevenue, len(tourIDs))
	var missing []string
	for _, id := range tourIDs {
		if _, seen := results[id]; seen {
			continue
		}
		rev, err := s.GetTourRevenue(ctx, id, from, to)
		if apperror.KindOf(err) == apperror.KindNotFound {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		results[id] = rev
	}
	return results, missing, nil
}
