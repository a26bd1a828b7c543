package models

import (
	"math"
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingFailed    BookingStatus = "FAILED"
	BookingRefunded  BookingStatus = "REFUNDED"
)

type BookingType string

const (
	BookingIndividual BookingType = "INDIVIDUAL"
	BookingGroup      BookingType = "GROUP"
	BookingCorporate  BookingType = "CORPORATE"
)

func (t BookingType) Valid() bool {
	switch t {
	case BookingIndividual, BookingGroup, BookingCorporate:
		return true
	}
	return false
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	ID                  string        `bun:"id,pk" json:"id"`
	UserID              string        `bun:"user_id,notnull" json:"userId"`
	TourID              string        `bun:"tour_id,notnull" json:"tourId"`
	GroupID             *string       `bun:"group_id" json:"groupId,omitempty"`
	TotalAmount         float64       `bun:"total_amount,notnull" json:"totalAmount"`
	PaidAmount          float64       `bun:"paid_amount,notnull" json:"paidAmount"`
	PaymentStatus       BookingStatus `bun:"payment_status,notnull" json:"paymentStatus"`
	BookingType         BookingType   `bun:"booking_type,notnull" json:"bookingType"`
	SpecialInstructions string        `bun:"special_instructions" json:"specialInstructions,omitempty"`
	CreatedAt           time.Time     `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt           time.Time     `bun:"updated_at,notnull" json:"updatedAt"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"-"`
}

// ApplyConfirmed credits a confirmed payment and recomputes the status from
// the balance.
func (b *Booking) ApplyConfirmed(amount float64) {
	b.PaidAmount = RoundCents(b.PaidAmount + amount)
	if b.PaidAmount >= b.TotalAmount {
		b.PaymentStatus = BookingConfirmed
	} else {
		b.PaymentStatus = BookingPending
	}
}

// ApplyRefund debits a refunded payment. The whole booking is marked
// REFUNDED even when other confirmed payments still count towards the balance.
func (b *Booking) ApplyRefund(amount float64) {
	b.PaidAmount = RoundCents(b.PaidAmount - amount)
	b.PaymentStatus = BookingRefunded
}

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

type CreateBookingRequest struct {
	TourID              string      `json:"tourId"`
	GroupID             *string     `json:"groupId,omitempty"`
	TotalAmount         float64     `json:"totalAmount"`
	BookingType         BookingType `json:"bookingType"`
	SpecialInstructions string      `json:"specialInstructions,omitempty"`
}

// BookingFilter narrows booking listings. Zero fields are ignored.
type BookingFilter struct {
	UserID string
	TourID string
	Status BookingStatus
	Type   BookingType
	From   time.Time
	To     time.Time
}
