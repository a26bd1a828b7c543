package bookings

import "errors"

var ErrNotBookingOwner = errors.New("booking belongs to another user")
