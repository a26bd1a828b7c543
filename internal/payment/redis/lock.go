package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-vitotrips/internal/logger"
)

const defaultLockTTL = 30 * time.Second

// BookingLock serializes balance updates on one booking across instances.
// The holder's token is stored as the value so only the owner can release it.
type BookingLock struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewBookingLock(client *redis.Client, ttl time.Duration, log *logger.Logger) *BookingLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &BookingLock{Client: client, TTL: ttl, Logger: log}
}

func lockKey(bookingID string) string {
	return "booking_lock:" + bookingID
}

// Lock returns false without error when another holder has the booking.
func (l *BookingLock) Lock(ctx context.Context, bookingID, owner string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, lockKey(bookingID), owner, l.TTL).Result()
	if err != nil {
		l.Logger.Error("REDIS", fmt.Sprintf("Failed to lock booking %s: %v", bookingID, err))
		return false, err
	}
	if !ok {
		l.Logger.Warn("REDIS", fmt.Sprintf("Booking %s is already locked", bookingID))
	}
	return ok, nil
}

func (l *BookingLock) Unlock(ctx context.Context, bookingID, owner string) error {
	key := lockKey(bookingID)
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // expired or already released
	}
	if err != nil {
		return err
	}
	if val != owner {
		return nil
	}
	return l.Client.Del(ctx, key).Err()
}
