package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-vitotrips/internal/logger"
)

// setupTestRedis starts miniredis and returns a lock backed by it.
func setupTestRedis(t *testing.T) (*BookingLock, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewBookingLock(client, 10*time.Second, logger.Nop()), mr
}

func TestBookingLock_LockUnlock(t *testing.T) {
	l, _ := setupTestRedis(t)
	ctx := context.Background()

	ok, err := l.Lock(ctx, "booking-1", "req-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Lock(ctx, "booking-1", "req-2")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not get the lock")

	ok, err = l.Lock(ctx, "booking-2", "req-2")
	require.NoError(t, err)
	assert.True(t, ok, "other bookings are independent")

	require.NoError(t, l.Unlock(ctx, "booking-1", "req-1"))
	ok, err = l.Lock(ctx, "booking-1", "req-2")
	require.NoError(t, err)
	assert.True(t, ok, "released lock can be taken again")
}

func TestBookingLock_OnlyOwnerUnlocks(t *testing.T) {
	l, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := l.Lock(ctx, "booking-1", "req-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Unlock(ctx, "booking-1", "req-2"))
	val, err := mr.Get("booking_lock:booking-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", val)

	require.NoError(t, l.Unlock(ctx, "booking-1", "req-1"))
	assert.False(t, mr.Exists("booking_lock:booking-1"))
}

func TestBookingLock_Expires(t *testing.T) {
	l, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := l.Lock(ctx, "booking-1", "req-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	ok, err = l.Lock(ctx, "booking-1", "req-2")
	require.NoError(t, err)
	assert.True(t, ok, "an abandoned lock must not block forever")
	require.NoError(t, l.Unlock(ctx, "booking-1", "req-1"))

	assert.True(t, mr.Exists("booking_lock:booking-1"), "stale owner must not release the new holder")
}

func TestBookingLock_ConcurrentHolders(t *testing.T) {
	l, _ := setupTestRedis(t)
	ctx := context.Background()

	const attempts = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			ok, err := l.Lock(ctx, "booking-race", fmt.Sprintf("req-%d", n))
			if err == nil && ok {
				mu.Lock()
				holders++
				mu.Unlock()
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, holders, "exactly one concurrent caller holds the lock")
}
