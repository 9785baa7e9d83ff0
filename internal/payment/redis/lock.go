package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Locker serializes payment callbacks per order. Providers retry webhooks and
// browsers get refreshed; the lock keeps two deliveries for the same order
// from confirming concurrently.
type Locker struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{
		Client: client,
		Logger: log.Default(),
	}
}

// getLockDuration returns the callback lock TTL from the environment or the
// default value.
func (l *Locker) getLockDuration() time.Duration {
	defaultDuration := 30 * time.Second

	ttlStr := os.Getenv("PAYMENT_CALLBACK_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultDuration
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		l.Logger.Println("REDIS: Invalid PAYMENT_CALLBACK_LOCK_TTL_SECONDS value '" + ttlStr + "', using default 30 seconds")
		return defaultDuration
	}

	return time.Duration(ttlSec) * time.Second
}

func key(orderID int64) string {
	return fmt.Sprintf("payment_callback_lock:%d", orderID)
}

// Lock acquires the callback lock for an order. Returns false when another
// callback for the same order is in flight.
func (l *Locker) Lock(ctx context.Context, orderID int64) (bool, error) {
	return l.Client.SetNX(ctx, key(orderID), "1", l.getLockDuration()).Result()
}

// Unlock releases the callback lock. Already-expired locks are not an error.
func (l *Locker) Unlock(ctx context.Context, orderID int64) error {
	err := l.Client.Del(ctx, key(orderID)).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}
