package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "auction_notification:"
	defaultTTL = time.Hour
)

// RedisNotifier queues outbid notifications on a per-user Redis list that the
// notification consumer drains.
type RedisNotifier struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisNotifier(client redis.UniversalClient, ttl time.Duration) *RedisNotifier {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisNotifier{client: client, ttl: ttl}
}

// Key returns the list that holds userID's pending notifications.
func Key(userID string) string {
	return keyPrefix + userID
}

// NotifyOutbid records that userID was outbid on auctionID.
func (n *RedisNotifier) NotifyOutbid(ctx context.Context, userID, auctionID string) error {
	key := Key(userID)
	pipe := n.client.TxPipeline()
	pipe.LPush(ctx, key, auctionID)
	pipe.Expire(ctx, key, n.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("notify: outbid %s on %s: %w", userID, auctionID, err)
	}
	return nil
}

// Pending returns the auctions userID was outbid on, newest first.
func (n *RedisNotifier) Pending(ctx context.Context, userID string) ([]string, error) {
	ids, err := n.client.LRange(ctx, Key(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("notify: pending for %s: %w", userID, err)
	}
	return ids, nil
}
