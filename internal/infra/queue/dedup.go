package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const DefaultDedupTTL = 72 * time.Hour

// Deduper lets a consumer claim a message id exactly once within a window.
type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// RedisDeduper claims ids with SET NX and an expiry.
type RedisDeduper struct {
	Client redis.Cmdable
	TTL    time.Duration
	Prefix string
}

func NewRedisDeduper(client redis.Cmdable, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduper{Client: client, TTL: ttl, Prefix: "crm:event:"}
}

// Claim returns false when the id was already claimed.
func (d *RedisDeduper) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := d.Client.SetNX(ctx, d.Prefix+id, time.Now().UTC().Format(time.RFC3339), d.TTL).Result()
	if err != nil {
		return false, eris.Wrapf(err, "dedup: claim %s", id)
	}
	return ok, nil
}

// Release forgets a claim so a redelivery is processed again.
func (d *RedisDeduper) Release(ctx context.Context, id string) error {
	if err := d.Client.Del(ctx, d.Prefix+id).Err(); err != nil {
		return eris.Wrapf(err, "dedup: release %s", id)
	}
	return nil
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "redis: parse url")
	}
	return redis.NewClient(opts), nil
}
