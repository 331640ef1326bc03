package slotcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

// Redis shares cached views between service instances. Every data key embeds two
// counters: one per provider (InvalidateProvider is one INCR) and one per (provider, date)
// (InvalidateDay is one INCR). Superseded keys age out through their TTL. Keys of one
// provider share a hash tag so they land in one cluster slot.
type Redis struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	genTTL time.Duration
	prefix string
}

func NewRedis(rdb redis.UniversalClient, ttl time.Duration, prefix string) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if prefix == "" {
		prefix = "avail"
	}
	return &Redis{rdb: rdb, ttl: ttl, genTTL: max(24*time.Hour, 4*ttl), prefix: prefix}
}

func (c *Redis) genKey(providerID string) string {
	return c.prefix + ":gen:{" + providerID + "}"
}

func (c *Redis) dayGenKey(providerID string, date model.Date) string {
	return c.prefix + ":dgen:{" + providerID + "}:" + date.String()
}

func (c *Redis) dataKey(providerID string, date model.Date, gen string) string {
	return fmt.Sprintf("%s:{%s}:%s:%s", c.prefix, providerID, date, gen)
}

type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func readGeneration(ctx context.Context, cmd mgetter, keys ...string) (string, error) {
	vals, err := cmd.MGet(ctx, keys...).Result()
	if err != nil {
		return "", fmt.Errorf("read cache generation: %w", err)
	}
	gen := ""
	for i, v := range vals {
		s, _ := v.(string)
		if s == "" {
			s = "0"
		}
		if i > 0 {
			gen += "."
		}
		gen += s
	}
	return gen, nil
}

func (c *Redis) Generation(ctx context.Context, providerID string, date model.Date) (string, error) {
	return readGeneration(ctx, c.rdb, c.genKey(providerID), c.dayGenKey(providerID, date))
}

func (c *Redis) Get(ctx context.Context, k Key) ([]model.TimeSlot, bool, error) {
	gen, err := c.Generation(ctx, k.ProviderID, k.Date)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.rdb.HGet(ctx, c.dataKey(k.ProviderID, k.Date, gen), k.Variant).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var slots []model.TimeSlot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, fmt.Errorf("decode cached slots: %w", err)
	}
	return slots, true, nil
}

// Set writes under WATCH on both counters, so an invalidation that lands between the
// generation check and EXEC aborts the write.
func (c *Redis) Set(ctx context.Context, k Key, gen string, slots []model.TimeSlot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	genKey, dayGenKey := c.genKey(k.ProviderID), c.dayGenKey(k.ProviderID, k.Date)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, genKey, dayGenKey)
		if err != nil {
			return err
		}
		if current != gen {
			return ErrStale
		}
		key := c.dataKey(k.ProviderID, k.Date, gen)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, k.Variant, raw)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, genKey, dayGenKey)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("cache set: %w", err)
	}
}

func (c *Redis) InvalidateDay(ctx context.Context, providerID string, date model.Date) error {
	key := c.dayGenKey(providerID, date)
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.genTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache invalidate day: %w", err)
	}
	return nil
}

func (c *Redis) InvalidateProvider(ctx context.Context, providerID string) error {
	if err := c.rdb.Incr(ctx, c.genKey(providerID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate provider: %w", err)
	}
	return nil
}
