package slotcache

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

// dayEntry holds every variant of one (provider, date). gen is drawn from a counter
// shared by the whole cache, so an entry recreated after eviction never reuses a value.
type dayEntry struct {
	gen      uint64
	variants map[string]lruItem
}

type lruItem struct {
	slots     []model.TimeSlot
	expiresAt time.Time
}

// LRU is an in-process cache bounded by the number of (provider, date) entries.
// It is only coherent within a single process.
type LRU struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *dayEntry]
	seq   uint64
	ttl   time.Duration
	now   func() time.Time
}

func NewLRU(size int, ttl time.Duration) (*LRU, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, *dayEntry](size)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: c, ttl: ttl, now: time.Now}, nil
}

func dayKey(providerID string, date model.Date) string {
	return providerID + "|" + date.String()
}

func (c *LRU) nextGen() uint64 {
	c.seq++
	return c.seq
}

func (c *LRU) Get(_ context.Context, k Key) ([]model.TimeSlot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache.Get(dayKey(k.ProviderID, k.Date))
	if !ok {
		return nil, false, nil
	}
	item, ok := entry.variants[k.Variant]
	if !ok {
		return nil, false, nil
	}
	if c.ttl > 0 && c.now().After(item.expiresAt) {
		delete(entry.variants, k.Variant)
		return nil, false, nil
	}
	return slices.Clone(item.slots), true, nil
}

func (c *LRU) Generation(_ context.Context, providerID string, date model.Date) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := dayKey(providerID, date)
	entry, ok := c.cache.Get(key)
	if !ok {
		entry = &dayEntry{gen: c.nextGen(), variants: map[string]lruItem{}}
		c.cache.Add(key, entry)
	}
	return strconv.FormatUint(entry.gen, 10), nil
}

func (c *LRU) Set(_ context.Context, k Key, gen string, slots []model.TimeSlot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache.Get(dayKey(k.ProviderID, k.Date))
	if !ok || strconv.FormatUint(entry.gen, 10) != gen {
		return ErrStale
	}
	entry.variants[k.Variant] = lruItem{slots: slices.Clone(slots), expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *LRU) invalidate(entry *dayEntry) {
	entry.gen = c.nextGen()
	clear(entry.variants)
}

func (c *LRU) InvalidateDay(_ context.Context, providerID string, date model.Date) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.cache.Peek(dayKey(providerID, date)); ok {
		c.invalidate(entry)
	}
	return nil
}

func (c *LRU) InvalidateProvider(_ context.Context, providerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := providerID + "|"
	for _, key := range c.cache.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if entry, ok := c.cache.Peek(key); ok {
			c.invalidate(entry)
		}
	}
	return nil
}
