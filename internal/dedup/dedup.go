package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResultDeduper tracks gateway results that were already applied.
type ResultDeduper interface {
	// Seen records key and reports whether it was recorded before.
	Seen(ctx context.Context, key string) (bool, error)
	// Release forgets key so the result can be applied again.
	Release(ctx context.Context, key string) error
}

type redisResultDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisResultDeduper) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+":"+key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	// false => already exists => duplicate
	return !ok, nil
}

func (d *redisResultDeduper) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, d.prefix+":"+key).Err()
}

type memoryResultDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
	now    func() time.Time
}

// NewMemory returns a process-local deduper.
func NewMemory(ttl time.Duration) ResultDeduper {
	return newMemoryResultDeduper(ttl, time.Now)
}

func newMemoryResultDeduper(ttl time.Duration, now func() time.Time) *memoryResultDeduper {
	return &memoryResultDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now().Add(ttl),
		now:    now,
	}
}

func (d *memoryResultDeduper) Seen(_ context.Context, key string) (bool, error) {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[key]; ok && exp.After(now) {
		return true, nil
	}

	d.seen[key] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for k, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, k)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}

	return false, nil
}

func (d *memoryResultDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}

// New builds a Redis deduper and falls back to in-memory on failure.
func New(addr, pass string, db int, ttl time.Duration) (ResultDeduper, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if addr == "" {
		return NewMemory(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return NewMemory(ttl), err
	}

	return &redisResultDeduper{
		client: client,
		prefix: "oppwa:result",
		ttl:    ttl,
	}, nil
}
