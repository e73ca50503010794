// Package tokens tracks revoked JWT ids until the tokens would have expired.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps redis failures.
var ErrUnavailable = errors.New("token denylist unavailable")

// Denylist stores revoked token ids. With a redis client the entries are
// shared between instances; without one they live in process memory.
type Denylist struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewDenylist creates a Denylist. client may be nil.
func NewDenylist(client redis.UniversalClient, prefix string) *Denylist {
	return &Denylist{
		redis:   client,
		prefix:  prefix,
		now:     time.Now,
		revoked: map[string]time.Time{},
	}
}

func (d *Denylist) key(id string) string {
	return d.prefix + ":" + id
}

// Revoke denies id until expiresAt. Tokens that already expired are ignored.
func (d *Denylist) Revoke(ctx context.Context, id string, expiresAt time.Time) error {
	if id == "" {
		return nil
	}
	ttl := expiresAt.Sub(d.now())
	if ttl <= 0 {
		return nil
	}

	if d.redis != nil {
		if err := d.redis.Set(ctx, d.key(id), 1, ttl).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweep()
	d.revoked[id] = expiresAt
	return nil
}

// IsRevoked reports whether id was revoked and has not expired yet.
func (d *Denylist) IsRevoked(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}

	if d.redis != nil {
		n, err := d.redis.Exists(ctx, d.key(id)).Result()
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return n > 0, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.revoked[id]
	return ok && d.now().Before(until), nil
}

// sweep drops expired in-memory entries. Caller holds mu.
func (d *Denylist) sweep() {
	now := d.now()
	for id, until := range d.revoked {
		if !now.Before(until) {
			delete(d.revoked, id)
		}
	}
}
