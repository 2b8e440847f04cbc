// Package cache keeps resolved mappings close to the redirect path.
package cache

import (
	"context"
	"sync"

	"github.com/yourname/go-shortly/internal/store"
)

// Cache holds mappings by short code. Implementations are best-effort:
// a miss just falls through to the store. Delete must remove the entry so
// resolution never serves a mapping that was removed through this process.
type Cache interface {
	Get(ctx context.Context, code string) (store.Mapping, bool)
	Set(ctx context.Context, m store.Mapping)
	Del(ctx context.Context, code string)
}

// Memory is the default in-process cache.
type Memory struct {
	entries sync.Map // code -> store.Mapping
}

func NewMemory() *Memory {
	return &Memory{}
}

func (c *Memory) Get(_ context.Context, code string) (store.Mapping, bool) {
	v, ok := c.entries.Load(code)
	if !ok {
		return store.Mapping{}, false
	}
	return v.(store.Mapping), true
}

func (c *Memory) Set(_ context.Context, m store.Mapping) {
	c.entries.Store(m.ShortCode, m)
}

func (c *Memory) Del(_ context.Context, code string) {
	c.entries.Delete(code)
}

var _ Cache = (*Memory)(nil)
