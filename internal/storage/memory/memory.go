// Package memory is an in-process storage.Backend.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/AlexZinkM/avian-backup/internal/storage"
)

type category struct {
	order []string
	body  map[string][]byte
}

// Backend keeps every category in memory.
type Backend struct {
	mu   sync.RWMutex
	cats map[string]*category
}

// New returns an empty backend.
func New() *Backend {
	return &Backend{cats: make(map[string]*category)}
}

func (b *Backend) List(_ context.Context, cat string) ([]storage.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.cats[cat]
	if !ok {
		return []storage.Entry{}, nil
	}
	out := make([]storage.Entry, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, storage.Entry{Key: k, Body: bytes.Clone(c.body[k])})
	}
	return out, nil
}

func (b *Backend) Upsert(ctx context.Context, cat string, entries []storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.cats[cat]
	if !ok {
		c = &category{body: make(map[string][]byte)}
		b.cats[cat] = c
	}
	for _, e := range entries {
		if _, exists := c.body[e.Key]; !exists {
			c.order = append(c.order, e.Key)
		}
		c.body[e.Key] = bytes.Clone(e.Body)
	}
	return nil
}

func (b *Backend) Close() error { return nil }
