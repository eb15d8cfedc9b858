// Package storage persists live wallet state: wallets, address book, settings
// and the auxiliary categories. Records are stored per category as JSON bodies
// keyed by their natural key, in first-insert order.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/AlexZinkM/avian-backup/internal/model"
)

// Entry is one stored record.
type Entry struct {
	Key  string
	Body []byte
}

// Backend is the persistence primitive the typed Store is built on.
type Backend interface {
	// List returns every entry of category in first-insert order.
	List(ctx context.Context, category string) ([]Entry, error)
	// Upsert inserts or replaces entries of one category atomically.
	// A replaced entry keeps its original position.
	Upsert(ctx context.Context, category string, entries []Entry) error
	Close() error
}

// Change describes one successful category write.
type Change struct {
	Category model.Category
	Keys     []string
}

// Store is the typed view of a Backend with change notification.
type Store struct {
	backend Backend
	logger  *zap.Logger

	mu        sync.RWMutex
	nextID    int
	observers map[int]func(Change)
}

// New wraps backend.
func New(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger, observers: make(map[int]func(Change))}
}

// Close closes the backend.
func (s *Store) Close() error { return s.backend.Close() }

// Subscribe registers fn to be called after every successful write.
// The returned function removes the registration.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	fns := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) Wallets(ctx context.Context) ([]model.WalletRecord, error) {
	return list[model.WalletRecord](ctx, s.backend, model.CategoryWallets)
}

func (s *Store) Contacts(ctx context.Context) ([]model.ContactRecord, error) {
	return list[model.ContactRecord](ctx, s.backend, model.CategoryAddressBook)
}

func (s *Store) Transactions(ctx context.Context) ([]model.TransactionRecord, error) {
	return list[model.TransactionRecord](ctx, s.backend, model.CategoryTransactions)
}

func (s *Store) AuditEvents(ctx context.Context) ([]model.AuditEvent, error) {
	return list[model.AuditEvent](ctx, s.backend, model.CategorySecurityAudit)
}

func (s *Store) WatchedAddresses(ctx context.Context) ([]model.WatchedAddress, error) {
	return list[model.WatchedAddress](ctx, s.backend, model.CategoryWatchedAddresses)
}

// Settings returns every stored setting.
func (s *Store) Settings(ctx context.Context) (map[string]any, error) {
	entries, err := s.backend.List(ctx, string(model.CategorySettings))
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		var v any
		if err := json.Unmarshal(e.Body, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal setting %q: %w", e.Key, err)
		}
		out[e.Key] = v
	}
	return out, nil
}

func (s *Store) UpsertWallets(ctx context.Context, ws []model.WalletRecord) error {
	return upsert(ctx, s, model.CategoryWallets, ws, func(w model.WalletRecord) string { return w.Address })
}

func (s *Store) UpsertContacts(ctx context.Context, cs []model.ContactRecord) error {
	return upsert(ctx, s, model.CategoryAddressBook, cs, func(c model.ContactRecord) string { return c.Address })
}

func (s *Store) UpsertTransactions(ctx context.Context, ts []model.TransactionRecord) error {
	return upsert(ctx, s, model.CategoryTransactions, ts, func(t model.TransactionRecord) string { return t.TxID })
}

func (s *Store) UpsertAuditEvents(ctx context.Context, es []model.AuditEvent) error {
	return upsert(ctx, s, model.CategorySecurityAudit, es, func(e model.AuditEvent) string { return e.ID })
}

func (s *Store) UpsertWatchedAddresses(ctx context.Context, ws []model.WatchedAddress) error {
	return upsert(ctx, s, model.CategoryWatchedAddresses, ws, func(w model.WatchedAddress) string { return w.Address })
}

// PutSettings writes the given settings, leaving other keys untouched.
func (s *Store) PutSettings(ctx context.Context, settings map[string]any) error {
	if len(settings) == 0 {
		return nil
	}
	entries := make([]Entry, 0, len(settings))
	keys := make([]string, 0, len(settings))
	for k, v := range settings {
		body, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal setting %q: %w", k, err)
		}
		entries = append(entries, Entry{Key: k, Body: body})
		keys = append(keys, k)
	}
	return s.write(ctx, model.CategorySettings, entries, keys)
}

func (s *Store) write(ctx context.Context, cat model.Category, entries []Entry, keys []string) error {
	if err := s.backend.Upsert(ctx, string(cat), entries); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", cat, err)
	}
	s.logger.Debug("category written", zap.String("category", string(cat)), zap.Int("records", len(entries)))
	s.notify(Change{Category: cat, Keys: keys})
	return nil
}

func list[T any](ctx context.Context, b Backend, cat model.Category) ([]T, error) {
	entries, err := b.List(ctx, string(cat))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", cat, err)
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Body, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s %q: %w", cat, e.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func upsert[T any](ctx context.Context, s *Store, cat model.Category, items []T, key func(T) string) error {
	if len(items) == 0 {
		return nil
	}
	entries := make([]Entry, 0, len(items))
	keys := make([]string, 0, len(items))
	for _, it := range items {
		k := key(it)
		if k == "" {
			return fmt.Errorf("%s record without key", cat)
		}
		body, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("failed to marshal %s %q: %w", cat, k, err)
		}
		entries = append(entries, Entry{Key: k, Body: body})
		keys = append(keys, k)
	}
	return s.write(ctx, cat, entries, keys)
}
