package backup

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AlexZinkM/avian-backup/internal/errs"
	"github.com/AlexZinkM/avian-backup/internal/model"
)

// Store is the live storage a restore merges into. Every upsert is atomic
// for its category.
type Store interface {
	StateReader
	UpsertWallets(ctx context.Context, ws []model.WalletRecord) error
	UpsertContacts(ctx context.Context, cs []model.ContactRecord) error
	PutSettings(ctx context.Context, settings map[string]any) error
	UpsertTransactions(ctx context.Context, ts []model.TransactionRecord) error
	UpsertAuditEvents(ctx context.Context, es []model.AuditEvent) error
	UpsertWatchedAddresses(ctx context.Context, ws []model.WatchedAddress) error
}

var restoreEventSpace = uuid.MustParse("0b5c2a91-7e44-4f6b-a3d8-1c9e7f20b6a4")

// ProgressFunc receives the category just finished and the overall percent.
type ProgressFunc func(step string, percent int)

// StepStarting is reported with 0% before any category is processed.
const StepStarting = "starting"

// Engine merges validated documents into live storage.
// One engine runs at most one restore at a time.
type Engine struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	running sync.Mutex
}

func NewEngine(store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger, now: time.Now}
}

// Restore writes the enabled categories of doc in model.RestoreOrder.
//
// Once started, a restore is not cancellable: ctx is only checked before the
// first write. A storage failure stops the remaining categories and returns
// the summary so far with Partial set, along with an error wrapping
// errs.ErrStorageWriteFailed.
func (e *Engine) Restore(ctx context.Context, doc *model.BackupDocument, opts model.RestoreOptions, onProgress ProgressFunc) (model.RestoreSummary, error) {
	summary := model.RestoreSummary{Completed: []model.Category{}}
	if doc == nil {
		return summary, errors.New("nothing to restore")
	}
	if !e.running.TryLock() {
		return summary, errs.ErrRestoreInProgress
	}
	defer e.running.Unlock()

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	ctx = context.WithoutCancel(ctx)

	if onProgress == nil {
		onProgress = func(string, int) {}
	}
	onProgress(StepStarting, 0)

	log := e.logger.With(zap.String("backupId", doc.Metadata.BackupID))
	log.Info("restore started", zap.Bool("overwrite", opts.OverwriteExisting))

	for i, cat := range model.RestoreOrder {
		if opts.Includes(cat) {
			if err := e.restoreCategory(ctx, cat, doc, opts, &summary); err != nil {
				summary.Failed = cat
				summary.Partial = true
				log.Error("restore aborted",
					zap.String("category", string(cat)),
					zap.Any("completed", summary.Completed),
					zap.Error(err))
				return summary, fmt.Errorf("restore %s: %w: %w", cat, errs.ErrStorageWriteFailed, err)
			}
			summary.Completed = append(summary.Completed, cat)
		} else {
			summary.Skipped = append(summary.Skipped, cat)
		}
		onProgress(string(cat), (i+1)*100/len(model.RestoreOrder))
	}

	log.Info("restore finished",
		zap.Int("wallets", summary.WalletsRestored),
		zap.Int("addresses", summary.AddressesRestored),
		zap.Int("settings", summary.SettingsRestored),
		zap.Int("skipped", summary.RecordsSkipped))
	return summary, nil
}

func (e *Engine) restoreCategory(ctx context.Context, cat model.Category, doc *model.BackupDocument, opts model.RestoreOptions, s *model.RestoreSummary) error {
	overwrite := opts.OverwriteExisting

	switch cat {
	case model.CategoryWallets:
		n, skipped, err := merge(ctx, e.store.Wallets, e.store.UpsertWallets, doc.Wallets, walletKey, overwrite)
		s.WalletsRestored, s.RecordsSkipped = n, s.RecordsSkipped+skipped
		return err

	case model.CategoryAddressBook:
		n, skipped, err := merge(ctx, e.store.Contacts, e.store.UpsertContacts, doc.AddressBook, contactKey, overwrite)
		s.AddressesRestored, s.RecordsSkipped = n, s.RecordsSkipped+skipped
		return err

	case model.CategorySettings:
		n, skipped, err := e.mergeSettings(ctx, doc.Settings, overwrite)
		s.SettingsRestored, s.RecordsSkipped = n, s.RecordsSkipped+skipped
		return err

	case model.CategoryTransactions:
		n, skipped, err := merge(ctx, e.store.Transactions, e.store.UpsertTransactions, doc.Transactions, txKey, overwrite)
		s.TransactionsRestored, s.RecordsSkipped = n, s.RecordsSkipped+skipped
		return err

	case model.CategorySecurityAudit:
		ev := e.restoredEvent(doc, s)
		incoming := append(slices.Clone(doc.SecurityAudit), ev)
		write, skipped, err := plan(ctx, e.store.AuditEvents, incoming, auditKey, overwrite)
		if err != nil {
			return err
		}
		if len(write) > 0 {
			if err := e.store.UpsertAuditEvents(ctx, write); err != nil {
				return err
			}
		}
		if slices.ContainsFunc(write, func(a model.AuditEvent) bool { return a.ID == ev.ID }) {
			s.AuditEventsRestored = len(write) - 1
		} else {
			s.AuditEventsRestored = len(write)
			skipped--
		}
		s.RecordsSkipped += skipped
		return nil

	case model.CategoryWatchedAddresses:
		if err := e.warnUnknownWallets(ctx, doc); err != nil {
			return err
		}
		n, skipped, err := merge(ctx, e.store.WatchedAddresses, e.store.UpsertWatchedAddresses, doc.WatchedAddresses, watchedKey, overwrite)
		s.WatchedRestored, s.RecordsSkipped = n, s.RecordsSkipped+skipped
		return err
	}
	return fmt.Errorf("unknown category %q", cat)
}

func (e *Engine) mergeSettings(ctx context.Context, incoming map[string]any, overwrite bool) (int, int, error) {
	if len(incoming) == 0 {
		return 0, 0, nil
	}
	existing, err := e.store.Settings(ctx)
	if err != nil {
		return 0, 0, err
	}

	write := make(map[string]any, len(incoming))
	skipped := 0
	for k, v := range incoming {
		if _, ok := existing[k]; ok && !overwrite {
			skipped++
			continue
		}
		write[k] = v
	}
	if len(write) == 0 {
		return 0, skipped, nil
	}
	if err := e.store.PutSettings(ctx, write); err != nil {
		return 0, skipped, err
	}
	return len(write), skipped, nil
}

// restoredEvent records what this restore wrote before the audit category.
// Its ID is derived from the backup so restoring the same backup again maps
// to the same event.
func (e *Engine) restoredEvent(doc *model.BackupDocument, s *model.RestoreSummary) model.AuditEvent {
	name := doc.Metadata.BackupID
	if name == "" {
		name, _ = backupID(doc)
	}
	return model.AuditEvent{
		ID:        uuid.NewSHA1(restoreEventSpace, []byte(name)).String(),
		Kind:      model.AuditKindBackupRestored,
		Message:   "wallet backup restored",
		Timestamp: e.now().UnixMilli(),
		Details: map[string]string{
			"backupId":     doc.Metadata.BackupID,
			"backupType":   string(doc.Metadata.BackupType),
			"wallets":      strconv.Itoa(s.WalletsRestored),
			"addresses":    strconv.Itoa(s.AddressesRestored),
			"settings":     strconv.Itoa(s.SettingsRestored),
			"transactions": strconv.Itoa(s.TransactionsRestored),
		},
	}
}

func (e *Engine) warnUnknownWallets(ctx context.Context, doc *model.BackupDocument) error {
	if len(doc.WatchedAddresses) == 0 {
		return nil
	}
	stored, err := e.store.Wallets(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(stored)+len(doc.Wallets))
	for _, w := range stored {
		known[w.Address] = struct{}{}
	}
	for _, w := range doc.Wallets {
		known[w.Address] = struct{}{}
	}
	for _, w := range doc.WatchedAddresses {
		if w.WalletAddress == "" {
			continue
		}
		if _, ok := known[w.WalletAddress]; !ok {
			e.logger.Warn("watched address references unknown wallet",
				zap.String("address", w.Address),
				zap.String("wallet", w.WalletAddress))
		}
	}
	return nil
}

// merge applies the conflict policy to one category and writes the result.
func merge[T any](
	ctx context.Context,
	list func(context.Context) ([]T, error),
	upsert func(context.Context, []T) error,
	incoming []T,
	key func(T) string,
	overwrite bool,
) (written, skipped int, err error) {
	write, skipped, err := plan(ctx, list, incoming, key, overwrite)
	if err != nil || len(write) == 0 {
		return 0, skipped, err
	}
	if err := upsert(ctx, write); err != nil {
		return 0, skipped, err
	}
	return len(write), skipped, nil
}

// plan returns the incoming records that survive the conflict policy.
// Incoming duplicates keep their first occurrence.
func plan[T any](
	ctx context.Context,
	list func(context.Context) ([]T, error),
	incoming []T,
	key func(T) string,
	overwrite bool,
) (write []T, skipped int, err error) {
	if len(incoming) == 0 {
		return nil, 0, nil
	}

	existing := map[string]struct{}{}
	if !overwrite {
		current, err := list(ctx)
		if err != nil {
			return nil, 0, err
		}
		for _, r := range current {
			existing[key(r)] = struct{}{}
		}
	}

	write = make([]T, 0, len(incoming))
	seen := make(map[string]struct{}, len(incoming))
	for _, r := range incoming {
		k := key(r)
		if _, dup := seen[k]; dup {
			skipped++
			continue
		}
		seen[k] = struct{}{}
		if _, ok := existing[k]; ok {
			skipped++
			continue
		}
		write = append(write, r)
	}
	return write, skipped, nil
}

func walletKey(w model.WalletRecord) string { return w.Address }
func contactKey(c model.ContactRecord) string { return c.Address }
func txKey(t model.TransactionRecord) string { return t.TxID }
func auditKey(a model.AuditEvent) string { return a.ID }
func watchedKey(w model.WatchedAddress) string { return w.Address }
