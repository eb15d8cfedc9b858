package backup

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/avian-backup/internal/crypto"
	"github.com/AlexZinkM/avian-backup/internal/model"
	"github.com/AlexZinkM/avian-backup/internal/storage"
	"github.com/AlexZinkM/avian-backup/internal/storage/memory"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var fixedNow = time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC)

func testAddress(b byte) string {
	return base58.CheckEncode(bytes.Repeat([]byte{b}, 20), PubKeyHashAddrID)
}

func testWIF(b byte) string {
	return base58.CheckEncode(append(bytes.Repeat([]byte{b}, 32), 0x01), 0x80)
}

func testWallet(b byte, name string) model.WalletRecord {
	return model.WalletRecord{
		Name:         name,
		Address:      testAddress(b),
		PrivateKey:   testWIF(b),
		CreatedAt:    fixedNow.Add(-48 * time.Hour).UnixMilli(),
		LastAccessed: fixedNow.UnixMilli(),
	}
}

func fullState() WalletState {
	hd := testWallet(2, "savings")
	hd.Mnemonic = testMnemonic
	return WalletState{
		Wallets: []model.WalletRecord{testWallet(1, "main"), hd},
		AddressBook: []model.ContactRecord{
			{Name: "alice", Address: testAddress(10), Label: "friend"},
			{Name: "exchange", Address: testAddress(11)},
		},
		Settings: map[string]any{
			"theme":         "dark",
			"lockMinutes":   float64(15),
			"notifications": true,
			"currency":      "USD",
		},
		Transactions: []model.TransactionRecord{{
			TxID:          "aa01",
			WalletAddress: testAddress(1),
			Type:          model.TransactionTypeCredit,
			From:          testAddress(10),
			To:            testAddress(1),
			Amount:        "12.5",
			Fee:           "0.0001",
			Timestamp:     fixedNow.Add(-time.Hour).UnixMilli(),
			BlockHeight:   120034,
			Status:        "confirmed",
		}},
		SecurityAudit: []model.AuditEvent{{
			ID:        "ev-1",
			Kind:      "wallet.unlocked",
			Timestamp: fixedNow.Add(-2 * time.Hour).UnixMilli(),
		}},
		WatchedAddresses: []model.WatchedAddress{{
			Address:       testAddress(20),
			Label:         "cold storage",
			WalletAddress: testAddress(1),
			AddedAt:       fixedNow.Add(-24 * time.Hour).UnixMilli(),
		}},
	}
}

func testSerializer() *Serializer {
	s := NewSerializer("test")
	s.now = func() time.Time { return fixedNow }
	return s
}

func fullDocument(t *testing.T) *model.BackupDocument {
	t.Helper()
	doc, err := testSerializer().Serialize(fullState(), model.BackupTypeFull)
	require.NoError(t, err)
	return doc
}

func newStore() *storage.Store {
	return storage.New(memory.New(), nil)
}

func seed(t *testing.T, s Store, state WalletState) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertWallets(ctx, state.Wallets))
	require.NoError(t, s.UpsertContacts(ctx, state.AddressBook))
	require.NoError(t, s.PutSettings(ctx, state.Settings))
	require.NoError(t, s.UpsertTransactions(ctx, state.Transactions))
	require.NoError(t, s.UpsertAuditEvents(ctx, state.SecurityAudit))
	require.NoError(t, s.UpsertWatchedAddresses(ctx, state.WatchedAddresses))
}

func snapshot(t *testing.T, s Store) WalletState {
	t.Helper()
	st, err := Snapshot(context.Background(), s)
	require.NoError(t, err)
	return st
}

func testBox(t *testing.T) *crypto.Box {
	t.Helper()
	box, err := crypto.NewBox(crypto.Params{LogN: 10, R: 8, P: 1})
	require.NoError(t, err)
	return box
}

var errDiskFull = errors.New("disk full")

// failingStore fails writes of one category.
type failingStore struct {
	*storage.Store
	failOn model.Category
}

func (f failingStore) UpsertContacts(ctx context.Context, cs []model.ContactRecord) error {
	if f.failOn == model.CategoryAddressBook {
		return errDiskFull
	}
	return f.Store.UpsertContacts(ctx, cs)
}

func (f failingStore) PutSettings(ctx context.Context, settings map[string]any) error {
	if f.failOn == model.CategorySettings {
		return errDiskFull
	}
	return f.Store.PutSettings(ctx, settings)
}
