package backup

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/avian-backup/internal/model"
)

func TestValidate_FullDocument(t *testing.T) {
	res := NewValidator(nil).Validate(fullDocument(t))
	require.True(t, res.IsValid, res.Errors)
	require.Empty(t, res.Errors)
	require.Equal(t, 2, res.WalletsCount)
	require.Equal(t, 2, res.AddressesCount)
}

func TestValidate_NoWallets(t *testing.T) {
	doc := fullDocument(t)
	doc.Wallets = nil

	res := NewValidator(nil).Validate(doc)
	require.False(t, res.IsValid)
	require.NotEmpty(t, res.Errors)
	require.Contains(t, res.Errors, "backup contains no wallets")
}

func TestValidate_DuplicateAddress(t *testing.T) {
	doc := fullDocument(t)
	dup := doc.Wallets[0]
	dup.Name = "copy"
	doc.Wallets = append(doc.Wallets, dup)

	res := NewValidator(nil).Validate(doc)
	require.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0], "duplicate address")
}

func TestValidate_UnsupportedVersionStopsEarly(t *testing.T) {
	doc := fullDocument(t)
	doc.Version = "3.0.0"
	doc.Wallets = nil

	res := NewValidator(nil).Validate(doc)
	require.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
}

func TestValidate_Nil(t *testing.T) {
	res := NewValidator(nil).Validate(nil)
	require.False(t, res.IsValid)
	require.NotEmpty(t, res.Errors)
}

func TestValidate_WalletProblems(t *testing.T) {
	box := testBox(t)
	container, err := box.Encrypt(context.Background(), []byte(testWIF(3)), []byte("wallet-pass"))
	require.NoError(t, err)
	sealed := base64.StdEncoding.EncodeToString(container)

	badChecksum := base58.Encode(append([]byte{PubKeyHashAddrID}, bytes.Repeat([]byte{7}, 24)...))
	bitcoinAddr := base58.CheckEncode(bytes.Repeat([]byte{5}, 20), 0x00)
	shortHash := base58.CheckEncode(bytes.Repeat([]byte{5}, 19), PubKeyHashAddrID)
	scriptAddr := base58.CheckEncode(bytes.Repeat([]byte{5}, 20), ScriptHashAddrID)

	tests := []struct {
		name    string
		mutate  func(w *model.WalletRecord)
		wantErr string
	}{
		{"valid wif", func(w *model.WalletRecord) {}, ""},
		{"valid hex key", func(w *model.WalletRecord) { w.PrivateKey = string(bytes.Repeat([]byte("ab"), 32)) }, ""},
		{"valid script address", func(w *model.WalletRecord) { w.Address = scriptAddr }, ""},
		{"encrypted container", func(w *model.WalletRecord) { w.IsEncrypted, w.PrivateKey = true, sealed }, ""},
		{"hd mnemonic", func(w *model.WalletRecord) { w.Mnemonic = testMnemonic }, ""},
		{"missing name", func(w *model.WalletRecord) { w.Name = "" }, "missing name"},
		{"missing address", func(w *model.WalletRecord) { w.Address = "" }, "missing address"},
		{"bad checksum", func(w *model.WalletRecord) { w.Address = badChecksum }, "bad checksum"},
		{"foreign network", func(w *model.WalletRecord) { w.Address = bitcoinAddr }, "not an Avian address"},
		{"short hash", func(w *model.WalletRecord) { w.Address = shortHash }, "bad length"},
		{"not base58", func(w *model.WalletRecord) { w.Address = "R0OIl" }, "not base58check"},
		{"missing key", func(w *model.WalletRecord) { w.PrivateKey = "" }, "missing private key"},
		{"garbage key", func(w *model.WalletRecord) { w.PrivateKey = "not-a-key" }, "neither WIF nor hex"},
		{"encrypted without container", func(w *model.WalletRecord) { w.IsEncrypted = true }, "not a readable container"},
		{"bad mnemonic", func(w *model.WalletRecord) { w.Mnemonic = "abandon abandon abandon" }, "invalid mnemonic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testWallet(3, "w")
			tt.mutate(&w)
			doc := &model.BackupDocument{Version: model.CurrentBackupVersion, Wallets: []model.WalletRecord{w}}

			res := NewValidator(nil).Validate(doc)
			if tt.wantErr == "" {
				require.True(t, res.IsValid, res.Errors)
				return
			}
			require.False(t, res.IsValid)
			require.Len(t, res.Errors, 1, res.Errors)
			assert.Contains(t, res.Errors[0], "wallet 0: ")
			assert.Contains(t, res.Errors[0], tt.wantErr)
		})
	}
}

func TestValidate_AccumulatesAcrossCategories(t *testing.T) {
	doc := fullDocument(t)
	doc.AddressBook = append(doc.AddressBook, model.ContactRecord{Name: "nobody"})
	doc.Transactions[0].Amount = "1.123456789"
	doc.Transactions = append(doc.Transactions, model.TransactionRecord{Amount: "-3"})
	doc.WatchedAddresses = append(doc.WatchedAddresses, model.WatchedAddress{Label: "?"})
	doc.SecurityAudit = append(doc.SecurityAudit, model.AuditEvent{Kind: "x"})

	res := NewValidator(nil).Validate(doc)
	require.False(t, res.IsValid)
	require.ElementsMatch(t, []string{
		"contact 2: missing address",
		`transaction 0: bad amount "1.123456789"`,
		"transaction 1: missing txid",
		`transaction 1: bad amount "-3"`,
		"audit event 1: missing id",
		"watched address 1: missing address",
	}, res.Errors)
}
