package backup

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/tyler-smith/go-bip39"
	"go.uber.org/zap"

	"github.com/AlexZinkM/avian-backup/internal/common"
	"github.com/AlexZinkM/avian-backup/internal/crypto"
	"github.com/AlexZinkM/avian-backup/internal/model"
)

// Avian mainnet address version bytes.
const (
	PubKeyHashAddrID byte = 60  // 'R...'
	ScriptHashAddrID byte = 122 // 'r...'
)

// Validator checks parsed documents before they are restored.
type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger}
}

// Validate never fails: every problem found is reported in Errors.
// Only an unusable version stops the checks early.
func (v *Validator) Validate(doc *model.BackupDocument) model.ValidationResult {
	res := model.ValidationResult{Errors: []string{}}
	if doc == nil {
		res.Errors = append(res.Errors, "backup document is empty")
		return res
	}
	res.WalletsCount = len(doc.Wallets)
	res.AddressesCount = len(doc.AddressBook)

	if err := checkVersion(doc.Version); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("unsupported backup version %q", doc.Version))
		return res
	}

	if len(doc.Wallets) == 0 {
		res.Errors = append(res.Errors, "backup contains no wallets")
	}

	seen := make(map[string]int, len(doc.Wallets))
	for i, w := range doc.Wallets {
		if w.Address == "" {
			continue
		}
		if first, dup := seen[w.Address]; dup {
			res.Errors = append(res.Errors, fmt.Sprintf("wallet %d: duplicate address %s (also wallet %d)", i, w.Address, first))
			continue
		}
		seen[w.Address] = i
	}

	for i, w := range doc.Wallets {
		res.Errors = append(res.Errors, walletErrors(i, w)...)
	}

	for i, c := range doc.AddressBook {
		if c.Address == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("contact %d: missing address", i))
		} else if err := checkAddress(c.Address); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("contact %d: %v", i, err))
		}
	}

	for i, t := range doc.Transactions {
		if t.TxID == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("transaction %d: missing txid", i))
		}
		if _, err := common.AVNToSatoshis(t.Amount); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("transaction %d: bad amount %q", i, t.Amount))
		}
		if t.Fee != "" {
			if _, err := common.AVNToSatoshis(t.Fee); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("transaction %d: bad fee %q", i, t.Fee))
			}
		}
	}

	for i, e := range doc.SecurityAudit {
		if e.ID == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("audit event %d: missing id", i))
		}
	}

	for i, w := range doc.WatchedAddresses {
		if w.Address == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("watched address %d: missing address", i))
		}
	}

	res.IsValid = len(res.Errors) == 0
	if !res.IsValid {
		v.logger.Info("backup failed validation", zap.Int("problems", len(res.Errors)))
	}
	return res
}

func walletErrors(i int, w model.WalletRecord) []string {
	var out []string
	add := func(format string, args ...any) {
		out = append(out, fmt.Sprintf("wallet %d: ", i)+fmt.Sprintf(format, args...))
	}

	if w.Name == "" {
		add("missing name")
	}
	if w.Address == "" {
		add("missing address")
	} else if err := checkAddress(w.Address); err != nil {
		add("%v", err)
	}

	switch {
	case w.PrivateKey == "":
		add("missing private key")
	case w.IsEncrypted:
		if !crypto.IsSealedString(w.PrivateKey) {
			add("encrypted private key is not a readable container")
		}
	default:
		if !isPlainKey(w.PrivateKey) {
			add("private key is neither WIF nor hex")
		}
	}

	if w.Mnemonic != "" && !bip39.IsMnemonicValid(w.Mnemonic) {
		add("invalid mnemonic")
	}
	return out
}

func checkAddress(addr string) error {
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		if errors.Is(err, base58.ErrChecksum) {
			return fmt.Errorf("address %s has a bad checksum", addr)
		}
		return fmt.Errorf("address %s is not base58check", addr)
	}
	if len(payload) != 20 {
		return fmt.Errorf("address %s has a bad length", addr)
	}
	if version != PubKeyHashAddrID && version != ScriptHashAddrID {
		return fmt.Errorf("address %s is not an Avian address", addr)
	}
	return nil
}

func isPlainKey(k string) bool {
	if _, err := btcutil.DecodeWIF(k); err == nil {
		return true
	}
	if len(k) != 64 {
		return false
	}
	_, err := hex.DecodeString(k)
	return err == nil
}
