package model

import "encoding/json"

// Category is one restorable slice of wallet state.
type Category string

const (
	CategoryWallets          Category = "wallets"
	CategoryAddressBook      Category = "addressBook"
	CategorySettings         Category = "settings"
	CategoryTransactions     Category = "transactions"
	CategorySecurityAudit    Category = "securityAudit"
	CategoryWatchedAddresses Category = "watchedAddresses"
)

// RestoreOrder is the fixed order categories are written in.
// Watched addresses come last because they may reference wallets.
var RestoreOrder = []Category{
	CategoryWallets,
	CategoryAddressBook,
	CategorySettings,
	CategoryTransactions,
	CategorySecurityAudit,
	CategoryWatchedAddresses,
}

// RestoreOptions controls which categories are merged and how conflicts resolve.
// With OverwriteExisting=false a record whose natural key already exists locally
// is skipped; with true the incoming record replaces it entirely.
type RestoreOptions struct {
	IncludeWallets          bool `json:"includeWallets"`
	IncludeAddressBook      bool `json:"includeAddressBook"`
	IncludeSettings         bool `json:"includeSettings"`
	IncludeTransactions     bool `json:"includeTransactions"`
	IncludeSecurityAudit    bool `json:"includeSecurityAudit"`
	IncludeWatchedAddresses bool `json:"includeWatchedAddresses"`
	OverwriteExisting       bool `json:"overwriteExisting"`
}

// DefaultRestoreOptions includes every category and never overwrites.
func DefaultRestoreOptions() RestoreOptions {
	return RestoreOptions{
		IncludeWallets:          true,
		IncludeAddressBook:      true,
		IncludeSettings:         true,
		IncludeTransactions:     true,
		IncludeSecurityAudit:    true,
		IncludeWatchedAddresses: true,
	}
}

// UnmarshalJSON starts from DefaultRestoreOptions, so flags missing from
// the input keep their defaults.
func (o *RestoreOptions) UnmarshalJSON(data []byte) error {
	type plain RestoreOptions
	p := plain(DefaultRestoreOptions())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = RestoreOptions(p)
	return nil
}

// Includes reports whether category c is enabled.
func (o RestoreOptions) Includes(c Category) bool {
	switch c {
	case CategoryWallets:
		return o.IncludeWallets
	case CategoryAddressBook:
		return o.IncludeAddressBook
	case CategorySettings:
		return o.IncludeSettings
	case CategoryTransactions:
		return o.IncludeTransactions
	case CategorySecurityAudit:
		return o.IncludeSecurityAudit
	case CategoryWatchedAddresses:
		return o.IncludeWatchedAddresses
	}
	return false
}

// RestoreSummary reports what a restore changed.
// Partial is set when a storage failure stopped the restore before every
// enabled category was processed; Failed names that category.
type RestoreSummary struct {
	WalletsRestored      int        `json:"walletsRestored"`
	AddressesRestored    int        `json:"addressesRestored"`
	SettingsRestored     int        `json:"settingsRestored"`
	TransactionsRestored int        `json:"transactionsRestored"`
	AuditEventsRestored  int        `json:"auditEventsRestored"`
	WatchedRestored      int        `json:"watchedRestored"`
	RecordsSkipped       int        `json:"recordsSkipped"`
	Completed            []Category `json:"completed"`
	Skipped              []Category `json:"skipped,omitempty"`
	Failed               Category   `json:"failed,omitempty"`
	Partial              bool       `json:"partial"`
}

// ValidationResult is the outcome of validating a parsed document.
type ValidationResult struct {
	IsValid        bool     `json:"isValid"`
	Errors         []string `json:"errors"`
	WalletsCount   int      `json:"walletsCount"`
	AddressesCount int      `json:"addressesCount"`
}
