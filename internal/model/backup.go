package model

// BackupType selects what a backup document carries.
type BackupType string

const (
	BackupTypeFull        BackupType = "full"
	BackupTypeWalletsOnly BackupType = "wallets-only"
)

// Valid reports whether t is a known backup type.
func (t BackupType) Valid() bool {
	return t == BackupTypeFull || t == BackupTypeWalletsOnly
}

// CurrentBackupVersion is written into every new document.
const CurrentBackupVersion = "1.0.0"

// BackupMetadata describes how a document was produced.
type BackupMetadata struct {
	BackupType  BackupType `json:"backupType"`
	BackupID    string     `json:"backupId,omitempty"`
	AppVersion  string     `json:"appVersion,omitempty"`
	WalletCount int        `json:"walletCount"`
}

// BackupDocument is the canonical exchange format.
// Settings and the auxiliary categories are only populated for full backups.
type BackupDocument struct {
	Version          string              `json:"version"`
	Timestamp        int64               `json:"timestamp"` // epoch ms
	Metadata         BackupMetadata      `json:"metadata"`
	Wallets          []WalletRecord      `json:"wallets"`
	AddressBook      []ContactRecord     `json:"addressBook"`
	Settings         map[string]any      `json:"settings,omitempty"`
	Transactions     []TransactionRecord `json:"transactions,omitempty"`
	SecurityAudit    []AuditEvent        `json:"securityAudit,omitempty"`
	WatchedAddresses []WatchedAddress    `json:"watchedAddresses,omitempty"`
}
