package model

// TransactionType transaction type
type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "DEBIT"
	TransactionTypeCredit TransactionType = "CREDIT"
)

// TransactionRecord is a cached wallet transaction, keyed by TxID.
type TransactionRecord struct {
	TxID          string          `json:"txid"`
	WalletAddress string          `json:"walletAddress"`
	Type          TransactionType `json:"type"`
	From          string          `json:"from,omitempty"`
	To            string          `json:"to,omitempty"`
	Amount        string          `json:"amount"` // AVN, 8 decimals
	Fee           string          `json:"fee,omitempty"`
	Timestamp     int64           `json:"timestamp"` // epoch ms
	BlockHeight   int64           `json:"blockHeight,omitempty"`
	Status        string          `json:"status,omitempty"`
}

// AuditEvent is one entry of the security audit log, keyed by ID.
type AuditEvent struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Message   string            `json:"message,omitempty"`
	Timestamp int64             `json:"timestamp"` // epoch ms
	Details   map[string]string `json:"details,omitempty"`
}

// Audit event kinds written by the backup pipeline.
const (
	AuditKindBackupCreated  = "backup.created"
	AuditKindBackupRestored = "backup.restored"
)
