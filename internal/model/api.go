package model

// Binary payloads (exported backup bytes, PNG images) travel as standard
// base64 strings.

// CreateBackupRequest is the body of POST /backup/create.
type CreateBackupRequest struct {
	BackupType BackupType `json:"backupType" example:"full"`
	Password   string     `json:"password,omitempty"`
}

// CreateBackupResponse carries the exported file.
type CreateBackupResponse struct {
	Filename    string `json:"filename" example:"avian-backup-full-2024-03-09.json"`
	BackupID    string `json:"backupId"`
	WalletCount int    `json:"walletCount"`
	Encrypted   bool   `json:"encrypted"`
	Data        string `json:"data"`
}

// ParseBackupRequest is the body of POST /backup/parse.
type ParseBackupRequest struct {
	Data     string `json:"data"`
	Password string `json:"password,omitempty"`
}

// ParseBackupResponse previews a parsed backup.
type ParseBackupResponse struct {
	Document   *BackupDocument  `json:"document"`
	Validation ValidationResult `json:"validation"`
	Encrypted  bool             `json:"encrypted"`
}

// RestoreRequest is the body of POST /backup/restore and the first message
// on /backup/restore/ws. Nil Options means DefaultRestoreOptions.
type RestoreRequest struct {
	Data     string          `json:"data"`
	Password string          `json:"password,omitempty"`
	Options  *RestoreOptions `json:"options,omitempty"`
}

// RestoreResponse reports a finished or partially finished restore.
type RestoreResponse struct {
	Summary RestoreSummary `json:"summary"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
}

// RestoreProgressMessage is streamed over /backup/restore/ws.
// The last message has Done set.
type RestoreProgressMessage struct {
	Step    string          `json:"step,omitempty"`
	Percent int             `json:"percent"`
	Done    bool            `json:"done"`
	Summary *RestoreSummary `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// SplitRequest is the body of POST /backup/qr/split and /backup/qr/png.
type SplitRequest struct {
	Data string `json:"data"`
	Size int    `json:"size,omitempty"` // PNG edge in pixels, /backup/qr/png only
}

// SplitResponse lists QR chunk strings in index order.
type SplitResponse struct {
	Chunks []string `json:"chunks"`
	Count  int      `json:"count"`
}

// QRImagesResponse lists rendered chunks with their base64 PNG images.
type QRImagesResponse struct {
	Chunks []string `json:"chunks"`
	Images []string `json:"images"`
}

// CombineRequest is the body of POST /backup/qr/combine.
type CombineRequest struct {
	Chunks []string `json:"chunks"`
}

// CombineResponse carries the reassembled exported bytes.
type CombineResponse struct {
	Data      string `json:"data"`
	Encrypted bool   `json:"encrypted"`
}
