// Package backup turns live wallet state into backup documents and back:
// serialization, validation, the restore merge and the import flow.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"

	"github.com/AlexZinkM/avian-backup/internal/errs"
	"github.com/AlexZinkM/avian-backup/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// backupIDSpace namespaces the name-based backup IDs.
var backupIDSpace = uuid.MustParse("6f1d7b3e-5c0a-4d0e-9f43-8a1e2b7c9d10")

// WalletState is everything a backup can carry, as read from storage.
type WalletState struct {
	Wallets          []model.WalletRecord
	AddressBook      []model.ContactRecord
	Settings         map[string]any
	Transactions     []model.TransactionRecord
	SecurityAudit    []model.AuditEvent
	WatchedAddresses []model.WatchedAddress
}

// StateReader enumerates live wallet state.
type StateReader interface {
	Wallets(ctx context.Context) ([]model.WalletRecord, error)
	Contacts(ctx context.Context) ([]model.ContactRecord, error)
	Settings(ctx context.Context) (map[string]any, error)
	Transactions(ctx context.Context) ([]model.TransactionRecord, error)
	AuditEvents(ctx context.Context) ([]model.AuditEvent, error)
	WatchedAddresses(ctx context.Context) ([]model.WatchedAddress, error)
}

// Snapshot reads the complete wallet state from r.
func Snapshot(ctx context.Context, r StateReader) (WalletState, error) {
	var (
		s   WalletState
		err error
	)
	if s.Wallets, err = r.Wallets(ctx); err != nil {
		return WalletState{}, err
	}
	if s.AddressBook, err = r.Contacts(ctx); err != nil {
		return WalletState{}, err
	}
	if s.Settings, err = r.Settings(ctx); err != nil {
		return WalletState{}, err
	}
	if s.Transactions, err = r.Transactions(ctx); err != nil {
		return WalletState{}, err
	}
	if s.SecurityAudit, err = r.AuditEvents(ctx); err != nil {
		return WalletState{}, err
	}
	if s.WatchedAddresses, err = r.WatchedAddresses(ctx); err != nil {
		return WalletState{}, err
	}
	return s, nil
}

// Serializer builds backup documents.
type Serializer struct {
	appVersion string
	now        func() time.Time
}

// NewSerializer stamps documents with appVersion.
func NewSerializer(appVersion string) *Serializer {
	return &Serializer{appVersion: appVersion, now: time.Now}
}

// Serialize builds a document of the given kind from state. The result does
// not share slices or maps with state. Two calls with identical input and
// clock produce identical documents.
func (s *Serializer) Serialize(state WalletState, kind model.BackupType) (*model.BackupDocument, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown backup type %q", kind)
	}

	doc := &model.BackupDocument{
		Version:     model.CurrentBackupVersion,
		Timestamp:   s.now().UnixMilli(),
		Wallets:     nonNil(slices.Clone(state.Wallets)),
		AddressBook: []model.ContactRecord{},
		Metadata: model.BackupMetadata{
			BackupType:  kind,
			AppVersion:  s.appVersion,
			WalletCount: len(state.Wallets),
		},
	}

	if kind == model.BackupTypeFull {
		doc.AddressBook = nonNil(slices.Clone(state.AddressBook))
		if len(state.Settings) > 0 {
			doc.Settings = maps.Clone(state.Settings)
		}
		doc.Transactions = emptyToNil(slices.Clone(state.Transactions))
		doc.SecurityAudit = emptyToNil(slices.Clone(state.SecurityAudit))
		doc.WatchedAddresses = emptyToNil(slices.Clone(state.WatchedAddresses))
	}

	id, err := backupID(doc)
	if err != nil {
		return nil, err
	}
	doc.Metadata.BackupID = id
	return doc, nil
}

// backupID names the document by its content, so it is stable for a given
// state and timestamp.
func backupID(doc *model.BackupDocument) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}
	return uuid.NewSHA1(backupIDSpace, b).String(), nil
}

// Marshal encodes doc as indented UTF-8 JSON.
func Marshal(doc *model.BackupDocument) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return b, nil
}

// Deserialize parses a plaintext backup document.
// It fails with errs.ErrMalformedDocument when b is not a JSON object with a
// version, and with errs.ErrUnsupportedVersion when the version is unknown.
func Deserialize(b []byte) (*model.BackupDocument, error) {
	b = bytes.TrimPrefix(b, utf8BOM)
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", errs.ErrMalformedDocument)
	}

	var doc model.BackupDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedDocument, err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("%w: missing version", errs.ErrMalformedDocument)
	}
	if err := checkVersion(doc.Version); err != nil {
		return nil, err
	}

	// 0.9.x documents predate metadata
	if doc.Metadata.BackupType == "" {
		doc.Metadata.BackupType = model.BackupTypeFull
	}
	if doc.Wallets == nil {
		doc.Wallets = []model.WalletRecord{}
	}
	if doc.AddressBook == nil {
		doc.AddressBook = []model.ContactRecord{}
	}
	return &doc, nil
}

// checkVersion accepts any 1.x release and the 0.9 legacy line.
func checkVersion(v string) error {
	sv := "v" + strings.TrimPrefix(v, "v")
	if !semver.IsValid(sv) {
		return fmt.Errorf("%w: %q", errs.ErrUnsupportedVersion, v)
	}
	if semver.Major(sv) == "v1" || semver.MajorMinor(sv) == "v0.9" {
		return nil
	}
	return fmt.Errorf("%w: %q", errs.ErrUnsupportedVersion, v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func emptyToNil[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
