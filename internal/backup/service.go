package backup

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AlexZinkM/avian-backup/internal/crypto"
	"github.com/AlexZinkM/avian-backup/internal/errs"
	"github.com/AlexZinkM/avian-backup/internal/model"
	"github.com/AlexZinkM/avian-backup/internal/qrchunk"
)

// Options tunes a Service.
type Options struct {
	AppVersion      string
	MaxChunkPayload int // fragment bytes per QR chunk; 0 means qrchunk.DefaultMaxChunkPayload
}

// ParseResult is a decoded and validated backup file.
type ParseResult struct {
	Document   *model.BackupDocument  `json:"document"`
	Validation model.ValidationResult `json:"validation"`
	Encrypted  bool                   `json:"encrypted"`
}

// Service is the entry point for creating, exporting, importing and
// restoring backups. Every failure it returns is an *errs.StageError.
type Service struct {
	store      Store
	box        *crypto.Box
	serializer *Serializer
	validator  *Validator
	engine     *Engine
	maxChunk   int
	logger     *zap.Logger
}

func NewService(store Store, box *crypto.Box, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		box:        box,
		serializer: NewSerializer(opts.AppVersion),
		validator:  NewValidator(logger.Named("validator")),
		engine:     NewEngine(store, logger.Named("restore")),
		maxChunk:   opts.MaxChunkPayload,
		logger:     logger,
	}
}

// Filename is the export file name for a backup of kind created at now.
func Filename(kind model.BackupType, now time.Time) string {
	return fmt.Sprintf("avian-backup-%s-%s.json", kind, now.Format(time.DateOnly))
}

// CreateBackup snapshots live storage into a new document.
func (s *Service) CreateBackup(ctx context.Context, kind model.BackupType) (*model.BackupDocument, error) {
	state, err := Snapshot(ctx, s.store)
	if err != nil {
		return nil, errs.AtStage(errs.StageCreate, fmt.Errorf("failed to read wallet state: %w", err))
	}
	doc, err := s.serializer.Serialize(state, kind)
	if err != nil {
		return nil, errs.AtStage(errs.StageCreate, err)
	}

	ev := model.AuditEvent{
		ID:        uuid.New().String(),
		Kind:      model.AuditKindBackupCreated,
		Message:   "wallet backup created",
		Timestamp: doc.Timestamp,
		Details: map[string]string{
			"backupId":   doc.Metadata.BackupID,
			"backupType": string(kind),
		},
	}
	if err := s.store.UpsertAuditEvents(ctx, []model.AuditEvent{ev}); err != nil {
		s.logger.Warn("failed to record backup audit event", zap.Error(err))
	}

	s.logger.Info("backup created",
		zap.String("backupId", doc.Metadata.BackupID),
		zap.String("type", string(kind)),
		zap.Int("wallets", len(doc.Wallets)))
	return doc, nil
}

// ExportBackup encodes doc, encrypting it when password is not empty.
func (s *Service) ExportBackup(ctx context.Context, doc *model.BackupDocument, password []byte) ([]byte, error) {
	if doc == nil {
		return nil, errs.AtStage(errs.StageExport, errors.New("nothing to export"))
	}
	plain, err := Marshal(doc)
	if err != nil {
		return nil, errs.AtStage(errs.StageExport, err)
	}
	if len(password) == 0 {
		return plain, nil
	}
	defer clear(plain)

	sealed, err := s.box.Encrypt(ctx, plain, password)
	if err != nil {
		return nil, errs.AtStage(errs.StageExport, err)
	}
	return sealed, nil
}

// ParseBackupFile decodes exported bytes, decrypting when they carry the
// encrypted container, and validates the document.
//
// Failures are classified: errs.ErrRequiresPassword when the file is
// encrypted and no password was given, errs.ErrDecryptionFailed for a wrong
// password or damaged container, errs.ErrCorrupt when the bytes are neither a
// document nor a container, errs.ErrUnsupportedVersion, and
// *errs.ValidationError when the document fails validation.
func (s *Service) ParseBackupFile(ctx context.Context, data, password []byte) (*ParseResult, error) {
	plain := data
	encrypted := crypto.IsEncrypted(data)
	if encrypted {
		if len(password) == 0 {
			return nil, errs.AtStage(errs.StageDecrypt, errs.ErrRequiresPassword)
		}
		var err error
		plain, err = s.box.Decrypt(ctx, data, password)
		if err != nil {
			return nil, errs.AtStage(errs.StageDecrypt, err)
		}
		defer clear(plain)
	}

	doc, err := Deserialize(plain)
	switch {
	case errors.Is(err, errs.ErrMalformedDocument):
		return nil, errs.AtStage(errs.StageParse, fmt.Errorf("%w: %w", errs.ErrCorrupt, err))
	case err != nil:
		return nil, errs.AtStage(errs.StageParse, err)
	}

	res := s.validator.Validate(doc)
	if !res.IsValid {
		return nil, errs.AtStage(errs.StageValidate, &errs.ValidationError{Reasons: res.Errors})
	}

	s.logger.Info("backup parsed",
		zap.String("backupId", doc.Metadata.BackupID),
		zap.Bool("encrypted", encrypted),
		zap.Int("wallets", res.WalletsCount))
	return &ParseResult{Document: doc, Validation: res, Encrypted: encrypted}, nil
}

// SplitForTransfer encodes exported bytes as QR chunk strings.
func (s *Service) SplitForTransfer(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, errs.AtStage(errs.StageExport, errors.New("nothing to transfer"))
	}
	chunks, err := qrchunk.Split(base64.StdEncoding.EncodeToString(data), s.maxChunk)
	if err != nil {
		return nil, errs.AtStage(errs.StageExport, err)
	}
	return chunks, nil
}

// CombineFromTransfer reassembles scanned chunk strings into exported bytes.
func (s *Service) CombineFromTransfer(chunks []string) ([]byte, error) {
	payload, err := qrchunk.Assemble(chunks)
	if err != nil {
		return nil, errs.AtStage(errs.StageAssemble, err)
	}
	return DecodePayload(payload)
}

// DecodePayload turns an assembled transfer payload back into exported bytes.
func DecodePayload(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, errs.AtStage(errs.StageAssemble, fmt.Errorf("%w: payload is not base64", errs.ErrMalformedChunk))
	}
	return data, nil
}

// RestoreFromBackup validates doc and merges it into live storage.
// On a storage failure the returned summary lists what completed.
func (s *Service) RestoreFromBackup(ctx context.Context, doc *model.BackupDocument, opts model.RestoreOptions, onProgress ProgressFunc) (model.RestoreSummary, error) {
	if res := s.validator.Validate(doc); !res.IsValid {
		return model.RestoreSummary{}, errs.AtStage(errs.StageValidate, &errs.ValidationError{Reasons: res.Errors})
	}
	summary, err := s.engine.Restore(ctx, doc, opts, onProgress)
	if err != nil {
		return summary, errs.AtStage(errs.StageRestore, err)
	}
	return summary, nil
}

// Rekey re-encrypts an exported backup under a new password.
func (s *Service) Rekey(ctx context.Context, data, oldPassword, newPassword []byte) ([]byte, error) {
	if len(newPassword) == 0 {
		return nil, errs.AtStage(errs.StageExport, errors.New("new password is empty"))
	}
	if len(oldPassword) == 0 {
		return nil, errs.AtStage(errs.StageDecrypt, errs.ErrRequiresPassword)
	}

	// Decrypt using old password
	plain, err := s.box.Decrypt(ctx, data, oldPassword)
	if err != nil {
		return nil, errs.AtStage(errs.StageDecrypt, err)
	}
	defer clear(plain)

	if _, err := Deserialize(plain); err != nil {
		return nil, errs.AtStage(errs.StageParse, err)
	}

	// Encrypt using new password
	sealed, err := s.box.Encrypt(ctx, plain, newPassword)
	if err != nil {
		return nil, errs.AtStage(errs.StageExport, err)
	}
	return sealed, nil
}
