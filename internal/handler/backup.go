package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/AlexZinkM/avian-backup/internal/backup"
	"github.com/AlexZinkM/avian-backup/internal/crypto"
	"github.com/AlexZinkM/avian-backup/internal/errs"
	"github.com/AlexZinkM/avian-backup/internal/model"
	"github.com/AlexZinkM/avian-backup/internal/qrchunk"
)

// maxBodyBytes bounds request bodies; a backup with thousands of
// transactions stays well below it.
const maxBodyBytes = 16 << 20

// BackupHandler serves the backup endpoints.
type BackupHandler struct {
	svc     *backup.Service
	pngSize int
	logger  *zap.Logger
}

// NewBackupHandler creates a new BackupHandler
func NewBackupHandler(svc *backup.Service, pngSize int, logger *zap.Logger) *BackupHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupHandler{svc: svc, pngSize: pngSize, logger: logger}
}

// Create handles POST /backup/create
// @Summary      Create backup
// @Description  Snapshots wallet storage into a backup file, encrypted when a password is given
// @Tags         backup
// @Accept       json
// @Produce      json
// @Param        request  body      model.CreateBackupRequest  true  "Backup kind and optional password"
// @Success      200      {object}  model.CreateBackupResponse
// @Failure      400      {object}  model.ErrorResponse
// @Router       /backup/create [post]
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreateBackupRequest
	if !decode(w, r, &req) {
		return
	}
	if req.BackupType == "" {
		req.BackupType = model.BackupTypeFull
	}

	password := []byte(req.Password)
	defer clear(password)

	doc, err := h.svc.CreateBackup(r.Context(), req.BackupType)
	if err != nil {
		h.fail(w, err)
		return
	}
	data, err := h.svc.ExportBackup(r.Context(), doc, password)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.CreateBackupResponse{
		Filename:    backup.Filename(req.BackupType, time.UnixMilli(doc.Timestamp)),
		BackupID:    doc.Metadata.BackupID,
		WalletCount: len(doc.Wallets),
		Encrypted:   len(password) > 0,
		Data:        base64.StdEncoding.EncodeToString(data),
	})
}

// Parse handles POST /backup/parse
// @Summary      Parse backup
// @Description  Decodes, decrypts when needed and validates a backup file without restoring it
// @Tags         backup
// @Accept       json
// @Produce      json
// @Param        request  body      model.ParseBackupRequest  true  "Base64 backup file and optional password"
// @Success      200      {object}  model.ParseBackupResponse
// @Failure      401      {object}  model.ErrorResponse  "Password required"
// @Failure      422      {object}  model.ErrorResponse  "Wrong password, unsupported version or invalid backup"
// @Router       /backup/parse [post]
func (h *BackupHandler) Parse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.ParseBackupRequest
	if !decode(w, r, &req) {
		return
	}
	data, ok := decodeData(w, req.Data)
	if !ok {
		return
	}

	password := []byte(req.Password)
	defer clear(password)

	res, err := h.svc.ParseBackupFile(r.Context(), data, password)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ParseBackupResponse{
		Document:   res.Document,
		Validation: res.Validation,
		Encrypted:  res.Encrypted,
	})
}

// Restore handles POST /backup/restore
// @Summary      Restore backup
// @Description  Parses a backup file and merges it into wallet storage
// @Tags         backup
// @Accept       json
// @Produce      json
// @Param        request  body      model.RestoreRequest  true  "Base64 backup file, password and restore options"
// @Success      200      {object}  model.RestoreResponse
// @Failure      409      {object}  model.ErrorResponse  "Another restore is running"
// @Failure      500      {object}  model.RestoreResponse  "Storage failed; summary lists completed categories"
// @Router       /backup/restore [post]
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.RestoreRequest
	if !decode(w, r, &req) {
		return
	}
	data, ok := decodeData(w, req.Data)
	if !ok {
		return
	}

	password := []byte(req.Password)
	defer clear(password)

	res, err := h.svc.ParseBackupFile(r.Context(), data, password)
	if err != nil {
		h.fail(w, err)
		return
	}

	summary, err := h.svc.RestoreFromBackup(r.Context(), res.Document, restoreOptions(req.Options), nil)
	if errors.Is(err, errs.ErrStorageWriteFailed) {
		h.logger.Error("restore partially failed", zap.Error(err))
		status, code := classify(err)
		writeJSON(w, status, model.RestoreResponse{Summary: summary, Error: err.Error(), Code: code})
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.RestoreResponse{Summary: summary})
}

// Split handles POST /backup/qr/split
// @Summary      Split backup into QR chunks
// @Description  Encodes a backup file as QR chunk strings in index order
// @Tags         qr
// @Accept       json
// @Produce      json
// @Param        request  body      model.SplitRequest  true  "Base64 backup file"
// @Success      200      {object}  model.SplitResponse
// @Router       /backup/qr/split [post]
func (h *BackupHandler) Split(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.SplitRequest
	if !decode(w, r, &req) {
		return
	}
	data, ok := decodeData(w, req.Data)
	if !ok {
		return
	}

	chunks, err := h.svc.SplitForTransfer(data)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SplitResponse{Chunks: chunks, Count: len(chunks)})
}

// QRCodes handles POST /backup/qr/png
// @Summary      Render backup as QR codes
// @Description  Splits a backup file and renders every chunk as a base64 PNG QR code (level M)
// @Tags         qr
// @Accept       json
// @Produce      json
// @Param        request  body      model.SplitRequest  true  "Base64 backup file and optional PNG size"
// @Success      200      {object}  model.QRImagesResponse
// @Router       /backup/qr/png [post]
func (h *BackupHandler) QRCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.SplitRequest
	if !decode(w, r, &req) {
		return
	}
	data, ok := decodeData(w, req.Data)
	if !ok {
		return
	}

	chunks, err := h.svc.SplitForTransfer(data)
	if err != nil {
		h.fail(w, err)
		return
	}
	size := req.Size
	if size <= 0 {
		size = h.pngSize
	}
	images, err := qrchunk.RenderAllBase64(r.Context(), chunks, size)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.QRImagesResponse{Chunks: chunks, Images: images})
}

// Combine handles POST /backup/qr/combine
// @Summary      Reassemble QR chunks
// @Description  Reassembles scanned chunk strings (any order, duplicates allowed) into the backup file
// @Tags         qr
// @Accept       json
// @Produce      json
// @Param        request  body      model.CombineRequest  true  "Scanned chunk strings"
// @Success      200      {object}  model.CombineResponse
// @Failure      409      {object}  model.ErrorResponse  "Chunks from different backups"
// @Failure      422      {object}  model.ErrorResponse  "Chunks missing"
// @Router       /backup/qr/combine [post]
func (h *BackupHandler) Combine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.CombineRequest
	if !decode(w, r, &req) {
		return
	}

	data, err := h.svc.CombineFromTransfer(req.Chunks)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.CombineResponse{
		Data:      base64.StdEncoding.EncodeToString(data),
		Encrypted: crypto.IsEncrypted(data),
	})
}

func restoreOptions(o *model.RestoreOptions) model.RestoreOptions {
	if o == nil {
		return model.DefaultRestoreOptions()
	}
	return *o
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
		return false
	}
	return true
}

func decodeData(w http.ResponseWriter, s string) ([]byte, bool) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "data must be a non-empty base64 string", Code: "BAD_REQUEST"})
		return nil, false
	}
	return data, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *BackupHandler) fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	resp := model.ErrorResponse{Error: err.Error(), Code: code}
	if stage, ok := errs.StageOf(err); ok {
		resp.Stage = string(stage)
	}
	var verr *errs.ValidationError
	if errors.As(err, &verr) {
		resp.Reasons = verr.Reasons
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, resp)
}

// classify maps a failure to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrRequiresPassword):
		return http.StatusUnauthorized, "REQUIRES_PASSWORD"
	case errors.Is(err, errs.ErrDecryptionFailed):
		return http.StatusUnprocessableEntity, "DECRYPTION_FAILED"
	case errors.Is(err, errs.ErrNotEncrypted):
		return http.StatusBadRequest, "NOT_ENCRYPTED"
	case errors.Is(err, errs.ErrCorrupt), errors.Is(err, errs.ErrMalformedDocument):
		return http.StatusBadRequest, "CORRUPT"
	case errors.Is(err, errs.ErrUnsupportedVersion):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_VERSION"
	case errors.Is(err, errs.ErrValidationFailed):
		return http.StatusUnprocessableEntity, "VALIDATION_FAILED"
	case errors.Is(err, errs.ErrIncompleteChunkSet):
		return http.StatusUnprocessableEntity, "INCOMPLETE_CHUNK_SET"
	case errors.Is(err, errs.ErrChunkIndexConflict):
		return http.StatusConflict, "CHUNK_INDEX_CONFLICT"
	case errors.Is(err, errs.ErrMalformedChunk):
		return http.StatusBadRequest, "MALFORMED_CHUNK"
	case errors.Is(err, errs.ErrRestoreInProgress):
		return http.StatusConflict, "RESTORE_IN_PROGRESS"
	case errors.Is(err, errs.ErrStorageWriteFailed):
		return http.StatusInternalServerError, "STORAGE_WRITE_FAILED"
	}
	var se *errs.StageError
	if errors.As(err, &se) && (se.Stage == errs.StageCreate || se.Stage == errs.StageExport) {
		return http.StatusBadRequest, "BAD_REQUEST"
	}
	return http.StatusInternalServerError, "INTERNAL"
}
