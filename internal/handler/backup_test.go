package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/avian-backup/internal/backup"
	"github.com/AlexZinkM/avian-backup/internal/crypto"
	"github.com/AlexZinkM/avian-backup/internal/errs"
	"github.com/AlexZinkM/avian-backup/internal/model"
	"github.com/AlexZinkM/avian-backup/internal/storage"
	"github.com/AlexZinkM/avian-backup/internal/storage/memory"
)

func testHandler(t *testing.T, wallets ...model.WalletRecord) (*BackupHandler, *storage.Store) {
	t.Helper()
	box, err := crypto.NewBox(crypto.Params{LogN: 10, R: 8, P: 1})
	require.NoError(t, err)

	store := storage.New(memory.New(), nil)
	if len(wallets) > 0 {
		require.NoError(t, store.UpsertWallets(context.Background(), wallets))
	}
	svc := backup.NewService(store, box, backup.Options{AppVersion: "test", MaxChunkPayload: 120}, nil)
	return NewBackupHandler(svc, 128, nil), store
}

func wallet(b byte, name string) model.WalletRecord {
	return model.WalletRecord{
		Name:       name,
		Address:    base58.CheckEncode(bytes.Repeat([]byte{b}, 20), backup.PubKeyHashAddrID),
		PrivateKey: base58.CheckEncode(append(bytes.Repeat([]byte{b}, 32), 0x01), 0x80),
		CreatedAt:  1710000000000,
	}
}

func do(t *testing.T, hf http.HandlerFunc, method string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/", &buf)
	rec := httptest.NewRecorder()
	hf(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func createBackup(t *testing.T, h *BackupHandler, password string) model.CreateBackupResponse {
	t.Helper()
	rec := do(t, h.Create, http.MethodPost, model.CreateBackupRequest{Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[model.CreateBackupResponse](t, rec)
}

func TestCreate(t *testing.T) {
	h, _ := testHandler(t, wallet(1, "main"), wallet(2, "savings"))

	resp := createBackup(t, h, "")
	assert.Equal(t, 2, resp.WalletCount)
	assert.False(t, resp.Encrypted)
	assert.NotEmpty(t, resp.BackupID)
	assert.True(t, strings.HasPrefix(resp.Filename, "avian-backup-full-"))

	data, err := base64.StdEncoding.DecodeString(resp.Data)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), data[0])

	sealed := createBackup(t, h, "hunter2")
	assert.True(t, sealed.Encrypted)
	data, err = base64.StdEncoding.DecodeString(sealed.Data)
	require.NoError(t, err)
	assert.True(t, crypto.IsEncrypted(data))
}

func TestCreate_UnknownKind(t *testing.T) {
	h, _ := testHandler(t, wallet(1, "main"))

	rec := do(t, h.Create, http.MethodPost, model.CreateBackupRequest{BackupType: "partial"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[model.ErrorResponse](t, rec)
	assert.Equal(t, "BAD_REQUEST", resp.Code)
	assert.Equal(t, string(errs.StageCreate), resp.Stage)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := testHandler(t)
	for name, hf := range map[string]http.HandlerFunc{
		"create":  h.Create,
		"parse":   h.Parse,
		"restore": h.Restore,
		"split":   h.Split,
		"png":     h.QRCodes,
		"combine": h.Combine,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, hf, http.MethodGet, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestBadRequests(t *testing.T) {
	h, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Parse(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h.Parse, http.MethodPost, model.ParseBackupRequest{Data: "%%%"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decodeBody[model.ErrorResponse](t, rec).Code)

	rec = do(t, h.Split, http.MethodPost, model.SplitRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParse_PasswordHandling(t *testing.T) {
	h, _ := testHandler(t, wallet(1, "main"))
	sealed := createBackup(t, h, "hunter2")

	tests := []struct {
		name     string
		password string
		status   int
		code     string
		stage    errs.Stage
	}{
		{"no password", "", http.StatusUnauthorized, "REQUIRES_PASSWORD", errs.StageDecrypt},
		{"wrong password", "hunter3", http.StatusUnprocessableEntity, "DECRYPTION_FAILED", errs.StageDecrypt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h.Parse, http.MethodPost, model.ParseBackupRequest{Data: sealed.Data, Password: tt.password})
			require.Equal(t, tt.status, rec.Code)
			resp := decodeBody[model.ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, string(tt.stage), resp.Stage)
		})
	}

	rec := do(t, h.Parse, http.MethodPost, model.ParseBackupRequest{Data: sealed.Data, Password: "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[model.ParseBackupResponse](t, rec)
	assert.True(t, resp.Encrypted)
	assert.True(t, resp.Validation.IsValid)
	assert.Equal(t, 1, resp.Validation.WalletsCount)
	assert.Equal(t, sealed.BackupID, resp.Document.Metadata.BackupID)
}

func TestParse_Rejections(t *testing.T) {
	h, _ := testHandler(t)

	tests := []struct {
		name   string
		data   string
		status int
		code   string
	}{
		{"garbage", "hello there", http.StatusBadRequest, "CORRUPT"},
		{"unsupported version", `{"version":"2.0.0","wallets":[]}`, http.StatusUnprocessableEntity, "UNSUPPORTED_VERSION"},
		{"no wallets", `{"version":"1.0.0","timestamp":1,"wallets":[]}`, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := model.ParseBackupRequest{Data: base64.StdEncoding.EncodeToString([]byte(tt.data))}
			rec := do(t, h.Parse, http.MethodPost, body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeBody[model.ErrorResponse](t, rec).Code)
		})
	}

	body := model.ParseBackupRequest{Data: base64.StdEncoding.EncodeToString([]byte(`{"version":"1.0.0","timestamp":1,"wallets":[]}`))}
	rec := do(t, h.Parse, http.MethodPost, body)
	resp := decodeBody[model.ErrorResponse](t, rec)
	assert.Contains(t, resp.Reasons, "backup contains no wallets")
}

func TestRestore(t *testing.T) {
	src, _ := testHandler(t, wallet(1, "main"), wallet(2, "savings"))
	sealed := createBackup(t, src, "hunter2")

	dst, store := testHandler(t, wallet(1, "main"))
	rec := do(t, dst.Restore, http.MethodPost, model.RestoreRequest{Data: sealed.Data, Password: "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[model.RestoreResponse](t, rec)
	assert.Equal(t, 1, resp.Summary.WalletsRestored)
	assert.Equal(t, 1, resp.Summary.RecordsSkipped)
	assert.False(t, resp.Summary.Partial)
	assert.Len(t, resp.Summary.Completed, len(model.RestoreOrder))

	wallets, err := store.Wallets(context.Background())
	require.NoError(t, err)
	assert.Len(t, wallets, 2)
}

func TestRestore_OnlySelectedCategories(t *testing.T) {
	src, _ := testHandler(t, wallet(1, "main"))
	plain := createBackup(t, src, "")

	dst, store := testHandler(t)
	opts := model.DefaultRestoreOptions()
	opts.IncludeWallets = false
	rec := do(t, dst.Restore, http.MethodPost, model.RestoreRequest{Data: plain.Data, Options: &opts})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[model.RestoreResponse](t, rec)
	assert.Zero(t, resp.Summary.WalletsRestored)
	assert.Contains(t, resp.Summary.Skipped, model.CategoryWallets)

	wallets, err := store.Wallets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestRestore_PartialOptionsKeepDefaults(t *testing.T) {
	src, _ := testHandler(t, wallet(1, "main"))
	plain := createBackup(t, src, "")

	dst, store := testHandler(t)
	rec := do(t, dst.Restore, http.MethodPost, map[string]any{
		"data":    plain.Data,
		"options": map[string]bool{"includeAddressBook": true},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[model.RestoreResponse](t, rec)
	assert.Equal(t, 1, resp.Summary.WalletsRestored)
	assert.Empty(t, resp.Summary.Skipped)

	wallets, err := store.Wallets(context.Background())
	require.NoError(t, err)
	assert.Len(t, wallets, 1)
}

func TestSplitCombine(t *testing.T) {
	h, _ := testHandler(t, wallet(1, "main"), wallet(2, "savings"))
	sealed := createBackup(t, h, "hunter2")

	rec := do(t, h.Split, http.MethodPost, model.SplitRequest{Data: sealed.Data})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	split := decodeBody[model.SplitResponse](t, rec)
	require.Greater(t, split.Count, 1)
	require.Len(t, split.Chunks, split.Count)

	// reversed, with a duplicate
	scanned := []string{split.Chunks[0]}
	for i := len(split.Chunks) - 1; i >= 0; i-- {
		scanned = append(scanned, split.Chunks[i])
	}
	rec = do(t, h.Combine, http.MethodPost, model.CombineRequest{Chunks: scanned})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	combined := decodeBody[model.CombineResponse](t, rec)
	assert.True(t, combined.Encrypted)
	assert.Equal(t, sealed.Data, combined.Data)
}

func TestCombine_Failures(t *testing.T) {
	h, _ := testHandler(t)

	tests := []struct {
		name   string
		chunks []string
		status int
		code   string
	}{
		{"missing chunk", []string{"AVIAN_QR_CHUNK:0:2:abcd"}, http.StatusUnprocessableEntity, "INCOMPLETE_CHUNK_SET"},
		{"conflict", []string{"AVIAN_QR_CHUNK:0:2:abcd", "AVIAN_QR_CHUNK:0:2:efgh"}, http.StatusConflict, "CHUNK_INDEX_CONFLICT"},
		{"foreign code", []string{"https://example.com"}, http.StatusBadRequest, "MALFORMED_CHUNK"},
		{"nothing scanned", nil, http.StatusUnprocessableEntity, "INCOMPLETE_CHUNK_SET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h.Combine, http.MethodPost, model.CombineRequest{Chunks: tt.chunks})
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeBody[model.ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, string(errs.StageAssemble), resp.Stage)
		})
	}
}

func TestQRCodes(t *testing.T) {
	h, _ := testHandler(t, wallet(1, "main"))
	plain := createBackup(t, h, "")

	rec := do(t, h.QRCodes, http.MethodPost, model.SplitRequest{Data: plain.Data, Size: 256})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[model.QRImagesResponse](t, rec)
	require.Len(t, resp.Images, len(resp.Chunks))

	for i, img := range resp.Images {
		raw, err := base64.StdEncoding.DecodeString(img)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")), "image %d", i)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{errs.AtStage(errs.StageRestore, errs.ErrRestoreInProgress), http.StatusConflict, "RESTORE_IN_PROGRESS"},
		{errs.AtStage(errs.StageRestore, fmt.Errorf("restore wallets: %w: %w", errs.ErrStorageWriteFailed, context.DeadlineExceeded)), http.StatusInternalServerError, "STORAGE_WRITE_FAILED"},
		{errs.AtStage(errs.StageParse, fmt.Errorf("%w: %w", errs.ErrCorrupt, errs.ErrMalformedDocument)), http.StatusBadRequest, "CORRUPT"},
		{errs.AtStage(errs.StageExport, fmt.Errorf("boom")), http.StatusBadRequest, "BAD_REQUEST"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
