package backup

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/avian-backup/internal/errs"
	"github.com/AlexZinkM/avian-backup/internal/model"
)

func exported(t *testing.T, svc *Service, password []byte) []byte {
	t.Helper()
	ctx := context.Background()
	doc, err := svc.CreateBackup(ctx, model.BackupTypeFull)
	require.NoError(t, err)
	data, err := svc.ExportBackup(ctx, doc, password)
	require.NoError(t, err)
	return data
}

func TestImportFlow_PlaintextToCompleted(t *testing.T) {
	ctx := context.Background()
	data := exported(t, seededService(t, fullState()), nil)

	target := newStore()
	flow := NewImportFlow(newService(t, target, 0))
	require.Equal(t, StateIdle, flow.State())

	state, err := flow.SelectFile(ctx, data)
	require.NoError(t, err)
	require.Equal(t, StatePreviewed, state)
	require.Equal(t, 2, flow.Preview().Validation.WalletsCount)

	summary, err := flow.Confirm(ctx, model.DefaultRestoreOptions(), nil)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, flow.State())
	require.Equal(t, 2, summary.WalletsRestored)
	require.Equal(t, summary, flow.Summary())

	require.Len(t, snapshot(t, target).Wallets, 2)
}

func TestImportFlow_PasswordGate(t *testing.T) {
	ctx := context.Background()
	data := exported(t, seededService(t, fullState()), []byte("secret"))
	flow := NewImportFlow(newService(t, newStore(), 0))

	state, err := flow.SelectFile(ctx, data)
	require.NoError(t, err)
	require.Equal(t, StateNeedsPassword, state)

	state, err = flow.SubmitPassword(ctx, []byte("guess"))
	require.ErrorIs(t, err, errs.ErrDecryptionFailed)
	require.Equal(t, StateNeedsPassword, state)

	state, err = flow.SubmitPassword(ctx, []byte("secret"))
	require.NoError(t, err)
	require.Equal(t, StatePreviewed, state)
	require.True(t, flow.Preview().Encrypted)
}

func TestImportFlow_RejectedThenReset(t *testing.T) {
	ctx := context.Background()
	flow := NewImportFlow(newService(t, newStore(), 0))

	state, err := flow.SelectFile(ctx, []byte("garbage"))
	require.ErrorIs(t, err, errs.ErrCorrupt)
	require.Equal(t, StateRejected, state)
	require.True(t, state.Terminal())

	_, err = flow.Confirm(ctx, model.DefaultRestoreOptions(), nil)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	_, err = flow.SubmitPassword(ctx, []byte("x"))
	require.ErrorIs(t, err, errs.ErrInvalidTransition)

	require.NoError(t, flow.Reset())
	require.Equal(t, StateIdle, flow.State())
	require.NoError(t, flow.Err())
}

func TestImportFlow_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	flow := NewImportFlow(newService(t, newStore(), 0))

	_, err := flow.Confirm(ctx, model.DefaultRestoreOptions(), nil)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)

	_, err = flow.SelectFile(ctx, exported(t, seededService(t, fullState()), []byte("pw")))
	require.NoError(t, err)
	_, err = flow.SelectFile(ctx, []byte("{}"))
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	require.ErrorIs(t, flow.Reset(), errs.ErrInvalidTransition)
}

// stubImporter previews anything and fails restores with err.
type stubImporter struct {
	summary model.RestoreSummary
	err     error
}

func (s stubImporter) ParseBackupFile(context.Context, []byte, []byte) (*ParseResult, error) {
	return &ParseResult{Document: &model.BackupDocument{}}, nil
}

func (s stubImporter) RestoreFromBackup(context.Context, *model.BackupDocument, model.RestoreOptions, ProgressFunc) (model.RestoreSummary, error) {
	return s.summary, s.err
}

func TestImportFlow_RestoreOutcomes(t *testing.T) {
	partial := model.RestoreSummary{Completed: []model.Category{model.CategoryWallets}, Failed: model.CategoryAddressBook, Partial: true}
	tests := []struct {
		name string
		imp  stubImporter
		want State
	}{
		{"completed", stubImporter{}, StateCompleted},
		{"storage failure", stubImporter{summary: partial, err: fmt.Errorf("restore: %w", errs.ErrStorageWriteFailed)}, StatePartiallyCompleted},
		{"busy", stubImporter{err: errs.ErrRestoreInProgress}, StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			flow := NewImportFlow(tt.imp)
			_, err := flow.SelectFile(ctx, []byte("{}"))
			require.NoError(t, err)

			summary, err := flow.Confirm(ctx, model.DefaultRestoreOptions(), nil)
			require.ErrorIs(t, err, tt.imp.err)
			require.Equal(t, tt.want, flow.State())
			require.Equal(t, tt.imp.summary, summary)
		})
	}
}
