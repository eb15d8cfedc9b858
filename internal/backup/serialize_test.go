package backup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/avian-backup/internal/errs"
	"github.com/AlexZinkM/avian-backup/internal/model"
)

func TestSerialize_FullRoundTrip(t *testing.T) {
	doc := fullDocument(t)
	require.Equal(t, model.CurrentBackupVersion, doc.Version)
	require.Equal(t, fixedNow.UnixMilli(), doc.Timestamp)
	require.Equal(t, 2, doc.Metadata.WalletCount)
	require.NotEmpty(t, doc.Metadata.BackupID)

	b, err := Marshal(doc)
	require.NoError(t, err)

	got, err := Deserialize(b)
	require.NoError(t, err)
	require.Equal(t, doc, got)
}

func TestSerialize_WalletsOnly(t *testing.T) {
	doc, err := testSerializer().Serialize(fullState(), model.BackupTypeWalletsOnly)
	require.NoError(t, err)

	require.Len(t, doc.Wallets, 2)
	require.Empty(t, doc.AddressBook)
	require.NotNil(t, doc.AddressBook)
	require.Nil(t, doc.Settings)
	require.Nil(t, doc.Transactions)
	require.Nil(t, doc.SecurityAudit)
	require.Nil(t, doc.WatchedAddresses)

	b, err := Marshal(doc)
	require.NoError(t, err)
	got, err := Deserialize(b)
	require.NoError(t, err)
	require.Equal(t, doc, got)
}

func TestSerialize_DeterministicForSameClock(t *testing.T) {
	a, err := testSerializer().Serialize(fullState(), model.BackupTypeFull)
	require.NoError(t, err)
	b, err := testSerializer().Serialize(fullState(), model.BackupTypeFull)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSerialize_DoesNotShareState(t *testing.T) {
	state := fullState()
	doc, err := testSerializer().Serialize(state, model.BackupTypeFull)
	require.NoError(t, err)

	state.Wallets[0].Name = "changed"
	state.Settings["theme"] = "light"
	require.Equal(t, "main", doc.Wallets[0].Name)
	require.Equal(t, "dark", doc.Settings["theme"])
}

func TestSerialize_UnknownKind(t *testing.T) {
	_, err := testSerializer().Serialize(fullState(), "partial")
	require.Error(t, err)
}

func TestDeserialize_Malformed(t *testing.T) {
	for name, in := range map[string]string{
		"empty":       "",
		"text":        "hello",
		"array":       `[{"version":"1.0.0"}]`,
		"null":        "null",
		"truncated":   `{"version":"1.0.0","wallets":[`,
		"no version":  `{"wallets":[]}`,
		"wrong types": `{"version":"1.0.0","wallets":"none"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Deserialize([]byte(in))
			require.ErrorIs(t, err, errs.ErrMalformedDocument)
		})
	}
}

func TestDeserialize_Versions(t *testing.T) {
	tests := []struct {
		version string
		wantErr error
	}{
		{"1.0.0", nil},
		{"1.3.2", nil},
		{"0.9.0", nil},
		{"0.9.4", nil},
		{"0.8.0", errs.ErrUnsupportedVersion},
		{"2.0.0", errs.ErrUnsupportedVersion},
		{"latest", errs.ErrUnsupportedVersion},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			_, err := Deserialize([]byte(`{"version":"` + tt.version + `","wallets":[]}`))
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDeserialize_LegacyDefaults(t *testing.T) {
	doc, err := Deserialize([]byte(`{"version":"0.9.1","timestamp":1700000000000,"wallets":[{"name":"w","address":"x"}]}`))
	require.NoError(t, err)
	require.Equal(t, model.BackupTypeFull, doc.Metadata.BackupType)
	require.Empty(t, doc.Metadata.BackupID)
	require.NotNil(t, doc.AddressBook)
}

func TestDeserialize_StripsBOM(t *testing.T) {
	b, err := Marshal(fullDocument(t))
	require.NoError(t, err)

	doc, err := Deserialize(append([]byte{0xEF, 0xBB, 0xBF}, b...))
	require.NoError(t, err)
	require.Len(t, doc.Wallets, 2)
}
