package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRestoreOptions_OmittedFlagsKeepDefaults(t *testing.T) {
	var opts RestoreOptions
	require.NoError(t, json.Unmarshal([]byte(`{"includeTransactions":false,"overwriteExisting":true}`), &opts))

	want := DefaultRestoreOptions()
	want.IncludeTransactions = false
	want.OverwriteExisting = true
	require.Equal(t, want, opts)
}

func TestRestoreOptions_EmptyObject(t *testing.T) {
	var req struct {
		Options *RestoreOptions `json:"options"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"options":{}}`), &req))
	require.NotNil(t, req.Options)
	require.Equal(t, DefaultRestoreOptions(), *req.Options)
}
