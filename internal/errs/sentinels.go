// Package errs contains sentinel errors shared by the backup pipeline layers.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Document-level failures.
var (
	// ErrMalformedDocument indicates the bytes are not a structured backup document.
	ErrMalformedDocument = errors.New("malformed backup document")

	// ErrUnsupportedVersion indicates a document version the validator does not recognize.
	ErrUnsupportedVersion = errors.New("unsupported backup version")

	// ErrValidationFailed indicates semantic problems in a parseable document.
	ErrValidationFailed = errors.New("backup validation failed")
)

// Encryption failures.
var (
	// ErrDecryptionFailed covers a wrong password and a corrupted/tampered container alike.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrNotEncrypted indicates the bytes do not carry the encrypted container marker.
	ErrNotEncrypted = errors.New("data is not encrypted")

	// ErrRequiresPassword indicates encrypted input was supplied without a password.
	ErrRequiresPassword = errors.New("password required")

	// ErrCorrupt indicates the input is neither a plaintext document nor an encrypted container.
	ErrCorrupt = errors.New("backup data is corrupt")
)

// Transfer failures.
var (
	// ErrIncompleteChunkSet indicates fewer distinct chunks than the announced total.
	ErrIncompleteChunkSet = errors.New("incomplete chunk set")

	// ErrChunkIndexConflict indicates two chunks claim the same slot with different content.
	ErrChunkIndexConflict = errors.New("chunk index conflict")

	// ErrMalformedChunk indicates a chunk string without a recognized marker or header.
	ErrMalformedChunk = errors.New("malformed chunk")
)

// Restore failures.
var (
	// ErrStorageWriteFailed wraps a storage collaborator failure during restore.
	ErrStorageWriteFailed = errors.New("storage write failed")

	// ErrRestoreInProgress indicates another restore is running against the same engine.
	ErrRestoreInProgress = errors.New("restore already in progress")

	// ErrInvalidTransition indicates an import flow event that is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid import flow transition")
)

// Stage names the pipeline step a failure belongs to.
type Stage string

const (
	StageCreate   Stage = "create"
	StageExport   Stage = "export"
	StageParse    Stage = "parse"
	StageDecrypt  Stage = "decrypt"
	StageValidate Stage = "validate"
	StageAssemble Stage = "chunk-assembly"
	StageRestore  Stage = "restore"
)

// StageError tags an error with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with stage information. A nil err stays nil.
func AtStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf reports the stage recorded on err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// ValidationError carries every human-readable reason a document was rejected.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(e.Reasons, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
