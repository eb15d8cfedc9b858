package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AlexZinkM/avian-backup/internal/errs"
	"github.com/AlexZinkM/avian-backup/internal/model"
)

// State is a step of the import flow.
type State int

const (
	StateIdle State = iota
	StateFileSelected
	StateParseAttempted
	StateNeedsPassword
	StatePreviewed
	StateRejected
	StateRestoring
	StateCompleted
	StatePartiallyCompleted
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:               "idle",
	StateFileSelected:       "file-selected",
	StateParseAttempted:     "parse-attempted",
	StateNeedsPassword:      "needs-password",
	StatePreviewed:          "previewed",
	StateRejected:           "rejected",
	StateRestoring:          "restoring",
	StateCompleted:          "completed",
	StatePartiallyCompleted: "partially-completed",
	StateFailed:             "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the flow has ended and can only be reset.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateCompleted, StatePartiallyCompleted, StateFailed:
		return true
	}
	return false
}

var transitions = map[State][]State{
	StateIdle:           {StateFileSelected},
	StateFileSelected:   {StateParseAttempted},
	StateParseAttempted: {StateNeedsPassword, StatePreviewed, StateRejected},
	StateNeedsPassword:  {StateNeedsPassword, StatePreviewed, StateRejected},
	StatePreviewed:      {StateRestoring},
	StateRestoring:      {StateCompleted, StatePartiallyCompleted, StateFailed},
}

// Importer is what the import flow needs from the Service.
type Importer interface {
	ParseBackupFile(ctx context.Context, data, password []byte) (*ParseResult, error)
	RestoreFromBackup(ctx context.Context, doc *model.BackupDocument, opts model.RestoreOptions, onProgress ProgressFunc) (model.RestoreSummary, error)
}

// ImportFlow drives one import from file selection to restore outcome.
// The selected bytes are kept only until they parse; passwords are never kept.
type ImportFlow struct {
	importer Importer

	mu      sync.Mutex
	state   State
	data    []byte
	result  *ParseResult
	summary model.RestoreSummary
	err     error
}

func NewImportFlow(importer Importer) *ImportFlow {
	return &ImportFlow{importer: importer}
}

func (f *ImportFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err is the error that caused the current state, if any.
func (f *ImportFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Preview is the parsed document once the flow reached Previewed.
func (f *ImportFlow) Preview() *ParseResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// Summary is the restore outcome once the flow has restored.
func (f *ImportFlow) Summary() model.RestoreSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary
}

// Reset returns a terminal flow to Idle.
func (f *ImportFlow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateIdle && !f.state.Terminal() {
		return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, f.state, StateIdle)
	}
	f.state, f.data, f.result, f.summary, f.err = StateIdle, nil, nil, model.RestoreSummary{}, nil
	return nil
}

// SelectFile takes the picked file and attempts to parse it without a
// password. The flow ends in NeedsPassword, Previewed or Rejected.
func (f *ImportFlow) SelectFile(ctx context.Context, data []byte) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.to(StateFileSelected); err != nil {
		return f.state, err
	}
	f.data = data
	if err := f.to(StateParseAttempted); err != nil {
		return f.state, err
	}

	res, err := f.importer.ParseBackupFile(ctx, data, nil)
	switch {
	case err == nil:
		f.previewed(res)
	case errors.Is(err, errs.ErrRequiresPassword):
		_ = f.to(StateNeedsPassword)
	default:
		f.rejected(err)
	}
	return f.state, f.err
}

// SubmitPassword retries the parse with password. A wrong password keeps the
// flow in NeedsPassword and returns the decryption error.
func (f *ImportFlow) SubmitPassword(ctx context.Context, password []byte) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateNeedsPassword {
		return f.state, fmt.Errorf("%w: password not expected in %s", errs.ErrInvalidTransition, f.state)
	}

	res, err := f.importer.ParseBackupFile(ctx, f.data, password)
	switch {
	case err == nil:
		f.previewed(res)
	case errors.Is(err, errs.ErrDecryptionFailed), errors.Is(err, errs.ErrRequiresPassword):
		f.err = err
	case ctx.Err() != nil:
		return f.state, err
	default:
		f.rejected(err)
	}
	return f.state, f.err
}

// Confirm restores the previewed document.
func (f *ImportFlow) Confirm(ctx context.Context, opts model.RestoreOptions, onProgress ProgressFunc) (model.RestoreSummary, error) {
	f.mu.Lock()
	if err := f.to(StateRestoring); err != nil {
		f.mu.Unlock()
		return model.RestoreSummary{}, err
	}
	doc := f.result.Document
	f.mu.Unlock()

	summary, err := f.importer.RestoreFromBackup(ctx, doc, opts, onProgress)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.summary, f.err = summary, err
	switch {
	case err == nil:
		_ = f.to(StateCompleted)
	case errors.Is(err, errs.ErrStorageWriteFailed):
		_ = f.to(StatePartiallyCompleted)
	default:
		_ = f.to(StateFailed)
	}
	return summary, err
}

func (f *ImportFlow) previewed(res *ParseResult) {
	_ = f.to(StatePreviewed)
	f.result, f.data, f.err = res, nil, nil
}

func (f *ImportFlow) rejected(err error) {
	_ = f.to(StateRejected)
	f.data, f.err = nil, err
}

func (f *ImportFlow) to(next State) error {
	for _, allowed := range transitions[f.state] {
		if allowed == next {
			f.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, f.state, next)
}
