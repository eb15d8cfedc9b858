// Package scan drives a QR scanning session: it collects chunk strings from a
// frame source, ignores foreign codes and re-scans, and hands back the
// assembled payload once every chunk has been seen.
package scan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/AlexZinkM/avian-backup/internal/errs"
	"github.com/AlexZinkM/avian-backup/internal/qrchunk"
)

// Outcome says what Add did with one scanned code.
type Outcome int

const (
	// OutcomeIgnored: the code does not belong to the backup protocol.
	OutcomeIgnored Outcome = iota
	// OutcomeDuplicate: an identical chunk was already collected.
	OutcomeDuplicate
	// OutcomeAccepted: a new chunk was collected.
	OutcomeAccepted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeAccepted:
		return "accepted"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Progress is the collection state of a session.
type Progress struct {
	Received int  `json:"received"`
	Total    int  `json:"total"`
	Complete bool `json:"complete"`
}

// Session collects chunks for one transfer. It is safe for concurrent use.
// A chunk index conflict poisons the session: the two chunks come from
// different backups and nothing collected so far can be trusted.
type Session struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	byIndex map[int]string
	total   int
	err     error
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{
		seen:    make(map[string]struct{}),
		byIndex: make(map[int]string),
	}
}

// Add feeds one decoded QR content into the session.
func (s *Session) Add(content string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return OutcomeIgnored, s.err
	}
	if _, dup := s.seen[content]; dup {
		return OutcomeDuplicate, nil
	}
	if !qrchunk.IsOurs(content) {
		return OutcomeIgnored, nil
	}

	c, err := qrchunk.Parse(content)
	if err != nil {
		// a misread frame; keep scanning
		return OutcomeIgnored, err
	}

	if s.total != 0 && c.Total != s.total {
		return OutcomeIgnored, s.poison(fmt.Errorf("%w: chunk announces %d chunks, session expects %d",
			errs.ErrChunkIndexConflict, c.Total, s.total))
	}
	if prev, ok := s.byIndex[c.Index]; ok && prev != content {
		return OutcomeIgnored, s.poison(fmt.Errorf("%w: index %d scanned with different content",
			errs.ErrChunkIndexConflict, c.Index))
	}

	s.total = c.Total
	s.byIndex[c.Index] = content
	s.seen[content] = struct{}{}
	return OutcomeAccepted, nil
}

func (s *Session) poison(err error) error {
	s.err = err
	return err
}

// Err returns the fatal error that poisoned the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Progress reports how many of the announced chunks were collected.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() Progress {
	return Progress{
		Received: len(s.byIndex),
		Total:    s.total,
		Complete: s.total > 0 && len(s.byIndex) == s.total,
	}
}

// Missing lists the chunk indexes not collected yet.
func (s *Session) Missing() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []int
	for i := 0; i < s.total; i++ {
		if _, ok := s.byIndex[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// Payload assembles the collected chunks.
func (s *Session) Payload() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}
	if !s.progressLocked().Complete {
		return "", fmt.Errorf("%w: have %d of %d", errs.ErrIncompleteChunkSet, len(s.byIndex), s.total)
	}

	chunks := make([]string, 0, len(s.byIndex))
	for _, c := range s.byIndex {
		chunks = append(chunks, c)
	}
	return qrchunk.Assemble(chunks)
}

// IsFatal reports whether err ends a scanning session.
func IsFatal(err error) bool {
	return errors.Is(err, errs.ErrChunkIndexConflict)
}
