// Package qrchunk splits backup payloads into QR-sized chunk strings and
// reassembles them.
//
// Wire format of one QR code's content:
//
//	AVIAN_WALLET_BACKUP:<payload>                      whole payload, one code
//	AVIAN_QR_CHUNK:<index>:<total>:<fragment>          one slice of a multi-code payload
//
// index is 0-based; fragments are concatenated in ascending index order.
// Any content without one of the two markers is not ours.
package qrchunk

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/AlexZinkM/avian-backup/internal/errs"
)

const (
	SingleMarker = "AVIAN_WALLET_BACKUP"
	ChunkMarker  = "AVIAN_QR_CHUNK"

	// MaxChunkStringLen is the byte budget of one chunk string. It fits a
	// version 30 QR code at error correction level M (1370 bytes binary),
	// which phone cameras still scan reliably off a screen.
	MaxChunkStringLen = 1200

	// DefaultMaxChunkPayload is the fragment size used when none is given.
	DefaultMaxChunkPayload = 1000

	// maxHeaderLen covers "AVIAN_QR_CHUNK:<index>:<total>:" up to 99999 chunks.
	maxHeaderLen = len(ChunkMarker) + 1 + 5 + 1 + 5 + 1
	maxFragment  = MaxChunkStringLen - maxHeaderLen
	maxChunks    = 99999
)

// Info is what DescribeChunk reports about a recognized chunk.
type Info struct {
	Index  int
	Total  int
	Single bool
}

// Chunk is a parsed chunk string.
type Chunk struct {
	Info
	Fragment string
}

// Split cuts payload into chunk strings of at most maxFragmentLen payload
// bytes each. A non-positive maxFragmentLen selects DefaultMaxChunkPayload and
// values above the QR budget are clamped to it. A payload that fits in one
// fragment is emitted as a single SingleMarker chunk without index/total.
func Split(payload string, maxFragmentLen int) ([]string, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty payload")
	}
	if maxFragmentLen <= 0 {
		maxFragmentLen = DefaultMaxChunkPayload
	}
	if maxFragmentLen > maxFragment {
		maxFragmentLen = maxFragment
	}

	if len(payload) <= maxFragmentLen {
		return []string{SingleMarker + ":" + payload}, nil
	}

	total := (len(payload) + maxFragmentLen - 1) / maxFragmentLen
	if total > maxChunks {
		return nil, fmt.Errorf("payload needs %d chunks, max is %d", total, maxChunks)
	}

	out := make([]string, 0, total)
	for i := 0; i < total; i++ {
		start := i * maxFragmentLen
		end := min(start+maxFragmentLen, len(payload))
		out = append(out, fmt.Sprintf("%s:%d:%d:%s", ChunkMarker, i, total, payload[start:end]))
	}
	return out, nil
}

// DescribeChunk reports index and total of a chunk string. ok is false for
// anything that is not one of our well-formed chunks.
func DescribeChunk(s string) (info Info, ok bool) {
	c, err := Parse(s)
	if err != nil {
		return Info{}, false
	}
	return c.Info, true
}

// IsOurs reports whether s carries one of the protocol markers, even if the
// rest of it turns out to be malformed.
func IsOurs(s string) bool {
	return strings.HasPrefix(s, SingleMarker+":") || strings.HasPrefix(s, ChunkMarker+":")
}

// Parse decodes one chunk string.
func Parse(s string) (Chunk, error) {
	if rest, ok := strings.CutPrefix(s, SingleMarker+":"); ok {
		if rest == "" {
			return Chunk{}, fmt.Errorf("%w: empty single payload", errs.ErrMalformedChunk)
		}
		return Chunk{Info: Info{Index: 0, Total: 1, Single: true}, Fragment: rest}, nil
	}

	rest, ok := strings.CutPrefix(s, ChunkMarker+":")
	if !ok {
		return Chunk{}, fmt.Errorf("%w: no protocol marker", errs.ErrMalformedChunk)
	}

	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return Chunk{}, fmt.Errorf("%w: missing header fields", errs.ErrMalformedChunk)
	}
	index, err := parseCount(parts[0])
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: bad index %q", errs.ErrMalformedChunk, parts[0])
	}
	total, err := parseCount(parts[1])
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: bad total %q", errs.ErrMalformedChunk, parts[1])
	}
	if total < 1 || total > maxChunks || index < 0 || index >= total {
		return Chunk{}, fmt.Errorf("%w: index %d out of range for total %d", errs.ErrMalformedChunk, index, total)
	}
	if parts[2] == "" {
		return Chunk{}, fmt.Errorf("%w: empty fragment", errs.ErrMalformedChunk)
	}

	return Chunk{Info: Info{Index: index, Total: total}, Fragment: parts[2]}, nil
}

// parseCount accepts only the canonical decimal form Split writes, so one
// chunk has exactly one spelling ("01" and "+1" are not 1).
func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if strconv.Itoa(n) != s {
		return 0, fmt.Errorf("non-canonical number %q", s)
	}
	return n, nil
}

// Assemble rebuilds the payload from a set of chunk strings given in any
// order. Exact duplicates are harmless. Two different contents for one index,
// disagreeing totals, or a mix of single and multi chunks mean two backups got
// mixed and yield errs.ErrChunkIndexConflict.
func Assemble(chunks []string) (string, error) {
	if len(chunks) == 0 {
		return "", fmt.Errorf("%w: no chunks", errs.ErrIncompleteChunkSet)
	}

	parsed := make([]Chunk, 0, len(chunks))
	for _, s := range chunks {
		c, err := Parse(s)
		if err != nil {
			return "", err
		}
		parsed = append(parsed, c)
	}

	first := parsed[0]
	if first.Single {
		for _, c := range parsed[1:] {
			if !c.Single || c.Fragment != first.Fragment {
				return "", fmt.Errorf("%w: single payload mixed with other content", errs.ErrChunkIndexConflict)
			}
		}
		return first.Fragment, nil
	}

	fragments := make(map[int]string, first.Total)
	for _, c := range parsed {
		if c.Single || c.Total != first.Total {
			return "", fmt.Errorf("%w: chunks announce different totals", errs.ErrChunkIndexConflict)
		}
		if prev, seen := fragments[c.Index]; seen {
			if prev != c.Fragment {
				return "", fmt.Errorf("%w: index %d", errs.ErrChunkIndexConflict, c.Index)
			}
			continue
		}
		fragments[c.Index] = c.Fragment
	}

	if len(fragments) < first.Total {
		return "", fmt.Errorf("%w: have %d of %d", errs.ErrIncompleteChunkSet, len(fragments), first.Total)
	}

	indexes := make([]int, 0, len(fragments))
	for i := range fragments {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	var sb strings.Builder
	for _, i := range indexes {
		sb.WriteString(fragments[i])
	}
	return sb.String(), nil
}
