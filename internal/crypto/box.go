// Package crypto implements password-based encryption of backup payloads.
//
// An encrypted backup is a self-describing binary container:
//
//	magic "AVNBAK" | format(1) | logN(1) | r(1) | p(1) | salt(32) | nonce(12) | AES-256-GCM(ciphertext||tag)
//
// The header is authenticated as additional data, so tampering with the KDF
// parameters is detected the same way as tampering with the ciphertext.
package crypto

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	formatV1     = 0x01
	scryptKeyLen = 32
	saltLen      = 32
	nonceLen     = 12

	// Bounds on the work an untrusted container can demand. scrypt needs
	// 128*r*N bytes; the default 2^18 at r=8 takes 256MiB.
	maxLogN   = 22
	maxP      = 16
	maxMemory = 1 << 30
)

var magic = []byte("AVNBAK")

// headerLen is the size of everything in front of the ciphertext.
const headerLen = 6 + 4 + saltLen + nonceLen

// Params are the scrypt cost parameters written into every container.
type Params struct {
	LogN uint8
	R    uint8
	P    uint8
}

// DefaultParams mirror the local wallet file parameters.
//
// N=2^18 (~256MB RAM, 0.5-2s) keeps brute force expensive while still
// working on phones; N=2^20 fails on mobile due to per-app memory limits.
var DefaultParams = Params{LogN: 18, R: 8, P: 1}

func (p Params) validate() error {
	if p.LogN < 10 || p.LogN > maxLogN {
		return fmt.Errorf("scrypt logN %d out of range [10,%d]", p.LogN, maxLogN)
	}
	if p.R == 0 || p.P == 0 {
		return fmt.Errorf("scrypt r and p must be positive")
	}
	if p.P > maxP {
		return fmt.Errorf("scrypt p %d above %d", p.P, maxP)
	}
	if mem := p.memory(); mem > maxMemory {
		return fmt.Errorf("scrypt needs %d MiB, limit is %d MiB", mem>>20, maxMemory>>20)
	}
	return nil
}

// memory is the scrypt working set in bytes.
func (p Params) memory() uint64 {
	return 128 * uint64(p.R) * (uint64(1) << p.LogN)
}

// Box encrypts and decrypts backup payloads under a password.
// Decryption always uses the parameters stored in the container, so a Box
// configured with cheaper parameters can still open older, costlier backups.
type Box struct {
	params Params
}

// NewBox returns a Box that encrypts with p.
func NewBox(p Params) (*Box, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Box{params: p}, nil
}

// IsEncrypted reports whether data carries the encrypted container marker.
// It is a structural check only; it says nothing about the password.
func IsEncrypted(data []byte) bool {
	return len(data) >= headerLen && bytes.HasPrefix(data, magic)
}

// IsSealedString reports whether s is a base64 encoded container. Wallets
// store password-protected private keys that way.
func IsSealedString(s string) bool {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return false
	}
	return IsEncrypted(raw)
}

// deriveKey runs scrypt off the caller's goroutine so a cancelled context
// returns immediately instead of waiting out the KDF.
func deriveKey(ctx context.Context, password, salt []byte, p Params) ([]byte, error) {
	type result struct {
		key []byte
		err error
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// the caller may clear password as soon as we return
	pw := bytes.Clone(password)
	ch := make(chan result, 1)
	go func() {
		defer clear(pw)
		key, err := scrypt.Key(pw, salt, 1<<p.LogN, int(p.R), int(p.P), scryptKeyLen)
		ch <- result{key: key, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.key, r.err
	}
}
