package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// Encrypt seals plaintext into a self-describing container.
// password must be []byte for security (caller should zero it after use)
func (b *Box) Encrypt(ctx context.Context, plaintext, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, errors.New("password cannot be empty")
	}

	// Generate salt and nonce
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Derive key from password
	key, err := deriveKey(ctx, password, salt, b.params)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	// Create AES cipher
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	// Create GCM
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	header := make([]byte, 0, headerLen)
	header = append(header, magic...)
	header = append(header, formatV1, b.params.LogN, b.params.R, b.params.P)
	header = append(header, salt...)
	header = append(header, nonce...)

	out := make([]byte, 0, headerLen+len(plaintext)+aesGCM.Overhead())
	out = append(out, header...)
	return aesGCM.Seal(out, nonce, plaintext, header), nil
}
