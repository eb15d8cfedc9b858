package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/AlexZinkM/avian-backup/internal/errs"
)

// Decrypt opens a container produced by Encrypt.
// A wrong password and a corrupted or tampered container both yield
// errs.ErrDecryptionFailed; input without the container marker yields
// errs.ErrNotEncrypted so callers only prompt for a password when it matters.
// password must be []byte for security (caller should zero it after use)
func (b *Box) Decrypt(ctx context.Context, data, password []byte) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, errs.ErrNotEncrypted
	}
	if len(password) == 0 {
		return nil, errs.ErrRequiresPassword
	}

	// Parse header
	header := data[:headerLen]
	if header[6] != formatV1 {
		return nil, fmt.Errorf("%w: unknown container format %d", errs.ErrDecryptionFailed, header[6])
	}
	params := Params{LogN: header[7], R: header[8], P: header[9]}
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecryptionFailed, err)
	}
	salt := header[10 : 10+saltLen]
	nonce := header[10+saltLen:]
	ciphertext := data[headerLen:]

	// Derive key from password
	key, err := deriveKey(ctx, password, salt, params)
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

	// Decrypt
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, header)
	if err != nil {
		return nil, errs.ErrDecryptionFailed
	}
	return plaintext, nil
}
