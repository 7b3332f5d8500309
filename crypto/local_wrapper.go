package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// LocalMasterKeySize is the required master key length for LocalWrapper
	LocalMasterKeySize = 32

	localWrapInfo = "distkey-local-wrap-v1"
)

// LocalWrapper wraps keys with AES-256-GCM under a key derived from a local master key.
// Output format: nonce || ciphertext.
type LocalWrapper struct {
	keyID string
	aead  cipher.AEAD
}

// NewLocalWrapper derives the wrapping key from masterKey with HKDF-SHA256
func NewLocalWrapper(keyID string, masterKey []byte) (*LocalWrapper, error) {
	if len(masterKey) != LocalMasterKeySize {
		return nil, fmt.Errorf("%w: master key must be %d bytes, got %d", ErrInvalidArgument, LocalMasterKeySize, len(masterKey))
	}

	wrapKey := make([]byte, 32)
	defer Zeroize(wrapKey)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, []byte(keyID), []byte(localWrapInfo)), wrapKey); err != nil {
		return nil, fmt.Errorf("failed to derive wrapping key: %w", err)
	}

	block, err := aes.NewCipher(wrapKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &LocalWrapper{keyID: keyID, aead: aead}, nil
}

func (w *LocalWrapper) KeyID() string {
	return w.keyID
}

// WrapKey seals plaintext with the context as additional authenticated data
func (w *LocalWrapper) WrapKey(_ context.Context, cryptoCtx CryptoContext, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, w.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return w.aead.Seal(nonce, nonce, plaintext, ContextToBytes(cryptoCtx)), nil
}

// UnwrapKey opens a blob produced by WrapKey under the same context
func (w *LocalWrapper) UnwrapKey(_ context.Context, cryptoCtx CryptoContext, wrapped []byte) ([]byte, error) {
	nonceSize := w.aead.NonceSize()
	if len(wrapped) < nonceSize {
		return nil, errors.New("wrapped key too short")
	}

	plaintext, err := w.aead.Open(nil, wrapped[:nonceSize], wrapped[nonceSize:], ContextToBytes(cryptoCtx))
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap key: %w", err)
	}
	return plaintext, nil
}
