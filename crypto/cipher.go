package crypto

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/benbjohnson/clock"
	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptInput represents the data and contexts for encryption operations
type EncryptInput struct {
	// Plaintext is the data to be encrypted
	Plaintext []byte
	// KeyContext selects and authenticates the distribution key
	KeyContext CryptoContext
	// PayloadContext is bound to the ciphertext as authenticated data
	PayloadContext CryptoContext
}

// EncryptOutput is the sealed data plus what Decrypt needs to recover the key
type EncryptOutput struct {
	// Ciphertext is nonce || sealed plaintext
	Ciphertext []byte
	WrappedKey []byte
	// Spec is the crypto spec of the distribution key
	Spec CryptoSpec
}

// DecryptInput represents the data and contexts for decryption operations
type DecryptInput struct {
	Ciphertext []byte
	// WrappedKey is the wrapped distribution key returned by Encrypt
	WrappedKey []byte
	// Spec is the crypto spec returned by Encrypt; zero selects the materials manager's default
	Spec           CryptoSpec
	KeyContext     CryptoContext
	PayloadContext CryptoContext
}

// Cipher seals payloads with distribution keys from a MaterialsManager.
// Expired keys are refused in both directions.
type Cipher struct {
	MaterialsManager MaterialsManager
	clock            clock.Clock
}

// NewCipher creates a new Cipher with the specified materials manager
func NewCipher(mm MaterialsManager, clk clock.Clock) *Cipher {
	if clk == nil {
		clk = clock.New()
	}
	return &Cipher{
		MaterialsManager: mm,
		clock:            clk,
	}
}

// Clock returns the clock expiry is checked against
func (c *Cipher) Clock() clock.Clock {
	return c.clock
}

// Encrypt seals the plaintext with a distribution key from the materials manager
func (c *Cipher) Encrypt(ctx context.Context, input *EncryptInput) (*EncryptOutput, error) {
	material, err := c.MaterialsManager.GetMaterial(ctx, input.KeyContext)
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption material: %w", err)
	}
	defer material.Key.Zero()
	if material.Key.IsExpired(c.clock.Now()) {
		return nil, fmt.Errorf("encryption material: %w", ErrKeyExpired)
	}

	aead, err := NewAEAD(material.Key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return &EncryptOutput{
		Ciphertext: aead.Seal(nonce, nonce, input.Plaintext, ContextToBytes(input.PayloadContext)),
		WrappedKey: material.WrappedKey,
		Spec:       material.Key.CryptoSpec(),
	}, nil
}

// Decrypt opens data produced by Encrypt
func (c *Cipher) Decrypt(ctx context.Context, input *DecryptInput) ([]byte, error) {
	material, err := c.MaterialsManager.DecryptMaterial(ctx, input.KeyContext, input.Spec, input.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get decryption material: %w", err)
	}
	defer material.Key.Zero()
	if material.Key.IsExpired(c.clock.Now()) {
		return nil, fmt.Errorf("decryption material: %w", ErrKeyExpired)
	}

	aead, err := NewAEAD(material.Key)
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	if len(input.Ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, data := input.Ciphertext[:nonceSize], input.Ciphertext[nonceSize:]
	return aead.Open(nil, nonce, data, ContextToBytes(input.PayloadContext))
}

// NewAEAD returns the authenticated cipher selected by the key's crypto spec
func NewAEAD(key *DistributionKey) (cipher.AEAD, error) {
	spec := key.CryptoSpec()
	if len(key.key) != spec.KeyLength() {
		return nil, fmt.Errorf("%w: %s expects a %d byte key, got %d", ErrInvalidArgument, spec, spec.KeyLength(), len(key.key))
	}

	switch {
	case spec.Cipher() == CipherAES && spec.Mode() == ModeGCM:
		block, err := aes.NewCipher(key.CipherKey())
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case spec.Cipher() == CipherAES && spec.Mode() == ModeCBC && spec.MACKeySize() > 0:
		return newCBCHMAC(key.CipherKey(), key.MACKey())
	case spec.Cipher() == CipherChaCha20 && spec.Mode() == ModePoly1305:
		return chacha20poly1305.New(key.CipherKey())
	default:
		return nil, fmt.Errorf("%w: no cipher for %s", ErrUnsupportedCryptoSpec, spec)
	}
}

// cbcHMAC is AES-CBC with PKCS#7 padding followed by HMAC-SHA256 over
// len(aad) || aad || iv || ciphertext
type cbcHMAC struct {
	block  cipher.Block
	macKey []byte
}

func newCBCHMAC(cipherKey, macKey []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(cipherKey)
	if err != nil {
		return nil, err
	}
	return &cbcHMAC{block: block, macKey: macKey}, nil
}

func (c *cbcHMAC) NonceSize() int { return aes.BlockSize }
func (c *cbcHMAC) Overhead() int  { return aes.BlockSize + sha256.Size }

func (c *cbcHMAC) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	if len(nonce) != aes.BlockSize {
		panic("crypto: incorrect iv length given to AES-CBC")
	}

	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(append(make([]byte, 0, len(plaintext)+padLen), plaintext...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, nonce).CryptBlocks(ciphertext, padded)

	dst = append(dst, ciphertext...)
	return append(dst, c.tag(nonce, ciphertext, additionalData)...)
}

func (c *cbcHMAC) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != aes.BlockSize {
		return nil, errors.New("crypto: incorrect iv length")
	}
	if len(ciphertext) < aes.BlockSize+sha256.Size || (len(ciphertext)-sha256.Size)%aes.BlockSize != 0 {
		return nil, errors.New("crypto: ciphertext has invalid length")
	}

	body, tag := ciphertext[:len(ciphertext)-sha256.Size], ciphertext[len(ciphertext)-sha256.Size:]
	if !hmac.Equal(tag, c.tag(nonce, body, additionalData)) {
		return nil, errors.New("crypto: message authentication failed")
	}

	plaintext := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, nonce).CryptBlocks(plaintext, body)

	padLen := int(plaintext[len(plaintext)-1])
	if padLen == 0 || padLen > aes.BlockSize {
		return nil, errors.New("crypto: invalid padding")
	}
	return append(dst, plaintext[:len(plaintext)-padLen]...), nil
}

func (c *cbcHMAC) tag(iv, ciphertext, additionalData []byte) []byte {
	mac := hmac.New(sha256.New, c.macKey)
	var aadLen [8]byte
	binary.BigEndian.PutUint64(aadLen[:], uint64(len(additionalData)))
	mac.Write(aadLen[:])
	mac.Write(additionalData)
	mac.Write(iv)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}
