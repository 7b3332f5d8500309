package crypto

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	CipherAES      = "AES"
	CipherChaCha20 = "ChaCha20"

	ModeCBC      = "CBC"
	ModeGCM      = "GCM"
	ModePoly1305 = "Poly1305"

	macHMACSHA256KeySize = 32
)

// CryptoSpec identifies the symmetric algorithm a raw key must be interpreted under.
// Raw keys are laid out as cipher key followed by MAC key.
type CryptoSpec struct {
	name          string
	cipher        string
	mode          string
	cipherKeySize int
	macKeySize    int
}

var (
	SpecAES128CBCHMACSHA256 = CryptoSpec{
		name:          "AES-128-CBC-HMAC-SHA256",
		cipher:        CipherAES,
		mode:          ModeCBC,
		cipherKeySize: 16,
		macKeySize:    macHMACSHA256KeySize,
	}
	SpecAES128GCM = CryptoSpec{
		name:          "AES-128-GCM",
		cipher:        CipherAES,
		mode:          ModeGCM,
		cipherKeySize: 16,
	}
	SpecAES256GCM = CryptoSpec{
		name:          "AES-256-GCM",
		cipher:        CipherAES,
		mode:          ModeGCM,
		cipherKeySize: 32,
	}
	SpecChaCha20Poly1305 = CryptoSpec{
		name:          "ChaCha20-Poly1305",
		cipher:        CipherChaCha20,
		mode:          ModePoly1305,
		cipherKeySize: chacha20poly1305.KeySize,
	}
)

var knownSpecs = []CryptoSpec{
	SpecAES128CBCHMACSHA256,
	SpecAES128GCM,
	SpecAES256GCM,
	SpecChaCha20Poly1305,
}

// NewCryptoSpec builds a spec for a cipher/mode pair that is not predefined
func NewCryptoSpec(cipher, mode string, cipherKeySize, macKeySize int) (CryptoSpec, error) {
	if cipher == "" {
		return CryptoSpec{}, fmt.Errorf("%w: cipher must be set", ErrInvalidArgument)
	}
	if cipherKeySize <= 0 {
		return CryptoSpec{}, fmt.Errorf("%w: cipher key size must be positive, got %d", ErrInvalidArgument, cipherKeySize)
	}
	if macKeySize < 0 {
		return CryptoSpec{}, fmt.Errorf("%w: mac key size must not be negative, got %d", ErrInvalidArgument, macKeySize)
	}

	name := fmt.Sprintf("%s-%d", cipher, cipherKeySize*8)
	if mode != "" {
		name += "-" + mode
	}
	if macKeySize > 0 {
		name += fmt.Sprintf("-MAC%d", macKeySize*8)
	}

	return CryptoSpec{
		name:          name,
		cipher:        cipher,
		mode:          mode,
		cipherKeySize: cipherKeySize,
		macKeySize:    macKeySize,
	}, nil
}

// ParseCryptoSpec resolves one of the predefined specs by name
func ParseCryptoSpec(name string) (CryptoSpec, error) {
	for _, spec := range knownSpecs {
		if strings.EqualFold(spec.name, strings.TrimSpace(name)) {
			return spec, nil
		}
	}
	return CryptoSpec{}, fmt.Errorf("%w: %q", ErrUnsupportedCryptoSpec, name)
}

func (s CryptoSpec) Name() string       { return s.name }
func (s CryptoSpec) Cipher() string     { return s.cipher }
func (s CryptoSpec) Mode() string       { return s.mode }
func (s CryptoSpec) CipherKeySize() int { return s.cipherKeySize }
func (s CryptoSpec) MACKeySize() int    { return s.macKeySize }

// KeyLength is the length of the raw key bytes implied by the spec
func (s CryptoSpec) KeyLength() int {
	return s.cipherKeySize + s.macKeySize
}

// IsZero reports whether the spec is unset
func (s CryptoSpec) IsZero() bool {
	return s == CryptoSpec{}
}

func (s CryptoSpec) String() string {
	return s.name
}
