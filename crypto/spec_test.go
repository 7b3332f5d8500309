package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredefinedSpecs(t *testing.T) {
	tests := []struct {
		spec      CryptoSpec
		name      string
		keyLength int
		macKey    int
	}{
		{SpecAES128CBCHMACSHA256, "AES-128-CBC-HMAC-SHA256", 48, 32},
		{SpecAES128GCM, "AES-128-GCM", 16, 0},
		{SpecAES256GCM, "AES-256-GCM", 32, 0},
		{SpecChaCha20Poly1305, "ChaCha20-Poly1305", 32, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.spec.Name())
			assert.Equal(t, tt.name, tt.spec.String())
			assert.Equal(t, tt.keyLength, tt.spec.KeyLength())
			assert.Equal(t, tt.macKey, tt.spec.MACKeySize())
			assert.False(t, tt.spec.IsZero())
		})
	}
}

func TestParseCryptoSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected CryptoSpec
		wantErr  bool
	}{
		{name: "exact name", input: "AES-128-GCM", expected: SpecAES128GCM},
		{name: "case insensitive", input: "chacha20-poly1305", expected: SpecChaCha20Poly1305},
		{name: "surrounding space", input: "  AES-128-CBC-HMAC-SHA256 ", expected: SpecAES128CBCHMACSHA256},
		{name: "unknown", input: "DES-56-ECB", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseCryptoSpec(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedCryptoSpec)
				assert.True(t, spec.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, spec)
		})
	}
}

func TestNewCryptoSpec(t *testing.T) {
	spec, err := NewCryptoSpec(CipherAES, ModeCBC, 32, 48)
	require.NoError(t, err)
	assert.Equal(t, "AES-256-CBC-MAC384", spec.Name())
	assert.Equal(t, 80, spec.KeyLength())
	assert.Equal(t, CipherAES, spec.Cipher())
	assert.Equal(t, ModeCBC, spec.Mode())

	same, err := NewCryptoSpec(CipherAES, ModeCBC, 32, 48)
	require.NoError(t, err)
	assert.True(t, spec == same)

	invalid := []struct {
		name               string
		cipher             string
		cipherSize, macLen int
	}{
		{"empty cipher", "", 16, 0},
		{"zero key size", CipherAES, 0, 0},
		{"negative mac size", CipherAES, 16, -1},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCryptoSpec(tt.cipher, ModeGCM, tt.cipherSize, tt.macLen)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}
