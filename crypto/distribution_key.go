package crypto

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// ExpirationTimeSize is the width of the DKE-1 expiration field in bytes
	ExpirationTimeSize = 6

	// MaxExpirationMillis is the largest expiration representable in the 48-bit field
	MaxExpirationMillis = 1<<(ExpirationTimeSize*8) - 1
)

// DistributionKey is key material handed to a communicating party.
//
// DKE-1 encoding:
//
//	offset 0, 6 bytes: expiration time, unsigned big-endian, ms since the epoch
//	offset 6, N bytes: raw key bytes, N = CryptoSpec.KeyLength(), no length prefix
type DistributionKey struct {
	KeyMaterial
}

// NewDistributionKey reconstructs a distribution key from an absolute expiration time
func NewDistributionKey(spec CryptoSpec, expiration time.Time, key []byte) (*DistributionKey, error) {
	if err := checkExpirationRange(expiration); err != nil {
		return nil, err
	}

	material, err := NewKeyMaterial(spec, expiration, key)
	if err != nil {
		return nil, err
	}
	return &DistributionKey{KeyMaterial: material}, nil
}

// IssueDistributionKey creates a distribution key valid for validity from the clock's current time
func IssueDistributionKey(spec CryptoSpec, validity time.Duration, clk clock.Clock, key []byte) (*DistributionKey, error) {
	material, err := IssueKeyMaterial(spec, validity, clk, key)
	if err != nil {
		return nil, err
	}
	if err := checkExpirationRange(material.ExpirationTime()); err != nil {
		return nil, err
	}
	return &DistributionKey{KeyMaterial: material}, nil
}

// GenerateDistributionKey issues a distribution key with fresh key bytes read from random
func GenerateDistributionKey(spec CryptoSpec, validity time.Duration, clk clock.Clock, random io.Reader) (*DistributionKey, error) {
	key, err := readKey(spec, random)
	if err != nil {
		return nil, err
	}
	defer Zeroize(key)

	return IssueDistributionKey(spec, validity, clk, key)
}

// ParseDistributionKey decodes a DKE-1 body. The remaining length after the
// expiration field must equal spec.KeyLength().
func ParseDistributionKey(data []byte, spec CryptoSpec) (*DistributionKey, error) {
	if spec.IsZero() {
		return nil, fmt.Errorf("%w: crypto spec must be set", ErrInvalidArgument)
	}
	if len(data) < ExpirationTimeSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrMalformedEncoding, ExpirationTimeSize, len(data))
	}
	if keyLen := len(data) - ExpirationTimeSize; keyLen != spec.KeyLength() {
		return nil, fmt.Errorf("%w: %s expects a %d byte key, got %d", ErrMalformedEncoding, spec, spec.KeyLength(), keyLen)
	}

	expiration := time.UnixMilli(int64(getUint48(data[:ExpirationTimeSize])))

	return NewDistributionKey(spec, expiration, data[ExpirationTimeSize:])
}

// Serialize returns the DKE-1 encoding of the key.
// Keys built by this package always fit the 48-bit field; for a hand-built
// value only the low 48 bits of the expiration are written.
func (k *DistributionKey) Serialize() []byte {
	buf := make([]byte, ExpirationTimeSize, ExpirationTimeSize+len(k.key))
	putUint48(buf, uint64(k.expiration.UnixMilli()))
	return append(buf, k.key...)
}

// MarshalBinary implements encoding.BinaryMarshaler
func (k *DistributionKey) MarshalBinary() ([]byte, error) {
	if err := checkExpirationRange(k.expiration); err != nil {
		return nil, err
	}
	return k.Serialize(), nil
}

func checkExpirationRange(expiration time.Time) error {
	ms := expiration.UnixMilli()
	if ms < 0 || ms > MaxExpirationMillis {
		return fmt.Errorf("%w: expiration %d ms is outside the %d-byte field", ErrInvalidArgument, ms, ExpirationTimeSize)
	}
	return nil
}

func putUint48(b []byte, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	copy(b[:ExpirationTimeSize], tmp[8-ExpirationTimeSize:])
}

func getUint48(b []byte) uint64 {
	var tmp [8]byte
	copy(tmp[8-ExpirationTimeSize:], b[:ExpirationTimeSize])
	return binary.BigEndian.Uint64(tmp[:])
}
