package crypto

import (
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
)

// KeyMaterial is a symmetric key bound to a crypto spec and an absolute expiration time.
// It is immutable once constructed and safe for concurrent readers.
type KeyMaterial struct {
	spec       CryptoSpec
	expiration time.Time
	key        []byte
}

// NewKeyMaterial reconstructs key material from an absolute expiration time and raw key bytes.
// The key bytes are copied; their length is not checked against the spec.
func NewKeyMaterial(spec CryptoSpec, expiration time.Time, key []byte) (KeyMaterial, error) {
	if spec.IsZero() {
		return KeyMaterial{}, fmt.Errorf("%w: crypto spec must be set", ErrInvalidArgument)
	}

	return KeyMaterial{
		spec:       spec,
		expiration: toMillis(expiration),
		key:        append([]byte(nil), key...),
	}, nil
}

// IssueKeyMaterial creates key material that expires validity after the clock's current time
func IssueKeyMaterial(spec CryptoSpec, validity time.Duration, clk clock.Clock, key []byte) (KeyMaterial, error) {
	if validity < 0 {
		return KeyMaterial{}, fmt.Errorf("%w: validity must not be negative, got %s", ErrInvalidArgument, validity)
	}
	if clk == nil {
		clk = clock.New()
	}

	return NewKeyMaterial(spec, clk.Now().Add(validity), key)
}

// GenerateKeyMaterial issues key material with spec.KeyLength() bytes read from random
func GenerateKeyMaterial(spec CryptoSpec, validity time.Duration, clk clock.Clock, random io.Reader) (KeyMaterial, error) {
	key, err := readKey(spec, random)
	if err != nil {
		return KeyMaterial{}, err
	}
	defer Zeroize(key)

	return IssueKeyMaterial(spec, validity, clk, key)
}

func (m KeyMaterial) CryptoSpec() CryptoSpec    { return m.spec }
func (m KeyMaterial) ExpirationTime() time.Time { return m.expiration }

// KeyBytes returns a copy of the raw key bytes
func (m KeyMaterial) KeyBytes() []byte {
	return append([]byte(nil), m.key...)
}

// CipherKey returns a copy of the cipher part of the raw key
func (m KeyMaterial) CipherKey() []byte {
	n := min(m.spec.CipherKeySize(), len(m.key))
	return append([]byte(nil), m.key[:n]...)
}

// MACKey returns a copy of the MAC part of the raw key, nil if the spec has none
func (m KeyMaterial) MACKey() []byte {
	if m.spec.MACKeySize() == 0 || len(m.key) <= m.spec.CipherKeySize() {
		return nil
	}
	return append([]byte(nil), m.key[m.spec.CipherKeySize():]...)
}

// IsExpired reports whether ref is at or after the expiration time
func (m KeyMaterial) IsExpired(ref time.Time) bool {
	return !ref.Before(m.expiration)
}

// Remaining returns how long the key stays valid after ref, zero once expired
func (m KeyMaterial) Remaining(ref time.Time) time.Duration {
	if m.IsExpired(ref) {
		return 0
	}
	return m.expiration.Sub(ref)
}

// Zero overwrites the held key bytes. Copies of the value share those bytes,
// so only the exclusive owner of a key may call Zero, and nobody may use it afterwards.
func (m KeyMaterial) Zero() {
	Zeroize(m.key)
}

// clone returns a copy that does not share key bytes with m
func (m KeyMaterial) clone() KeyMaterial {
	m.key = append([]byte(nil), m.key...)
	return m
}

func (m KeyMaterial) String() string {
	return fmt.Sprintf("Spec: %s\tExpiration Time: %s\tKey Length: %d",
		m.spec, m.expiration.UTC().Format(time.RFC3339Nano), len(m.key))
}

// Zeroize overwrites buf with zeros
func Zeroize(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

func readKey(spec CryptoSpec, random io.Reader) ([]byte, error) {
	if spec.IsZero() {
		return nil, fmt.Errorf("%w: crypto spec must be set", ErrInvalidArgument)
	}
	if random == nil {
		return nil, fmt.Errorf("%w: random source must be set", ErrInvalidArgument)
	}

	key := make([]byte, spec.KeyLength())
	if _, err := io.ReadFull(random, key); err != nil {
		return nil, fmt.Errorf("failed to read key bytes: %w", err)
	}
	return key, nil
}

// toMillis drops sub-millisecond precision and the monotonic clock reading
func toMillis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli())
}
