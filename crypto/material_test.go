package crypto

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyMaterial(t *testing.T) {
	raw := repeatByte(0x42, 16)
	expiration := time.Date(2030, 1, 2, 3, 4, 5, 678_900_000, time.UTC)

	m, err := NewKeyMaterial(SpecAES128GCM, expiration, raw)
	require.NoError(t, err)

	assert.Equal(t, SpecAES128GCM, m.CryptoSpec())
	assert.Equal(t, expiration.UnixMilli(), m.ExpirationTime().UnixMilli())
	assert.True(t, m.ExpirationTime().Equal(expiration.Truncate(time.Millisecond)))

	raw[0] = 0
	assert.Equal(t, byte(0x42), m.KeyBytes()[0], "constructor should copy the key")

	out := m.KeyBytes()
	out[1] = 0
	assert.Equal(t, byte(0x42), m.KeyBytes()[1], "KeyBytes should return a copy")

	_, err = NewKeyMaterial(CryptoSpec{}, expiration, raw)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestIssueKeyMaterial(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.UnixMilli(10_000))

	m, err := IssueKeyMaterial(SpecAES256GCM, 5*time.Second, clk, repeatByte(1, 32))
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), m.ExpirationTime().UnixMilli())

	zero, err := IssueKeyMaterial(SpecAES256GCM, 0, clk, repeatByte(1, 32))
	require.NoError(t, err)
	assert.True(t, zero.IsExpired(clk.Now()), "zero validity expires immediately")

	_, err = IssueKeyMaterial(SpecAES256GCM, -time.Millisecond, clk, repeatByte(1, 32))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestKeyMaterial_Monotonicity(t *testing.T) {
	clk := clock.NewMock()
	m, err := IssueKeyMaterial(SpecAES128GCM, time.Minute, clk, repeatByte(1, 16))
	require.NoError(t, err)

	assert.False(t, m.IsExpired(clk.Now()))
	clk.Add(30 * time.Second)
	assert.False(t, m.IsExpired(clk.Now()))
	assert.Equal(t, 30*time.Second, m.Remaining(clk.Now()))
	clk.Add(30 * time.Second)
	assert.True(t, m.IsExpired(clk.Now()))
	clk.Add(time.Hour)
	assert.True(t, m.IsExpired(clk.Now()))
}

func TestKeyMaterial_CipherAndMACKey(t *testing.T) {
	raw := append(repeatByte(0xC1, 16), repeatByte(0x3A, 32)...)
	m, err := NewKeyMaterial(SpecAES128CBCHMACSHA256, time.UnixMilli(1), raw)
	require.NoError(t, err)

	assert.Equal(t, repeatByte(0xC1, 16), m.CipherKey())
	assert.Equal(t, repeatByte(0x3A, 32), m.MACKey())

	gcm, err := NewKeyMaterial(SpecAES128GCM, time.UnixMilli(1), repeatByte(0xC1, 16))
	require.NoError(t, err)
	assert.Equal(t, repeatByte(0xC1, 16), gcm.CipherKey())
	assert.Nil(t, gcm.MACKey())
}

func TestKeyMaterial_StringHidesKey(t *testing.T) {
	m, err := NewKeyMaterial(SpecAES128GCM, time.UnixMilli(1000), repeatByte(0xAB, 16))
	require.NoError(t, err)

	s := m.String()
	assert.Contains(t, s, "AES-128-GCM")
	assert.Contains(t, s, "1970-01-01T00:00:01Z")
	assert.Contains(t, s, "Key Length: 16")
	assert.False(t, strings.Contains(strings.ToLower(s), "abab"))
}

func TestKeyMaterial_Zero(t *testing.T) {
	m, err := NewKeyMaterial(SpecAES128GCM, time.UnixMilli(1000), repeatByte(0xAB, 16))
	require.NoError(t, err)

	m.Zero()
	assert.Equal(t, make([]byte, 16), m.KeyBytes())
}

func TestKeyMaterial_ConcurrentReaders(t *testing.T) {
	key, err := NewDistributionKey(SpecAES128GCM, time.UnixMilli(1000), repeatByte(0xAB, 16))
	require.NoError(t, err)
	expected := key.Serialize()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, expected, key.Serialize())
				assert.True(t, key.IsExpired(time.UnixMilli(1000)))
			}
		}()
	}
	wg.Wait()
}
