package crypto

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

const (
	MaxCacheSize = 128
	MaxKeyUsage  = 100
	KeyTTL       = 5 * time.Minute
)

func setupManagers(b testing.TB) (*CachingMaterialsManager, *CachingMaterialsManager) {
	wrapper, err := NewLocalWrapper("benchmark", repeatByte(0x5C, LocalMasterKeySize))
	require.NoError(b, err)

	issuer, err := NewIssuingMaterialsManager(IssuingOptions{
		Spec:     SpecAES128CBCHMACSHA256,
		Validity: time.Hour,
		Wrapper:  wrapper,
		Clock:    clock.New(),
	})
	require.NoError(b, err)

	cachingMM, err := NewCachingMaterialsManager(issuer, CachingConfig{
		MaxCache:        MaxCacheSize,
		MaxAge:          KeyTTL,
		MaxMessagesUsed: MaxKeyUsage,
	}, nil)
	require.NoError(b, err, "Failed to create caching materials manager")

	// single use forces a new key per call
	noCacheMM, err := NewCachingMaterialsManager(issuer, CachingConfig{
		MaxCache:        1,
		MaxMessagesUsed: 1,
	}, nil)
	require.NoError(b, err, "Failed to create no-cache materials manager")

	return cachingMM, noCacheMM
}

func BenchmarkSerialize(b *testing.B) {
	key, err := NewDistributionKey(SpecAES128CBCHMACSHA256, time.UnixMilli(1_700_000_000_000), repeatByte(0xAB, 48))
	require.NoError(b, err)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = key.Serialize()
	}
}

func BenchmarkParse(b *testing.B) {
	key, err := NewDistributionKey(SpecAES128CBCHMACSHA256, time.UnixMilli(1_700_000_000_000), repeatByte(0xAB, 48))
	require.NoError(b, err)
	data := key.Serialize()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseDistributionKey(data, SpecAES128CBCHMACSHA256); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncryption(b *testing.B) {
	cachingMM, noCacheMM := setupManagers(b)
	data := []byte("This is a sample text that will be encrypted for benchmarking with context")
	keyCtx := CryptoContext{"purpose": "encryption", "keyId": "benchmark"}
	payloadCtx := CryptoContext{"purpose": "authentication", "userId": "benchmark"}

	for _, bm := range []struct {
		name string
		mm   MaterialsManager
	}{
		{"WithCache", cachingMM},
		{"WithoutCache", noCacheMM},
	} {
		b.Run(bm.name, func(b *testing.B) {
			c := NewCipher(bm.mm, nil)
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := c.Encrypt(ctx, &EncryptInput{Plaintext: data, KeyContext: keyCtx, PayloadContext: payloadCtx}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
