package crypto

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"iotauth/distkey/metrics"
)

// CachingConfig holds configuration for caching materials manager
type CachingConfig struct {
	MaxCache int
	// MaxAge caps how long a cached material is reused; zero means until the key expires
	MaxAge time.Duration
	// MaxMessagesUsed caps how often a cached material is handed out; zero means unlimited
	MaxMessagesUsed int
	// RefreshBefore reissues a key this long before it expires
	RefreshBefore time.Duration
	Clock         clock.Clock
}

type cachedMaterial struct {
	material   *Material
	cachedAt   time.Time
	usageCount int
}

// CachingMaterialsManager manages distribution keys with caching
type CachingMaterialsManager struct {
	cache           *lru.Cache
	mutex           sync.Mutex
	maxAge          time.Duration
	maxMessagesUsed int
	refreshBefore   time.Duration
	clock           clock.Clock
	underlyingMM    MaterialsManager
	instruments     *materialsInstruments
}

// NewCachingMaterialsManager creates a new caching materials manager.
// A nil meter disables metrics.
func NewCachingMaterialsManager(
	underlyingMM MaterialsManager,
	config CachingConfig,
	meter metric.Meter,
) (*CachingMaterialsManager, error) {
	cache, err := lru.New(config.MaxCache)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	if config.RefreshBefore < 0 {
		return nil, fmt.Errorf("%w: refresh window must not be negative", ErrInvalidArgument)
	}

	if meter == nil {
		meter = noop.NewMeterProvider().Meter(metrics.MeterName)
	}
	instruments, err := newMaterialsInstruments(meter)
	if err != nil {
		return nil, err
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &CachingMaterialsManager{
		cache:           cache,
		maxAge:          config.MaxAge,
		maxMessagesUsed: config.MaxMessagesUsed,
		refreshBefore:   config.RefreshBefore,
		clock:           clk,
		underlyingMM:    underlyingMM,
		instruments:     instruments,
	}, nil
}

// GetMaterial returns a copy of the cached distribution key for the context, issuing a new one
// when the cached key is about to expire or has been used too often
func (c *CachingMaterialsManager) GetMaterial(ctx context.Context, cryptoCtx CryptoContext) (*Material, error) {
	cacheKey := ContextHash(cryptoCtx)

	if material, ok := c.lookup(cacheKey, c.refreshBefore); ok {
		return material, nil
	}

	start := c.clock.Now()
	c.instruments.getRequests.Add(ctx, 1)
	material, err := c.underlyingMM.GetMaterial(ctx, cryptoCtx)
	c.instruments.getLatency.Record(ctx, c.clock.Since(start).Seconds())
	if err != nil {
		c.instruments.getErrors.Add(ctx, 1)
		return nil, err
	}
	c.instruments.getSuccess.Add(ctx, 1)

	c.store(cacheKey, material)
	return material, nil
}

// DecryptMaterial returns a copy of the cached plaintext key for a wrapped key
func (c *CachingMaterialsManager) DecryptMaterial(ctx context.Context, cryptoCtx CryptoContext, spec CryptoSpec, wrappedKey []byte) (*Material, error) {
	cacheKey := createDecryptionCacheKey(cryptoCtx, spec, wrappedKey)

	if material, ok := c.lookup(cacheKey, 0); ok {
		return material, nil
	}

	start := c.clock.Now()
	c.instruments.decryptRequests.Add(ctx, 1)
	material, err := c.underlyingMM.DecryptMaterial(ctx, cryptoCtx, spec, wrappedKey)
	c.instruments.decryptLatency.Record(ctx, c.clock.Since(start).Seconds())
	if err != nil {
		c.instruments.decryptErrors.Add(ctx, 1)
		return nil, err
	}
	c.instruments.decryptSuccess.Add(ctx, 1)

	c.store(cacheKey, material)
	return material, nil
}

func (c *CachingMaterialsManager) lookup(cacheKey string, margin time.Duration) (*Material, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	value, found := c.cache.Get(cacheKey)
	if !found {
		return nil, false
	}

	entry := value.(*cachedMaterial)
	if !c.isValid(entry, margin) {
		c.cache.Remove(cacheKey)
		return nil, false
	}

	entry.usageCount++
	return entry.material.clone(), true
}

func (c *CachingMaterialsManager) store(cacheKey string, material *Material) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache.Add(cacheKey, &cachedMaterial{
		material:   material.clone(),
		cachedAt:   c.clock.Now(),
		usageCount: 1,
	})
}

// isValid checks expiration, age and usage count of a cached entry
func (c *CachingMaterialsManager) isValid(entry *cachedMaterial, margin time.Duration) bool {
	now := c.clock.Now()

	if entry.material.Key.IsExpired(now.Add(margin)) {
		return false
	}
	if c.maxAge > 0 && now.Sub(entry.cachedAt) > c.maxAge {
		return false
	}
	if c.maxMessagesUsed > 0 && entry.usageCount >= c.maxMessagesUsed {
		return false
	}
	return true
}

// Len returns the number of cached materials
func (c *CachingMaterialsManager) Len() int {
	return c.cache.Len()
}

// the context hash is fixed width and the spec name is NUL terminated
func createDecryptionCacheKey(cryptoCtx CryptoContext, spec CryptoSpec, wrappedKey []byte) string {
	h := sha256.New()
	h.Write([]byte(ContextHash(cryptoCtx)))
	h.Write([]byte(spec.Name()))
	h.Write([]byte{0})
	h.Write(wrappedKey)
	return hex.EncodeToString(h.Sum(nil))
}

type materialsInstruments struct {
	getRequests     metric.Int64Counter
	getErrors       metric.Int64Counter
	getSuccess      metric.Int64Counter
	getLatency      metric.Float64Histogram
	decryptRequests metric.Int64Counter
	decryptErrors   metric.Int64Counter
	decryptSuccess  metric.Int64Counter
	decryptLatency  metric.Float64Histogram
}

func newMaterialsInstruments(meter metric.Meter) (*materialsInstruments, error) {
	var (
		m   materialsInstruments
		err error
	)

	counters := []struct {
		dst  *metric.Int64Counter
		name string
	}{
		{&m.getRequests, metrics.MaterialsManagerGetRequests},
		{&m.getErrors, metrics.MaterialsManagerGetErrors},
		{&m.getSuccess, metrics.MaterialsManagerGetSuccess},
		{&m.decryptRequests, metrics.MaterialsManagerDecryptRequests},
		{&m.decryptErrors, metrics.MaterialsManagerDecryptErrors},
		{&m.decryptSuccess, metrics.MaterialsManagerDecryptSuccess},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name); err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
	}

	if m.getLatency, err = meter.Float64Histogram(metrics.MaterialsManagerGetLatency, metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	if m.decryptLatency, err = meter.Float64Histogram(metrics.MaterialsManagerDecryptLatency, metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}

	return &m, nil
}
