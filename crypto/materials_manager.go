package crypto

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"iotauth/distkey/metrics"
)

// Material pairs a distribution key with its wrapped DKE-1 encoding.
// The caller owns the returned material and may Zero its key.
type Material struct {
	Key        *DistributionKey
	WrappedKey []byte
}

func (m *Material) clone() *Material {
	return &Material{
		Key:        &DistributionKey{KeyMaterial: m.Key.clone()},
		WrappedKey: append([]byte(nil), m.WrappedKey...),
	}
}

// MaterialsManager defines the interface for a materials manager.
// DecryptMaterial parses the unwrapped key under spec; a zero spec selects the manager's own.
type MaterialsManager interface {
	GetMaterial(ctx context.Context, cryptoCtx CryptoContext) (*Material, error)
	DecryptMaterial(ctx context.Context, cryptoCtx CryptoContext, spec CryptoSpec, wrappedKey []byte) (*Material, error)
}

// IssuingOptions configures an IssuingMaterialsManager
type IssuingOptions struct {
	Spec     CryptoSpec
	Validity time.Duration
	Wrapper  KeyWrapper
	// Clock defaults to the wall clock
	Clock clock.Clock
	// Random defaults to crypto/rand
	Random io.Reader
	// Meter records issued keys; nil disables metrics
	Meter metric.Meter
}

// IssuingMaterialsManager issues a fresh distribution key on every GetMaterial call
type IssuingMaterialsManager struct {
	spec     CryptoSpec
	validity time.Duration
	wrapper  KeyWrapper
	clock    clock.Clock
	random   io.Reader
	issued   metric.Int64Counter
}

// NewIssuingMaterialsManager creates a materials manager that issues and wraps distribution keys
func NewIssuingMaterialsManager(options IssuingOptions) (*IssuingMaterialsManager, error) {
	if options.Spec.IsZero() {
		return nil, fmt.Errorf("%w: crypto spec must be set", ErrInvalidArgument)
	}
	if options.Validity <= 0 {
		return nil, fmt.Errorf("%w: validity must be positive, got %s", ErrInvalidArgument, options.Validity)
	}
	if options.Wrapper == nil {
		return nil, fmt.Errorf("%w: key wrapper must be set", ErrInvalidArgument)
	}

	clk := options.Clock
	if clk == nil {
		clk = clock.New()
	}
	random := options.Random
	if random == nil {
		random = rand.Reader
	}
	meter := options.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(metrics.MeterName)
	}
	issued, err := meter.Int64Counter(metrics.KeysIssued)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", metrics.KeysIssued, err)
	}

	return &IssuingMaterialsManager{
		spec:     options.Spec,
		validity: options.Validity,
		wrapper:  options.Wrapper,
		clock:    clk,
		random:   random,
		issued:   issued,
	}, nil
}

// GetMaterial issues a new distribution key and wraps its DKE-1 encoding
func (m *IssuingMaterialsManager) GetMaterial(ctx context.Context, cryptoCtx CryptoContext) (*Material, error) {
	key, err := GenerateDistributionKey(m.spec, m.validity, m.clock, m.random)
	if err != nil {
		return nil, fmt.Errorf("failed to issue distribution key: %w", err)
	}

	encoded := key.Serialize()
	defer Zeroize(encoded)

	wrapped, err := m.wrapper.WrapKey(ctx, cryptoCtx, encoded)
	if err != nil {
		return nil, err
	}

	m.issued.Add(ctx, 1, metric.WithAttributes(attribute.String("crypto_spec", m.spec.Name())))

	return &Material{
		Key:        key,
		WrappedKey: wrapped,
	}, nil
}

// DecryptMaterial unwraps and parses a distribution key issued under spec
func (m *IssuingMaterialsManager) DecryptMaterial(ctx context.Context, cryptoCtx CryptoContext, spec CryptoSpec, wrappedKey []byte) (*Material, error) {
	if spec.IsZero() {
		spec = m.spec
	}

	encoded, err := m.wrapper.UnwrapKey(ctx, cryptoCtx, wrappedKey)
	if err != nil {
		return nil, err
	}
	defer Zeroize(encoded)

	key, err := ParseDistributionKey(encoded, spec)
	if err != nil {
		return nil, err
	}

	return &Material{
		Key:        key,
		WrappedKey: wrappedKey,
	}, nil
}

// Clock returns the clock keys are issued against
func (m *IssuingMaterialsManager) Clock() clock.Clock {
	return m.clock
}
