package codec

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"iotauth/distkey/crypto"
	"iotauth/distkey/metrics"
)

const (
	// MetadataEncodingEncrypted is "binary/encrypted"
	MetadataEncodingEncrypted = "binary/encrypted"
	// MetadataWrappedDistributionKey carries the wrapped distribution key of a payload
	MetadataWrappedDistributionKey = "wrapped-distribution-key"

	// PurposeDistributionKeyAuth is the purpose for distribution key wrapping
	PurposeDistributionKeyAuth = "distribution-key-auth"
	// PurposePayloadAuth is the purpose for payload authentication
	PurposePayloadAuth = "payload-auth"
)

// Codec implements PayloadCodec by sealing payloads with distribution keys
type Codec struct {
	KeyID        string
	Cipher       *crypto.Cipher
	CodecContext map[string]string

	logger          *zap.Logger
	encryptRequests metric.Int64Counter
	encryptErrors   metric.Int64Counter
	encryptLatency  metric.Float64Histogram
	decryptRequests metric.Int64Counter
	decryptErrors   metric.Int64Counter
	decryptLatency  metric.Float64Histogram
}

var _ converter.PayloadCodec = (*Codec)(nil)

// NewEncryptionCodec creates a codec for the wrapper key ID. A nil meter disables metrics.
func NewEncryptionCodec(cipher *crypto.Cipher, codecContext map[string]string, keyID string, meter metric.Meter, logger *zap.Logger) (*Codec, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(metrics.MeterName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Codec{
		KeyID:        keyID,
		Cipher:       cipher,
		CodecContext: codecContext,
		logger:       logger,
	}

	var err error
	if c.encryptRequests, err = meter.Int64Counter(metrics.EncryptRequests); err != nil {
		return nil, err
	}
	if c.encryptErrors, err = meter.Int64Counter(metrics.EncryptErrors); err != nil {
		return nil, err
	}
	if c.encryptLatency, err = meter.Float64Histogram(metrics.EncryptLatency, metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if c.decryptRequests, err = meter.Int64Counter(metrics.DecryptRequests); err != nil {
		return nil, err
	}
	if c.decryptErrors, err = meter.Int64Counter(metrics.DecryptErrors); err != nil {
		return nil, err
	}
	if c.decryptLatency, err = meter.Float64Histogram(metrics.DecryptLatency, metric.WithUnit("s")); err != nil {
		return nil, err
	}

	return c, nil
}

// createCryptoContext creates a crypto context for the given purpose, key ID and codec context.
// purpose and wrapperKeyID cannot be overridden by the codec context.
func (e *Codec) createCryptoContext(purpose, keyID string) crypto.CryptoContext {
	return crypto.CryptoContext(e.CodecContext).With(map[string]string{
		"purpose":      purpose,
		"wrapperKeyID": keyID,
	})
}

// Encode implements converter.PayloadCodec.Encode.
func (e *Codec) Encode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	ctx := context.Background()
	result := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		origBytes, err := proto.Marshal(p)
		if err != nil {
			return payloads, err
		}

		clk := e.Cipher.Clock()
		start := clk.Now()
		e.encryptRequests.Add(ctx, 1)
		out, err := e.Cipher.Encrypt(ctx, &crypto.EncryptInput{
			Plaintext:      origBytes,
			KeyContext:     e.createCryptoContext(PurposeDistributionKeyAuth, e.KeyID),
			PayloadContext: e.createCryptoContext(PurposePayloadAuth, e.KeyID),
		})
		e.encryptLatency.Record(ctx, clk.Since(start).Seconds())
		if err != nil {
			e.encryptErrors.Add(ctx, 1)
			e.logger.Warn("payload encryption failed", zap.Error(err))
			return payloads, err
		}

		result[i] = &commonpb.Payload{
			Metadata: map[string][]byte{
				converter.MetadataEncoding:     []byte(MetadataEncodingEncrypted),
				MetadataWrapperKeyID:           []byte(e.KeyID),
				MetadataCryptoSpec:             []byte(out.Spec.Name()),
				MetadataWrappedDistributionKey: out.WrappedKey,
			},
			Data: out.Ciphertext,
		}
	}

	return result, nil
}

// Decode implements converter.PayloadCodec.Decode.
func (e *Codec) Decode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	ctx := context.Background()
	result := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		// Only if it's encrypted
		if string(p.GetMetadata()[converter.MetadataEncoding]) != MetadataEncodingEncrypted {
			result[i] = p
			continue
		}

		keyID, ok := p.Metadata[MetadataWrapperKeyID]
		if !ok {
			return payloads, fmt.Errorf("no wrapper key id")
		}

		wrappedKey, ok := p.Metadata[MetadataWrappedDistributionKey]
		if !ok {
			return payloads, fmt.Errorf("no wrapped distribution key in payload")
		}

		// payloads without a spec were sealed under the configured one
		var spec crypto.CryptoSpec
		if name, ok := p.Metadata[MetadataCryptoSpec]; ok {
			var err error
			if spec, err = crypto.ParseCryptoSpec(string(name)); err != nil {
				return payloads, err
			}
		}

		clk := e.Cipher.Clock()
		start := clk.Now()
		e.decryptRequests.Add(ctx, 1)
		decrypted, err := e.Cipher.Decrypt(ctx, &crypto.DecryptInput{
			Ciphertext:     p.Data,
			WrappedKey:     wrappedKey,
			Spec:           spec,
			KeyContext:     e.createCryptoContext(PurposeDistributionKeyAuth, string(keyID)),
			PayloadContext: e.createCryptoContext(PurposePayloadAuth, string(keyID)),
		})
		e.decryptLatency.Record(ctx, clk.Since(start).Seconds())
		if err != nil {
			e.decryptErrors.Add(ctx, 1)
			e.logger.Warn("payload decryption failed", zap.ByteString("key_id", keyID), zap.Error(err))
			return payloads, err
		}

		result[i] = &commonpb.Payload{}
		if err := proto.Unmarshal(decrypted, result[i]); err != nil {
			return payloads, err
		}
	}

	return result, nil
}
