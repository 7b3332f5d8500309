package codec

import (
	"context"
	"errors"
	"fmt"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
	"google.golang.org/protobuf/proto"

	"iotauth/distkey/crypto"
)

const (
	// MetadataEncodingDistributionKey marks a payload holding a wrapped DKE-1 body
	MetadataEncodingDistributionKey = "binary/dke-1"
	// MetadataCryptoSpec is the crypto spec name of the wrapped key
	MetadataCryptoSpec = "crypto-spec"
	// MetadataWrapperKeyID identifies the key the DKE-1 body is wrapped under
	MetadataWrapperKeyID = "wrapper-key-id"

	// PurposeKeyAtRest is the context purpose of stored distribution keys
	PurposeKeyAtRest = "distribution-key-at-rest"
)

// KeyEnvelope stores distribution keys at rest as wrapped DKE-1 payloads
type KeyEnvelope struct {
	wrapper   crypto.KeyWrapper
	cryptoCtx crypto.CryptoContext
}

// NewKeyEnvelope binds the wrapper and the purpose plus extra context to every stored key.
// Extra entries named purpose or wrapperKeyID are overridden.
func NewKeyEnvelope(wrapper crypto.KeyWrapper, extra map[string]string) *KeyEnvelope {
	return &KeyEnvelope{
		wrapper: wrapper,
		cryptoCtx: crypto.CryptoContext(extra).With(map[string]string{
			"purpose":      PurposeKeyAtRest,
			"wrapperKeyID": wrapper.KeyID(),
		}),
	}
}

// CryptoContext returns a copy of the context keys are wrapped under
func (e *KeyEnvelope) CryptoContext() crypto.CryptoContext {
	return e.cryptoCtx.With(nil)
}

// Seal wraps the DKE-1 encoding of key into a payload
func (e *KeyEnvelope) Seal(ctx context.Context, key *crypto.DistributionKey) (*commonpb.Payload, error) {
	encoded, err := key.MarshalBinary()
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(encoded)

	wrapped, err := e.wrapper.WrapKey(ctx, e.cryptoCtx, encoded)
	if err != nil {
		return nil, err
	}

	return e.FromMaterial(&crypto.Material{Key: key, WrappedKey: wrapped}), nil
}

// FromMaterial builds the payload for material already wrapped under this envelope's context
func (e *KeyEnvelope) FromMaterial(material *crypto.Material) *commonpb.Payload {
	return &commonpb.Payload{
		Metadata: map[string][]byte{
			converter.MetadataEncoding: []byte(MetadataEncodingDistributionKey),
			MetadataCryptoSpec:         []byte(material.Key.CryptoSpec().Name()),
			MetadataWrapperKeyID:       []byte(e.wrapper.KeyID()),
		},
		Data: material.WrappedKey,
	}
}

// Open unwraps a payload produced by Seal. Expired keys are returned as is.
func (e *KeyEnvelope) Open(ctx context.Context, p *commonpb.Payload) (*crypto.DistributionKey, error) {
	if string(p.GetMetadata()[converter.MetadataEncoding]) != MetadataEncodingDistributionKey {
		return nil, errors.New("payload is not a distribution key")
	}

	if keyID := string(p.GetMetadata()[MetadataWrapperKeyID]); keyID != e.wrapper.KeyID() {
		return nil, fmt.Errorf("distribution key is wrapped under %q, not %q", keyID, e.wrapper.KeyID())
	}

	spec, err := crypto.ParseCryptoSpec(string(p.GetMetadata()[MetadataCryptoSpec]))
	if err != nil {
		return nil, err
	}

	encoded, err := e.wrapper.UnwrapKey(ctx, e.cryptoCtx, p.GetData())
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(encoded)

	return crypto.ParseDistributionKey(encoded, spec)
}

// MarshalPayload encodes a payload for storage
func MarshalPayload(p *commonpb.Payload) ([]byte, error) {
	return proto.Marshal(p)
}

// UnmarshalPayload decodes a payload written by MarshalPayload
func UnmarshalPayload(data []byte) (*commonpb.Payload, error) {
	p := &commonpb.Payload{}
	if err := proto.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return p, nil
}
