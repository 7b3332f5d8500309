package crypto

import (
	"context"
	"fmt"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
)

// GCPKMSOptions contains configuration options for GCPKMSProvider
type GCPKMSOptions struct {
	// KeyName is the fully qualified name of the GCP KMS key to use
	// Format: projects/{project}/locations/{location}/keyRings/{keyRing}/cryptoKeys/{cryptoKey}
	KeyName string
}

// GCPKMSClient is the subset of the Cloud KMS client used for wrapping
type GCPKMSClient interface {
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error)
}

// GCPKMSProvider implements KeyWrapper using Google Cloud KMS
type GCPKMSProvider struct {
	kmsClient GCPKMSClient
	keyName   string
}

// NewGCPKMSProvider creates a new GCP KMS-based key wrapper
func NewGCPKMSProvider(kmsClient GCPKMSClient, options GCPKMSOptions) *GCPKMSProvider {
	return &GCPKMSProvider{
		kmsClient: kmsClient,
		keyName:   options.KeyName,
	}
}

func (g *GCPKMSProvider) KeyID() string {
	return g.keyName
}

// WrapKey encrypts a serialized key, binding the context as AAD
func (g *GCPKMSProvider) WrapKey(ctx context.Context, cryptoCtx CryptoContext, plaintext []byte) ([]byte, error) {
	resp, err := g.kmsClient.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:                        g.keyName,
		Plaintext:                   plaintext,
		AdditionalAuthenticatedData: ContextToBytes(cryptoCtx),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to wrap key: %w", err)
	}
	return resp.Ciphertext, nil
}

// UnwrapKey decrypts a wrapped key using GCP KMS
func (g *GCPKMSProvider) UnwrapKey(ctx context.Context, cryptoCtx CryptoContext, wrapped []byte) ([]byte, error) {
	resp, err := g.kmsClient.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:                        g.keyName,
		Ciphertext:                  wrapped,
		AdditionalAuthenticatedData: ContextToBytes(cryptoCtx),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap key: %w", err)
	}
	return resp.Plaintext, nil
}
