package crypto

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
)

// AWSKMSOptions contains configuration options for AWSKMSProvider
type AWSKMSOptions struct {
	// KeyID is the ARN or ID of the KMS key to use
	KeyID string
	// EncryptionAlgorithm defaults to SYMMETRIC_DEFAULT if empty
	EncryptionAlgorithm string
}

// AWSKMSProvider implements KeyWrapper using AWS KMS
type AWSKMSProvider struct {
	kmsClient kmsiface.KMSAPI
	keyID     string
	algorithm string
}

// NewAWSKMSProvider creates a new KMS-based key wrapper
func NewAWSKMSProvider(kmsClient kmsiface.KMSAPI, options AWSKMSOptions) *AWSKMSProvider {
	algorithm := options.EncryptionAlgorithm
	if algorithm == "" {
		algorithm = kms.EncryptionAlgorithmSpecSymmetricDefault
	}

	return &AWSKMSProvider{
		kmsClient: kmsClient,
		keyID:     options.KeyID,
		algorithm: algorithm,
	}
}

func (k *AWSKMSProvider) KeyID() string {
	return k.keyID
}

// WrapKey encrypts a serialized key under the KMS key
func (k *AWSKMSProvider) WrapKey(ctx context.Context, cryptoCtx CryptoContext, plaintext []byte) ([]byte, error) {
	input := &kms.EncryptInput{
		KeyId:               aws.String(k.keyID),
		Plaintext:           plaintext,
		EncryptionAlgorithm: aws.String(k.algorithm),
		EncryptionContext:   toEncryptionContext(cryptoCtx),
	}

	result, err := k.kmsClient.EncryptWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap key: %w", err)
	}
	return result.CiphertextBlob, nil
}

// UnwrapKey decrypts a wrapped key using KMS
func (k *AWSKMSProvider) UnwrapKey(ctx context.Context, cryptoCtx CryptoContext, wrapped []byte) ([]byte, error) {
	input := &kms.DecryptInput{
		KeyId:               aws.String(k.keyID),
		CiphertextBlob:      wrapped,
		EncryptionAlgorithm: aws.String(k.algorithm),
		EncryptionContext:   toEncryptionContext(cryptoCtx),
	}

	result, err := k.kmsClient.DecryptWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap key: %w", err)
	}
	return result.Plaintext, nil
}

func toEncryptionContext(cryptoCtx CryptoContext) map[string]*string {
	encryptionContext := make(map[string]*string, len(cryptoCtx))
	for key, value := range cryptoCtx {
		encryptionContext[key] = aws.String(value)
	}
	return encryptionContext
}
