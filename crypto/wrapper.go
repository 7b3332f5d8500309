package crypto

import "context"

// KeyWrapper protects serialized distribution keys at rest
type KeyWrapper interface {
	// KeyID identifies the wrapping key
	KeyID() string
	WrapKey(ctx context.Context, cryptoCtx CryptoContext, plaintext []byte) ([]byte, error)
	UnwrapKey(ctx context.Context, cryptoCtx CryptoContext, wrapped []byte) ([]byte, error)
}
