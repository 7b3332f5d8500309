package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CryptoContext is bound to wrapping and sealing operations as authenticated data
type CryptoContext map[string]string

// ContextToBytes converts a CryptoContext to a deterministic byte array.
// encoding/json writes map keys in sorted order.
func ContextToBytes(ctx CryptoContext) []byte {
	if len(ctx) == 0 {
		return []byte("{}")
	}

	data, err := json.Marshal(map[string]string(ctx))
	if err != nil {
		// string maps always marshal
		return []byte{}
	}
	return data
}

// ContextHash returns a hex sha256 over the JSON encoding of the context.
// Separators inside keys or values are escaped, so distinct contexts never share a hash.
func ContextHash(ctx CryptoContext) string {
	sum := sha256.Sum256(ContextToBytes(ctx))
	return hex.EncodeToString(sum[:])
}

// With returns a copy of the context with the given entries added
func (c CryptoContext) With(entries map[string]string) CryptoContext {
	out := make(CryptoContext, len(c)+len(entries))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range entries {
		out[k] = v
	}
	return out
}
