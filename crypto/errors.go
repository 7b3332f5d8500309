package crypto

import "errors"

var (
	// ErrInvalidArgument is returned for structurally impossible constructor input
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedEncoding is returned when a DKE-1 body cannot be parsed
	ErrMalformedEncoding = errors.New("malformed distribution key encoding")

	// ErrUnsupportedCryptoSpec is returned for crypto spec names that are not known
	ErrUnsupportedCryptoSpec = errors.New("unsupported crypto spec")

	// ErrKeyExpired is returned by consumers that refuse to use an expired key
	ErrKeyExpired = errors.New("key expired")
)
