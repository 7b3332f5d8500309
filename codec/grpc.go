package codec

import (
	"go.temporal.io/sdk/converter"
	"google.golang.org/grpc"
)

// NewGRPCClientInterceptor applies the codecs to payloads of outgoing Temporal requests
// and incoming responses
func NewGRPCClientInterceptor(codecs ...converter.PayloadCodec) (grpc.UnaryClientInterceptor, error) {
	return converter.NewPayloadCodecGRPCClientInterceptor(
		converter.PayloadCodecGRPCClientInterceptorOptions{
			Codecs: codecs,
		},
	)
}
