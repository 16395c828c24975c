package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/exesolution-com/tracepipe/trace"
)

// Protocol names accepted by NewTransport.
const (
	ProtocolHTTPJSON     = "http_json"
	ProtocolHTTPProtobuf = "http_protobuf"
	ProtocolGRPC         = "grpc"
)

// Compression names accepted by the HTTP transports.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
)

// ValidProtocol reports whether p names a supported transport.
func ValidProtocol(p string) bool {
	switch p {
	case ProtocolHTTPJSON, ProtocolHTTPProtobuf, ProtocolGRPC:
		return true
	default:
		return false
	}
}

// ValidCompression reports whether c names a supported compression mode.
func ValidCompression(c string) bool {
	switch c {
	case CompressionNone, CompressionGzip:
		return true
	default:
		return false
	}
}

// ErrPermanent marks remote rejections that retrying cannot fix (bad
// request, auth failure, payload too large). The worker drops such batches
// immediately instead of burning retries.
var ErrPermanent = errors.New("permanent export rejection")

// Permanent wraps err as a permanent rejection.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Batch is one export unit: an identified set of finished spans.
type Batch struct {
	ID    string
	Spans []*trace.Span
}

// Transport delivers batches to a collector endpoint. Export returns nil on
// acknowledgment, an error wrapping ErrPermanent on a rejection that must
// not be retried, and any other error for transient failures. Transports do
// not retry; the worker owns that.
type Transport interface {
	Export(ctx context.Context, batch Batch) error
	Shutdown(ctx context.Context) error
}

// NewTransport builds the transport named by settings.Protocol.
func NewTransport(settings Settings) (Transport, error) {
	switch settings.Protocol {
	case ProtocolHTTPJSON, ProtocolHTTPProtobuf:
		return newHTTPTransport(settings)
	case ProtocolGRPC:
		return newGRPCTransport(settings)
	default:
		return nil, fmt.Errorf("unknown exporter protocol %q", settings.Protocol)
	}
}
