package export

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	collectorv1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/exesolution-com/tracepipe/internal/wire"
)

// grpcTransport speaks OTLP over gRPC to a collector.
type grpcTransport struct {
	conn     *grpc.ClientConn
	client   collectorv1.TraceServiceClient
	settings Settings
}

func newGRPCTransport(settings Settings) (*grpcTransport, error) {
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if settings.Insecure {
		creds = insecure.NewCredentials()
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		// Keepalive tuned to detect broken connections without tripping
		// server-side ping limits.
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                60 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: false,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(10*1024*1024),
			grpc.MaxCallSendMsgSize(10*1024*1024),
		),
	}

	conn, err := grpc.Dial(settings.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial collector: %w", err)
	}

	return &grpcTransport{
		conn:     conn,
		client:   collectorv1.NewTraceServiceClient(conn),
		settings: settings,
	}, nil
}

func (t *grpcTransport) Export(ctx context.Context, batch Batch) error {
	ctx = metadata.AppendToOutgoingContext(ctx, "x-batch-id", batch.ID)
	for k, v := range t.settings.Headers {
		ctx = metadata.AppendToOutgoingContext(ctx, k, v)
	}

	req := wire.OTLPRequest(t.settings.ServiceName, t.settings.Environment, batch.Spans)
	if _, err := t.client.Export(ctx, req); err != nil {
		return grpcToError(err)
	}
	return nil
}

func (t *grpcTransport) Shutdown(context.Context) error {
	return t.conn.Close()
}

// grpcToError maps status codes onto the transport error contract.
func grpcToError(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument,
		codes.Unauthenticated,
		codes.PermissionDenied,
		codes.NotFound,
		codes.Unimplemented:
		return Permanent(err)
	default:
		return err
	}
}
