/*
Package export moves finished spans from the queue to a collector.

# Overview

A single worker goroutine drains the queue into batches and pushes them
through a Transport. Draining is triggered by the flush-interval ticker or
by the queue crossing the batch-size high-water mark, whichever comes
first. The worker moves through four states:

	idle -> exporting -> backoff -> closed

Transient transport failures are retried with exponential backoff up to the
configured attempt limit, then the batch is dropped and counted. Permanent
rejections (bad request, auth failure, oversized payload) drop immediately.
Producers are never blocked and never see export errors.

# Transports

Three protocols are supported: http_json (JSON over HTTP POST),
http_protobuf (OTLP protobuf over HTTP POST), and grpc (OTLP gRPC). The
HTTP transports optionally gzip their payloads. Custom transports can be
injected with WithTransport, which tests use to observe delivery.

# Shutdown

Shutdown stops the worker and makes one final delivery pass over whatever
is still queued, bounded by the caller's context. Spans that cannot be
delivered in time are discarded and counted, never silently lost.
*/
package export
