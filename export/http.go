package export

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/gzip"
	"google.golang.org/protobuf/proto"

	"github.com/exesolution-com/tracepipe/internal/wire"
)

// httpTransport POSTs batches to a collector over HTTP, as sonic-encoded
// JSON or OTLP protobuf depending on the configured protocol.
type httpTransport struct {
	client   *resty.Client
	settings Settings
	protobuf bool
}

func newHTTPTransport(settings Settings) (*httpTransport, error) {
	client := resty.New().
		SetHeader("User-Agent", "tracepipe/1.0")

	return &httpTransport{
		client:   client,
		settings: settings,
		protobuf: settings.Protocol == ProtocolHTTPProtobuf,
	}, nil
}

func (t *httpTransport) Export(ctx context.Context, batch Batch) error {
	body, contentType, err := t.encode(batch)
	if err != nil {
		return Permanent(fmt.Errorf("encode batch: %w", err))
	}

	req := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("X-Batch-ID", batch.ID).
		SetBody(body)
	for k, v := range t.settings.Headers {
		req.SetHeader(k, v)
	}
	if t.settings.Compression == CompressionGzip {
		req.SetHeader("Content-Encoding", "gzip")
	}

	resp, err := req.Post(t.settings.Endpoint)
	if err != nil {
		return fmt.Errorf("post %s: %w", t.settings.Endpoint, err)
	}
	return statusToError(resp.StatusCode())
}

func (t *httpTransport) encode(batch Batch) (body []byte, contentType string, err error) {
	if t.protobuf {
		body, err = proto.Marshal(wire.OTLPRequest(t.settings.ServiceName, t.settings.Environment, batch.Spans))
		contentType = "application/x-protobuf"
	} else {
		body, err = wire.BuildPayload(batch.ID, t.settings.ServiceName, t.settings.Environment, batch.Spans).Marshal()
		contentType = "application/json"
	}
	if err != nil {
		return nil, "", err
	}
	if t.settings.Compression == CompressionGzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return nil, "", err
		}
		if err := zw.Close(); err != nil {
			return nil, "", err
		}
		body = buf.Bytes()
	}
	return body, contentType, nil
}

func (t *httpTransport) Shutdown(context.Context) error {
	t.client.GetClient().CloseIdleConnections()
	return nil
}

// statusToError maps a collector response status onto the transport error
// contract: 2xx acknowledges, a handful of client errors reject the batch
// for good, everything else is worth retrying.
func statusToError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusBadRequest,
		code == http.StatusUnauthorized,
		code == http.StatusForbidden,
		code == http.StatusNotFound,
		code == http.StatusRequestEntityTooLarge:
		return Permanent(fmt.Errorf("collector returned %d", code))
	default:
		return fmt.Errorf("collector returned %d", code)
	}
}
