package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/exesolution-com/tracepipe/export"
	"github.com/exesolution-com/tracepipe/redact"
	"github.com/exesolution-com/tracepipe/sampler"
)

// ErrInvalid is wrapped by every validation failure, so callers can test
// for configuration errors as a class with errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the whole configuration and returns the first problem
// found. A nil return means a pipeline can be built from this configuration
// without further errors.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("%w: service_name must not be empty", ErrInvalid)
	}
	if _, err := sampler.New(c.Sampler.Strategy, c.Sampler.Ratio); err != nil {
		return fmt.Errorf("%w: sampler: %v", ErrInvalid, err)
	}
	if _, err := redact.New(c.Redaction.Mode, c.Redaction.Pattern, c.Redaction.Keys...); err != nil {
		return fmt.Errorf("%w: redaction: %v", ErrInvalid, err)
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("%w: queue_capacity must be positive, got %d", ErrInvalid, c.Queue.Capacity)
	}
	if c.Queue.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: max_batch_size must be positive, got %d", ErrInvalid, c.Queue.MaxBatchSize)
	}
	if c.Queue.FlushInterval <= 0 {
		return fmt.Errorf("%w: flush_interval must be positive, got %s", ErrInvalid, c.Queue.FlushInterval.Std())
	}
	return c.validateExporter()
}

func (c *Config) validateExporter() error {
	e := c.Exporter
	if !e.Enabled {
		return nil
	}
	if !export.ValidProtocol(e.Protocol) {
		return fmt.Errorf("%w: exporter_protocol %q (want %s, %s, or %s)",
			ErrInvalid, e.Protocol, export.ProtocolHTTPJSON, export.ProtocolHTTPProtobuf, export.ProtocolGRPC)
	}
	if !export.ValidCompression(e.Compression) {
		return fmt.Errorf("%w: exporter_compression %q (want %s or %s)",
			ErrInvalid, e.Compression, export.CompressionNone, export.CompressionGzip)
	}
	if err := validateEndpoint(e.Protocol, e.Endpoint); err != nil {
		return fmt.Errorf("%w: exporter_endpoint: %v", ErrInvalid, err)
	}
	if e.Timeout <= 0 {
		return fmt.Errorf("%w: export_timeout must be positive, got %s", ErrInvalid, e.Timeout.Std())
	}
	if e.RetryLimit < 0 {
		return fmt.Errorf("%w: retry_limit must not be negative, got %d", ErrInvalid, e.RetryLimit)
	}
	if e.BackoffInitial <= 0 {
		return fmt.Errorf("%w: backoff_initial must be positive, got %s", ErrInvalid, e.BackoffInitial.Std())
	}
	if e.BackoffMax < e.BackoffInitial {
		return fmt.Errorf("%w: backoff_max %s below backoff_initial %s",
			ErrInvalid, e.BackoffMax.Std(), e.BackoffInitial.Std())
	}
	return nil
}

func validateEndpoint(protocol, endpoint string) error {
	if endpoint == "" {
		return errors.New("must not be empty")
	}
	if protocol == export.ProtocolGRPC {
		if _, _, err := net.SplitHostPort(endpoint); err != nil {
			return fmt.Errorf("%q is not host:port", endpoint)
		}
		return nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", endpoint)
	}
	return nil
}
