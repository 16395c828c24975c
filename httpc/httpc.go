// Package httpc is an instrumented outbound HTTP client: every request runs
// inside a CLIENT span carried on the caller's context, with the trace
// handle injected into the request headers for the far side to continue.
//
// The client wraps resty over a pooled retryable transport. Retries happen
// inside the span, so one logical call is one span regardless of attempts.
//
//	client := httpc.New(p.Tracer(), httpc.DefaultConfig())
//	resp, err := client.Get(ctx, "https://api.example.com/v1/models")
package httpc

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/exesolution-com/tracepipe/trace"
)

// Config tunes the client. Zero values fall back to DefaultConfig.
type Config struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	UserAgent    string

	// RetryServerErrors also retries on 5xx responses, not just transport
	// failures.
	RetryServerErrors bool

	// RateLimit caps outgoing requests per second. Zero means unlimited.
	RateLimit float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 30 * time.Second,
		UserAgent:    "tracepipe-httpc/1.0",
	}
}

// Client wraps resty with tracing, rate limiting, and retries.
type Client struct {
	tracer *trace.Tracer

	mu      sync.RWMutex
	resty   *resty.Client
	limiter *rate.Limiter
}

// New builds a client producing CLIENT spans on tracer. A nil tracer means
// requests run untraced.
func New(tracer *trace.Tracer, cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = def.RetryWaitMin
	}
	if cfg.RetryWaitMax < cfg.RetryWaitMin {
		cfg.RetryWaitMax = def.RetryWaitMax
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	rc := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryMax).
		SetRetryWaitTime(cfg.RetryWaitMin).
		SetRetryMaxWaitTime(cfg.RetryWaitMax).
		SetHeader("User-Agent", cfg.UserAgent).
		SetTransport(retryClient.HTTPClient.Transport)

	if cfg.RetryServerErrors {
		rc.AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)
	}

	return &Client{
		tracer:  tracer,
		resty:   rc,
		limiter: limiter,
	}
}

// RequestOption mutates the underlying resty request before it is sent.
type RequestOption func(*resty.Request)

// WithBody sets the request body; structs and maps are JSON-encoded.
func WithBody(v interface{}) RequestOption {
	return func(r *resty.Request) { r.SetBody(v) }
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *resty.Request) { r.SetHeader(key, value) }
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(r *resty.Request) { r.SetQueryParam(key, value) }
}

// WithResult sets the target the response body is unmarshaled into on 2xx.
func WithResult(v interface{}) RequestOption {
	return func(r *resty.Request) { r.SetResult(v) }
}

// Get issues a traced GET.
func (c *Client) Get(ctx context.Context, target string, opts ...RequestOption) (*resty.Response, error) {
	return c.Do(ctx, "GET", target, opts...)
}

// Post issues a traced POST.
func (c *Client) Post(ctx context.Context, target string, opts ...RequestOption) (*resty.Response, error) {
	return c.Do(ctx, "POST", target, opts...)
}

// Put issues a traced PUT.
func (c *Client) Put(ctx context.Context, target string, opts ...RequestOption) (*resty.Response, error) {
	return c.Do(ctx, "PUT", target, opts...)
}

// Delete issues a traced DELETE.
func (c *Client) Delete(ctx context.Context, target string, opts ...RequestOption) (*resty.Response, error) {
	return c.Do(ctx, "DELETE", target, opts...)
}

// Do issues a traced request. The span covers rate-limiter waits and every
// retry attempt, and ends with the final outcome: ERROR on transport
// failure or any 4xx/5xx response.
func (c *Client) Do(ctx context.Context, method, target string, opts ...RequestOption) (*resty.Response, error) {
	if c.tracer == nil {
		return c.send(ctx, method, target, opts...)
	}

	span, ctx := c.tracer.Begin(ctx, spanName(method, target), trace.WithKind(trace.KindClient))
	span.SetAttributes(
		trace.String("http.method", method),
		trace.String("http.url", target),
	)

	resp, err := c.send(ctx, method, target, opts...)
	if err != nil {
		span.End(trace.ErrorFrom(err))
		return resp, err
	}

	status := resp.StatusCode()
	span.SetAttributes(trace.Int("http.status_code", int64(status)))
	if status >= 400 {
		span.End(trace.Error(fmt.Sprintf("http status %d", status)))
	} else {
		span.End(trace.OK())
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, target string, opts ...RequestOption) (*resty.Response, error) {
	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	c.mu.RLock()
	req := c.resty.R().SetContext(ctx)
	c.mu.RUnlock()

	trace.Inject(ctx, req.Header)
	for _, opt := range opts {
		opt(req)
	}
	return req.Execute(method, target)
}

// SetHeader adds a default header sent on every request.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resty.SetHeader(key, value)
}

// SetBearerAuth attaches a bearer token to every request.
func (c *Client) SetBearerAuth(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resty.SetAuthToken(token)
}

// SetBasicAuth attaches basic credentials to every request.
func (c *Client) SetBasicAuth(username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resty.SetBasicAuth(username, password)
}

// SetRateLimit reconfigures the outgoing request rate. Non-positive rps
// removes the limit.
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
}

// SetRetry reconfigures retry behavior.
func (c *Client) SetRetry(maxRetries int, minWait, maxWait time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resty.SetRetryCount(maxRetries).
		SetRetryWaitTime(minWait).
		SetRetryMaxWaitTime(maxWait)
}

// Resty exposes the underlying client for settings this wrapper does not
// cover. Requests built directly on it are not traced.
func (c *Client) Resty() *resty.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resty
}

func spanName(method, target string) string {
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		return method + " " + u.Host
	}
	return method
}
