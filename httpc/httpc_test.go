package httpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exesolution-com/tracepipe/trace"
)

type captureSink struct {
	mu    sync.Mutex
	spans []*trace.Span
}

func (c *captureSink) OnEnd(s *trace.Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, s)
}

func (c *captureSink) all() []*trace.Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*trace.Span(nil), c.spans...)
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.RetryMax = 0
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 2 * time.Millisecond
	return cfg
}

func TestGetCreatesClientSpan(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := &captureSink{}
	tracer := trace.NewTracer(trace.WithSink(sink))
	client := New(tracer, fastConfig())

	resp, err := client.Get(context.Background(), srv.URL+"/models")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	spans := sink.all()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, trace.KindClient, s.Kind())
	assert.Equal(t, trace.CodeOK, s.Status().Code)
	assert.Contains(t, s.Name(), "GET ")

	method, ok := s.Attribute("http.method")
	require.True(t, ok)
	assert.Equal(t, "GET", method.Str())
	status, ok := s.Attribute("http.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusOK), status.Int())

	// The far side received this span's handle.
	assert.Equal(t, s.TraceID().String(), gotHeaders.Get(trace.HeaderTraceID))
	assert.Equal(t, s.SpanID().String(), gotHeaders.Get(trace.HeaderSpanID))
}

func TestClientSpanParentsOntoContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := &captureSink{}
	tracer := trace.NewTracer(trace.WithSink(sink))
	client := New(tracer, fastConfig())

	parent, ctx := tracer.Begin(context.Background(), "llm-call")
	_, err := client.Post(ctx, srv.URL+"/v1/chat", WithBody(map[string]string{"model": "m1"}))
	require.NoError(t, err)
	require.NoError(t, parent.End(trace.OK()))

	spans := sink.all()
	require.Len(t, spans, 2)
	child := spans[0]
	assert.Equal(t, parent.TraceID(), child.TraceID())
	assert.Equal(t, parent.SpanID(), child.ParentID())
}

func TestServerErrorMarksSpan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := &captureSink{}
	client := New(trace.NewTracer(trace.WithSink(sink)), fastConfig())

	resp, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode())

	spans := sink.all()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.CodeError, spans[0].Status().Code)
	assert.Contains(t, spans[0].Status().Message, "502")
}

func TestTransportFailureMarksSpan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	sink := &captureSink{}
	client := New(trace.NewTracer(trace.WithSink(sink)), fastConfig())

	_, err := client.Get(context.Background(), srv.URL)
	require.Error(t, err)

	spans := sink.all()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.CodeError, spans[0].Status().Code)
}

func TestRetriesStayInsideOneSpan(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		n := hits
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.RetryMax = 3
	cfg.RetryServerErrors = true
	sink := &captureSink{}
	client := New(trace.NewTracer(trace.WithSink(sink)), cfg)

	resp, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	mu.Lock()
	assert.Equal(t, 3, hits)
	mu.Unlock()

	spans := sink.all()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.CodeOK, spans[0].Status().Code)
}

func TestRateLimitRespectsContext(t *testing.T) {
	sink := &captureSink{}
	client := New(trace.NewTracer(trace.WithSink(sink)), fastConfig())
	client.SetRateLimit(0.001)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "http://localhost:0")
	require.Error(t, err)

	spans := sink.all()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.CodeError, spans[0].Status().Code)
}

func TestNilTracerStillWorks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(nil, fastConfig())
	resp, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestWithResultDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"m-large","tokens":128}`))
	}))
	defer srv.Close()

	client := New(trace.NewTracer(), fastConfig())

	var out struct {
		Model  string `json:"model"`
		Tokens int    `json:"tokens"`
	}
	resp, err := client.Get(context.Background(), srv.URL, WithResult(&out))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "m-large", out.Model)
	assert.Equal(t, 128, out.Tokens)
}
