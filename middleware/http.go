package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/exesolution-com/tracepipe/trace"
)

// HTTP creates Gin middleware that traces every request with a SERVER span.
// Inbound trace headers continue the caller's trace; the span's handle is
// written back on the response headers before the handler runs.
func HTTP(tracer *trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if sc, ok := trace.Extract(c.Request.Header); ok {
			ctx = trace.ContextWithRemote(ctx, sc)
		}

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		span, ctx := tracer.Begin(ctx, name, trace.WithKind(trace.KindServer))
		span.SetAttributes(
			trace.String("http.method", c.Request.Method),
			trace.String("http.route", c.FullPath()),
			trace.String("http.url", c.Request.URL.String()),
			trace.String("http.host", c.Request.Host),
		)

		c.Request = c.Request.WithContext(ctx)
		trace.InjectSpanContext(span.Context(), c.Writer.Header())

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(trace.Int("http.status_code", int64(status)))

		switch {
		case len(c.Errors) > 0:
			span.End(trace.Error(c.Errors.Last().Error()))
		case status >= http.StatusInternalServerError:
			span.End(trace.Error(http.StatusText(status)))
		default:
			span.End(trace.OK())
		}
	}
}
