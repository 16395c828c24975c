package sink

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	collectorv1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/exesolution-com/tracepipe/internal/wire"
)

// maxBodyBytes caps one ingest request after decompression.
const maxBodyBytes = 16 << 20

func (s *Server) handleIngest(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var payload wire.Payload
	switch c.ContentType() {
	case "application/x-protobuf":
		var req collectorv1.ExportTraceServiceRequest
		if err := proto.Unmarshal(body, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "decode protobuf: " + err.Error()})
			return
		}
		payload = wire.FromOTLP(&req)
		payload.BatchID = c.GetHeader("X-Batch-ID")
	default:
		payload, err = wire.UnmarshalPayload(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "decode json: " + err.Error()})
			return
		}
	}

	s.store.add(payload)
	s.metrics.batches.Inc()
	s.metrics.spans.Add(float64(len(payload.Spans)))
	for _, rec := range payload.Spans {
		if rec.Status.Code == "ERROR" {
			s.metrics.errored.Inc()
		}
		s.hub.broadcast(spanEvent(rec))
	}
	s.logger.Debug("batch accepted",
		zap.String("batch_id", payload.BatchID),
		zap.Int("spans", len(payload.Spans)),
		zap.String("service", payload.Resource[wire.KeyServiceName]),
	)

	c.JSON(http.StatusOK, gin.H{
		"accepted": len(payload.Spans),
		"batch_id": payload.BatchID,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.snapshot())
}

func (s *Server) handleSpans(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	recs := s.store.recent(limit)
	c.JSON(http.StatusOK, gin.H{
		"count": len(recs),
		"spans": recs,
	})
}

func readBody(c *gin.Context) ([]byte, error) {
	reader := io.Reader(c.Request.Body)
	if c.GetHeader("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(reader)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		reader = zr
	}
	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, errBodyTooLarge
	}
	return body, nil
}

var errBodyTooLarge = errors.New("request body exceeds size limit")
