/*
Package monitoring provides Prometheus metrics for the pipeline itself.

# Overview

The pipeline moves other people's telemetry; this package answers the
question of whether it is doing so. Counters cover every exit a span can
take (exported, evicted, unsampled, dropped after retries, discarded at
shutdown), so the sum of exits always equals the number of spans ended.

# Usage

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	metrics.RecordEnded()
	metrics.RecordKept(monitoring.KeepSampled)

Expose the registry via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
*/
package monitoring
