/*
Package monitoring provides Prometheus metrics for termstream.

# Overview

Each Metrics value owns a private registry, so tests and embedded servers
can create as many as they like without duplicate-registration panics.
Go runtime and process collectors are registered alongside the service
metrics.

# Metrics

- HTTP requests and latency, labelled by route template
- Sessions active, created, finished (by status), and spawn failures
- Bytes read from ptys, chunks published, events by kind
- Unknown sequences by introducer (escape, csi, osc)
- Subscriber queue evictions and WebSocket traffic

Metrics satisfies the session registry's Recorder interface.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	reg := session.NewRegistry(cfg, b, session.WithRecorder(metrics))
*/
package monitoring
