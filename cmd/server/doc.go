// Package main is the entry point for the termstream server.
//
// termstream runs shell sessions on pseudo-terminals and streams their
// decoded output (text, display width, and control events) to HTTP and
// WebSocket clients.
//
// Configuration:
//   - Defaults for development
//   - Optional TOML or YAML file (--config)
//   - Environment variables (12-factor)
//   - CLI flags (override everything else)
//
// Usage:
//
//	# Production mode
//	./server --config /etc/termstream.toml --port 8080
//
//	# Development mode (colored logs, debug level)
//	./server --dev --log-level debug
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
