// Package server wires configuration, logging, metrics, the session
// registry, and the HTTP/WebSocket API into one process.
//
// Server Lifecycle:
//  1. Load configuration from file and environment
//  2. Initialize logger and metrics
//  3. Build the broadcaster and session registry
//  4. Setup HTTP routes and middleware
//  5. Start HTTP server
//  6. Graceful shutdown: stop HTTP, close every session
//
// Example Usage:
//
//	cfg, err := config.Load(path)
//	srv, err := server.NewServer(cfg)
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
