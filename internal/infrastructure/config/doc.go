// Package config provides 12-factor configuration for termstream.
//
// Values come from three layers, each overriding the one before:
// built-in defaults, an optional TOML or YAML file, and environment
// variables. The file format is chosen by extension.
//
// Configuration Sections:
//   - Server: listen address, shutdown timeout, CORS origins
//   - Logging: level and encoding
//   - Terminal: shell, pty read size, idle and grace periods, decoder limits
//   - Stream: subscriber queue depth and WebSocket timing
//   - RateLimit: per-IP request limiting
//
// Example Usage:
//
//	cfg, err := config.Load("/etc/termstream.toml")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("listening on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT, CORS_ORIGINS
//   - LOG_LEVEL, LOG_DEV, LOG_FORMAT
//   - TERM_SHELL, TERM_ARGS, TERM_DIR, TERM_TYPE, TERM_READ_BUFFER
//   - TERM_IDLE_AFTER, TERM_GRACE_PERIOD, TERM_MAX_PARAMS, TERM_MAX_OSC
//   - TERM_SPAWN_FAILURES, TERM_SPAWN_COOLDOWN
//   - STREAM_QUEUE_SIZE, STREAM_WRITE_TIMEOUT, STREAM_PING_INTERVAL
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
