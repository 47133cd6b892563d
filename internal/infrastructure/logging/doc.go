// Package logging provides structured logging using uber/zap.
//
// Two encodings are available:
//   - json: one object per line for log shippers (production default)
//   - console: coloured, human-readable output (development default)
//
// Subsystems take a plain *zap.Logger. Component names the subsystem and
// Session tags lines with the session id so one shell's lifecycle can be
// followed across the registry, the broadcaster, and the stream handler.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	reg := session.NewRegistry(cfg, b, session.WithLogger(logger.Component("session")))
//	logger.Info("Server starting", zap.String("port", "8080"))
package logging
