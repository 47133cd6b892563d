// Package middleware provides the HTTP middleware stack for the session API.
//
// Middleware stack includes:
//   - RequestLogger: request ids and structured access logs via zap
//   - CORS: cross-origin access for browser dashboards
//   - RateLimit: per-IP token buckets with idle-client eviction
//   - BodyLimit: caps request body size
//   - Gzip: compresses JSON responses via klauspost/compress
//
// Example Usage:
//
//	router.Use(middleware.RequestLogger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
