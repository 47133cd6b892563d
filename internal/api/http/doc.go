// Package http exposes the session registry over a JSON REST API.
//
// Routes:
//   - POST   /sessions             create a session from {cols, rows}
//   - GET    /sessions             list live sessions
//   - GET    /sessions/:id         one session's info
//   - POST   /sessions/:id/resize  change the window size
//   - POST   /sessions/:id/input   write {data} to the pty
//   - DELETE /sessions/:id         close a session
//   - GET    /health               liveness plus a metrics snapshot
//
// Responses follow the {"success": bool, "error": string} envelope.
package http
