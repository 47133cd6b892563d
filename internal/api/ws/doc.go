// Package ws streams a terminal session's decoded output over WebSocket.
//
// Each connection holds one broadcast subscription. Output is forwarded as
// JSON frames encoded with sonic; a slow client loses its oldest frames and
// sees the count in the next frame's "dropped" field.
//
// Message Types (Server → Client):
//   - output: {session_id, text, width, events: [{kind, params}], dropped}
//   - exit: {session_id, status, exit_code} once the session has ended
//   - error: a client frame was rejected
//
// Message Types (Client → Server):
//   - input: {data} written to the pty
//   - resize: {cols, rows}
//
// Example Usage:
//
//	handler := ws.NewHandler(registry, metrics, ws.DefaultConfig(), logger)
//	router.GET("/sessions/:id/stream", handler.HandleStream)
package ws
