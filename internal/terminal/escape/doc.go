// Package escape decodes a terminal output byte stream into visible text,
// display width, and control events.
//
// The decoder is a four-state machine (ground, escape, CSI, OSC) with a
// defined transition for every byte in every state. Malformed input never
// stops it: anything it cannot classify becomes an Unknown event.
//
// Features:
//   - Cursor motion, erase, and SGR events from CSI sequences
//   - Hyperlinks (OSC 8), window titles (OSC 0/2), and OSC 1337 payloads
//   - BEL and ST terminators produce identical OSC events
//   - ESC ESC restarts sequence detection instead of dropping the byte
//   - Partial sequences and partial UTF-8 carry across Process calls
//
// Example Usage:
//
//	m := escape.New(escape.DefaultOptions())
//	chunk := m.Process([]byte("\x1b[1;32mok\x1b[0m"))
//	// chunk.Text == "ok", chunk.Width == 2
//	// chunk.Events == [SGR[1;32], SGR[0]]
package escape
