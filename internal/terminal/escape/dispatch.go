package escape

import "strings"

// dispatchCSI maps a completed CSI sequence to an event. Sequences with a
// private marker (CSI ? 25 h and friends) never match the table.
func (m *Machine) dispatchCSI(final byte) Event {
	if !m.private {
		switch final {
		case '@':
			return CursorMove{Direction: DirectionInsert, Count: m.param(0, 1)}
		case 'A':
			return CursorMove{Direction: DirectionUp, Count: m.param(0, 1)}
		case 'B':
			return CursorMove{Direction: DirectionDown, Count: m.param(0, 1)}
		case 'C':
			return CursorMove{Direction: DirectionForward, Count: m.param(0, 1)}
		case 'D':
			return CursorMove{Direction: DirectionBack, Count: m.param(0, 1)}
		case 'E':
			return CursorMove{Direction: DirectionNextLine, Count: m.param(0, 1)}
		case 'F':
			return CursorMove{Direction: DirectionPrevLine, Count: m.param(0, 1)}
		case 'G':
			return CursorMove{Direction: DirectionColumn, Col: m.param(0, 1)}
		case 'H', 'f':
			return CursorMove{Direction: DirectionAbsolute, Row: m.param(0, 1), Col: m.param(1, 1)}
		case 'J':
			return EraseDisplay{Mode: m.rawParam(0)}
		case 'K':
			return EraseLine{Mode: m.rawParam(0)}
		case 'm':
			return SetGraphicRendition{Params: cloneParams(m.params)}
		case 's':
			return SaveCursor{}
		case 'u':
			return RestoreCursor{}
		}
	}
	return Unknown{
		Source:        SourceCSI,
		Final:         final,
		Params:        cloneParams(m.params),
		Intermediates: string(m.intermediates),
	}
}

// param returns parameter i, or def when it is missing or zero.
func (m *Machine) param(i, def int) int {
	if i >= len(m.params) || m.params[i] == 0 {
		return def
	}
	return m.params[i]
}

func (m *Machine) rawParam(i int) int {
	if i >= len(m.params) {
		return 0
	}
	return m.params[i]
}

// dispatchOSC maps a terminated OSC payload to an event.
func (m *Machine) dispatchOSC() Event {
	payload := string(m.osc)
	if m.oscOverflow {
		return Unknown{Source: SourceOSC, Payload: payload}
	}

	code, rest, ok := strings.Cut(payload, ";")
	if !ok {
		return Unknown{Source: SourceOSC, Payload: payload}
	}

	switch code {
	case "8":
		params, uri, ok := strings.Cut(rest, ";")
		if !ok {
			return Unknown{Source: SourceOSC, Payload: payload}
		}
		return Hyperlink{ID: hyperlinkID(params), URI: uri}
	case "0", "2":
		return WindowTitle{Text: rest}
	case "1337":
		return FileOrClipboard{Payload: rest}
	default:
		return Unknown{Source: SourceOSC, Payload: payload}
	}
}

// hyperlinkID extracts id from OSC 8's colon-separated key=value list.
func hyperlinkID(params string) string {
	for _, kv := range strings.Split(params, ":") {
		if key, value, ok := strings.Cut(kv, "="); ok && key == "id" {
			return value
		}
	}
	return ""
}
