package escape

import (
	"fmt"
	"strconv"
	"strings"
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindCursorMove:
		return "cursor_move"
	case KindEraseDisplay:
		return "erase_display"
	case KindEraseLine:
		return "erase_line"
	case KindSetGraphicRendition:
		return "sgr"
	case KindSaveCursor:
		return "save_cursor"
	case KindRestoreCursor:
		return "restore_cursor"
	case KindHyperlink:
		return "hyperlink"
	case KindWindowTitle:
		return "window_title"
	case KindFileOrClipboard:
		return "file_or_clipboard"
	default:
		return "unknown"
	}
}

// String returns the string representation of the direction
func (d Direction) String() string {
	switch d {
	case DirectionInsert:
		return "insert"
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	case DirectionForward:
		return "forward"
	case DirectionBack:
		return "back"
	case DirectionNextLine:
		return "next_line"
	case DirectionPrevLine:
		return "prev_line"
	case DirectionColumn:
		return "column"
	case DirectionAbsolute:
		return "position"
	default:
		return "unknown"
	}
}

// String returns the string representation of the source
func (s Source) String() string {
	switch s {
	case SourceEscape:
		return "escape"
	case SourceCSI:
		return "csi"
	case SourceOSC:
		return "osc"
	default:
		return "unknown"
	}
}

// WireEvent is the transport projection of an Event. Params is []int for
// events derived from CSI sequences and a string for everything else.
type WireEvent struct {
	Kind   string `json:"kind"`
	Params any    `json:"params"`
}

// Wire projects ev onto its transport shape.
func Wire(ev Event) WireEvent {
	switch e := ev.(type) {
	case CursorMove:
		return WireEvent{Kind: "cursor_" + e.Direction.String(), Params: cursorParams(e)}
	case EraseDisplay:
		return WireEvent{Kind: e.Kind().String(), Params: []int{e.Mode}}
	case EraseLine:
		return WireEvent{Kind: e.Kind().String(), Params: []int{e.Mode}}
	case SetGraphicRendition:
		return WireEvent{Kind: e.Kind().String(), Params: nonNil(e.Params)}
	case SaveCursor, RestoreCursor:
		return WireEvent{Kind: e.Kind().String(), Params: []int{}}
	case Hyperlink:
		return WireEvent{Kind: e.Kind().String(), Params: hyperlinkPayload(e)}
	case WindowTitle:
		return WireEvent{Kind: e.Kind().String(), Params: e.Text}
	case FileOrClipboard:
		return WireEvent{Kind: e.Kind().String(), Params: e.Payload}
	case Unknown:
		return WireEvent{Kind: "unknown_" + e.Source.String(), Params: unknownBody(e)}
	default:
		return WireEvent{Kind: "unknown", Params: ""}
	}
}

// Describe renders ev for logs.
func Describe(ev Event) string {
	switch e := ev.(type) {
	case CursorMove:
		switch e.Direction {
		case DirectionAbsolute:
			return fmt.Sprintf("CursorMove(position %d,%d)", e.Row, e.Col)
		case DirectionColumn:
			return fmt.Sprintf("CursorMove(column %d)", e.Col)
		default:
			return fmt.Sprintf("CursorMove(%s %d)", e.Direction, e.Count)
		}
	case EraseDisplay:
		return fmt.Sprintf("EraseDisplay(%d)", e.Mode)
	case EraseLine:
		return fmt.Sprintf("EraseLine(%d)", e.Mode)
	case SetGraphicRendition:
		return "SGR[" + joinInts(e.Params) + "]"
	case SaveCursor:
		return "SaveCursor"
	case RestoreCursor:
		return "RestoreCursor"
	case Hyperlink:
		if e.ID == "" {
			return fmt.Sprintf("Hyperlink(%q)", e.URI)
		}
		return fmt.Sprintf("Hyperlink(id=%s, %q)", e.ID, e.URI)
	case WindowTitle:
		return fmt.Sprintf("WindowTitle(%q)", e.Text)
	case FileOrClipboard:
		return fmt.Sprintf("FileOrClipboard(%d bytes)", len(e.Payload))
	case Unknown:
		return fmt.Sprintf("Unknown(%s %q)", e.Source, unknownBody(e))
	default:
		return "Unknown"
	}
}

func cursorParams(e CursorMove) []int {
	switch e.Direction {
	case DirectionAbsolute:
		return []int{e.Row, e.Col}
	case DirectionColumn:
		return []int{e.Col}
	default:
		return []int{e.Count}
	}
}

// hyperlinkPayload renders OSC 8 params and URI. An empty ID means the link
// has none and renders as ";uri", the same form the sequence arrives in.
func hyperlinkPayload(e Hyperlink) string {
	if e.ID == "" {
		return ";" + e.URI
	}
	return "id=" + e.ID + ";" + e.URI
}

// unknownBody reconstructs the sequence body after its introducer.
func unknownBody(e Unknown) string {
	switch e.Source {
	case SourceOSC:
		return e.Payload
	case SourceCSI:
		var sb strings.Builder
		sb.WriteString(e.Intermediates)
		sb.WriteString(joinInts(e.Params))
		if e.Final != 0 {
			sb.WriteByte(e.Final)
		}
		return sb.String()
	default:
		return string([]byte{e.Final})
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ";")
}

func nonNil(values []int) []int {
	if values == nil {
		return []int{}
	}
	return values
}
