package escape

// Event is a decoded control sequence. The set of implementations is closed;
// consumers switch on the concrete type or on Kind().
type Event interface {
	Kind() Kind
	isEvent()
}

// Kind enumerates event variants
type Kind int

const (
	KindUnknown Kind = iota
	KindCursorMove
	KindEraseDisplay
	KindEraseLine
	KindSetGraphicRendition
	KindSaveCursor
	KindRestoreCursor
	KindHyperlink
	KindWindowTitle
	KindFileOrClipboard
)

// Direction selects the cursor motion of a CursorMove
type Direction int

const (
	DirectionInsert Direction = iota
	DirectionUp
	DirectionDown
	DirectionForward
	DirectionBack
	DirectionNextLine
	DirectionPrevLine
	DirectionColumn
	DirectionAbsolute
)

// Source records which kind of sequence produced an Unknown event
type Source int

const (
	SourceEscape Source = iota
	SourceCSI
	SourceOSC
)

// CursorMove covers relative motion (Count), absolute column (Col) and
// absolute position (Row, Col). Row and Col are 1-based.
type CursorMove struct {
	Direction Direction
	Count     int
	Row       int
	Col       int
}

// EraseDisplay is CSI Ps J
type EraseDisplay struct {
	Mode int
}

// EraseLine is CSI Ps K
type EraseLine struct {
	Mode int
}

// SetGraphicRendition is CSI Pm m. Params are kept in order; "1;32" is one
// event carrying [1 32].
type SetGraphicRendition struct {
	Params []int
}

// SaveCursor is CSI s
type SaveCursor struct{}

// RestoreCursor is CSI u
type RestoreCursor struct{}

// Hyperlink is OSC 8. An empty URI closes the current link. ID is empty
// when the sequence carried no id parameter; an explicit "id=" with no
// value decodes the same way, since terminals group links only by
// non-empty ids.
type Hyperlink struct {
	ID  string
	URI string
}

// WindowTitle is OSC 0 or OSC 2
type WindowTitle struct {
	Text string
}

// FileOrClipboard is an iTerm2-style OSC 1337 payload, passed through verbatim.
type FileOrClipboard struct {
	Payload string
}

// Unknown is any sequence without a dedicated event. Final is zero for OSC.
type Unknown struct {
	Source        Source
	Final         byte
	Params        []int
	Intermediates string
	Payload       string
}

func (CursorMove) Kind() Kind          { return KindCursorMove }
func (EraseDisplay) Kind() Kind        { return KindEraseDisplay }
func (EraseLine) Kind() Kind           { return KindEraseLine }
func (SetGraphicRendition) Kind() Kind { return KindSetGraphicRendition }
func (SaveCursor) Kind() Kind          { return KindSaveCursor }
func (RestoreCursor) Kind() Kind       { return KindRestoreCursor }
func (Hyperlink) Kind() Kind           { return KindHyperlink }
func (WindowTitle) Kind() Kind         { return KindWindowTitle }
func (FileOrClipboard) Kind() Kind     { return KindFileOrClipboard }
func (Unknown) Kind() Kind             { return KindUnknown }

func (CursorMove) isEvent()          {}
func (EraseDisplay) isEvent()        {}
func (EraseLine) isEvent()           {}
func (SetGraphicRendition) isEvent() {}
func (SaveCursor) isEvent()          {}
func (RestoreCursor) isEvent()       {}
func (Hyperlink) isEvent()           {}
func (WindowTitle) isEvent()         {}
func (FileOrClipboard) isEvent()     {}
func (Unknown) isEvent()             {}

// DecodedChunk is the result of processing one input chunk.
type DecodedChunk struct {
	Text string
	// Width is the number of cells Text adds to the stream. A grapheme
	// cluster split between chunks is counted in the chunk that starts it,
	// with any change from its continuation counted in the next one.
	Width  int
	Events []Event
}

// Empty reports whether the chunk carries nothing for subscribers.
func (c DecodedChunk) Empty() bool {
	return c.Text == "" && len(c.Events) == 0
}
