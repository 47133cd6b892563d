package escape

import (
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/termstream/internal/terminal/width"
)

// Mode is the parser state between bytes
type Mode int

const (
	ModeGround Mode = iota
	ModeEscape
	ModeCSI
	ModeOSC
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeGround:
		return "ground"
	case ModeEscape:
		return "escape"
	case ModeCSI:
		return "csi"
	case ModeOSC:
		return "osc"
	default:
		return "unknown"
	}
}

const (
	esc = 0x1b
	bel = 0x07

	maxParamValue     = 65535
	maxIntermediates  = 16
	defaultMaxParams  = 32
	defaultMaxOSCSize = 1 << 20
)

// Options bounds the memory a single sequence may hold.
type Options struct {
	// MaxParams is the number of CSI parameters kept; extras are dropped.
	MaxParams int
	// MaxOSCLength is the largest OSC payload kept. Longer payloads are
	// reported as Unknown carrying the retained prefix.
	MaxOSCLength int
}

// DefaultOptions returns the limits used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxParams:    defaultMaxParams,
		MaxOSCLength: defaultMaxOSCSize,
	}
}

// Machine decodes a terminal output stream. State persists across Process
// calls, so sequences split between reads decode the same as whole ones.
//
// A Machine is not safe for concurrent use; each session's reader owns one.
type Machine struct {
	opts Options
	mode Mode

	params        []int
	current       int
	currentSet    bool
	intermediates []byte
	private       bool

	osc         []byte
	oscEscape   bool
	oscOverflow bool

	// visible bytes of the chunk being processed, plus any incomplete
	// UTF-8 tail carried over from the previous chunk
	run []byte

	// last grapheme cluster of the text so far, which the next chunk may extend
	cells width.Stream

	text   strings.Builder
	width  int
	events []Event
}

// New creates a machine in ground state.
func New(opts Options) *Machine {
	if opts.MaxParams <= 0 {
		opts.MaxParams = defaultMaxParams
	}
	if opts.MaxOSCLength <= 0 {
		opts.MaxOSCLength = defaultMaxOSCSize
	}
	return &Machine{
		opts:   opts,
		params: make([]int, 0, opts.MaxParams),
	}
}

// Mode returns the current parser state.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Process consumes one chunk of raw output.
func (m *Machine) Process(p []byte) DecodedChunk {
	for _, b := range p {
		m.step(b)
	}
	if m.mode == ModeGround {
		m.flushRun(true)
	}
	return m.take()
}

// Flush emits visible bytes held back waiting for the rest of a UTF-8
// sequence. Call it once the stream has ended.
func (m *Machine) Flush() DecodedChunk {
	m.flushRun(false)
	return m.take()
}

func (m *Machine) step(b byte) {
	switch m.mode {
	case ModeGround:
		m.ground(b)
	case ModeEscape:
		m.escape(b)
	case ModeCSI:
		m.csi(b)
	case ModeOSC:
		m.oscByte(b)
	}
}

func (m *Machine) ground(b byte) {
	if b == esc {
		m.flushRun(false)
		m.mode = ModeEscape
		return
	}
	m.run = append(m.run, b)
}

func (m *Machine) escape(b byte) {
	switch b {
	case '[':
		m.resetCSI()
		m.mode = ModeCSI
	case ']':
		m.resetOSC()
		m.mode = ModeOSC
	case esc:
		// A second ESC restarts sequence detection.
	default:
		m.emit(Unknown{Source: SourceEscape, Final: b})
		m.mode = ModeGround
	}
}

// csi collects parameters and intermediates until a final byte in
// 0x40..0x7e dispatches the sequence. Other bytes are kept as intermediates
// without a state change, with one exception: ESC abandons the sequence,
// reporting what was collected as Unknown, and starts a new escape.
func (m *Machine) csi(b byte) {
	switch {
	case b >= '0' && b <= '9':
		m.current = m.current*10 + int(b-'0')
		if m.current > maxParamValue {
			m.current = maxParamValue
		}
		m.currentSet = true
	case b == ';' || b == ':':
		m.closeParam()
		m.currentSet = true
	case b >= '<' && b <= '?':
		m.private = true
		m.addIntermediate(b)
	case b >= 0x40 && b <= 0x7e:
		if m.currentSet {
			m.closeParam()
		}
		m.emit(m.dispatchCSI(b))
		m.resetCSI()
		m.mode = ModeGround
	case b == esc:
		if m.currentSet {
			m.closeParam()
		}
		m.emit(Unknown{
			Source:        SourceCSI,
			Params:        cloneParams(m.params),
			Intermediates: string(m.intermediates),
		})
		m.resetCSI()
		m.mode = ModeEscape
	default:
		m.addIntermediate(b)
	}
}

func (m *Machine) oscByte(b byte) {
	if m.oscEscape {
		m.oscEscape = false
		if b == '\\' {
			m.emit(m.dispatchOSC())
			m.resetOSC()
			m.mode = ModeGround
			return
		}
		// ESC not followed by ST abandons the OSC and starts a new sequence.
		m.emit(Unknown{Source: SourceOSC, Payload: string(m.osc)})
		m.resetOSC()
		m.mode = ModeEscape
		m.escape(b)
		return
	}

	switch b {
	case bel:
		m.emit(m.dispatchOSC())
		m.resetOSC()
		m.mode = ModeGround
	case esc:
		m.oscEscape = true
	default:
		if len(m.osc) >= m.opts.MaxOSCLength {
			m.oscOverflow = true
			return
		}
		m.osc = append(m.osc, b)
	}
}

func (m *Machine) closeParam() {
	if len(m.params) < m.opts.MaxParams {
		m.params = append(m.params, m.current)
	}
	m.current = 0
	m.currentSet = false
}

func (m *Machine) addIntermediate(b byte) {
	if len(m.intermediates) < maxIntermediates {
		m.intermediates = append(m.intermediates, b)
	}
}

func (m *Machine) resetCSI() {
	m.params = m.params[:0]
	m.current = 0
	m.currentSet = false
	m.intermediates = m.intermediates[:0]
	m.private = false
}

func (m *Machine) resetOSC() {
	m.osc = m.osc[:0]
	m.oscEscape = false
	m.oscOverflow = false
}

func (m *Machine) emit(ev Event) {
	m.events = append(m.events, ev)
}

// flushRun moves buffered visible bytes into the chunk text. When holdTail is
// set, an incomplete trailing UTF-8 sequence stays buffered for the next call.
func (m *Machine) flushRun(holdTail bool) {
	if len(m.run) == 0 {
		return
	}
	cut := len(m.run)
	if holdTail {
		cut = completePrefix(m.run)
	}
	if cut > 0 {
		visible := string(m.run[:cut])
		m.text.WriteString(visible)
		m.width += m.cells.Write(visible)
	}
	m.run = append(m.run[:0], m.run[cut:]...)
}

func (m *Machine) take() DecodedChunk {
	chunk := DecodedChunk{
		Text:   m.text.String(),
		Width:  m.width,
		Events: m.events,
	}
	m.text.Reset()
	m.width = 0
	m.events = nil
	return chunk
}

// completePrefix returns the length of p without a trailing partial rune.
func completePrefix(p []byte) int {
	start := len(p) - 1
	for i := 0; i < utf8.UTFMax-1 && start > 0 && !utf8.RuneStart(p[start]); i++ {
		start--
	}
	if start < 0 || !utf8.RuneStart(p[start]) {
		return len(p)
	}
	if utf8.FullRune(p[start:]) {
		return len(p)
	}
	return start
}

func cloneParams(params []int) []int {
	out := make([]int, len(params))
	copy(out, params)
	return out
}
