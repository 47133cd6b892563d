package escape

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, input string) DecodedChunk {
	t.Helper()
	m := New(DefaultOptions())
	chunk := m.Process([]byte(input))
	require.Equal(t, ModeGround, m.Mode(), "machine left in %s", m.Mode())
	return chunk
}

func TestProcessStyledText(t *testing.T) {
	chunk := decode(t, "\x1b[31mHi\x1b[0m")

	assert.Equal(t, DecodedChunk{
		Text:  "Hi",
		Width: 2,
		Events: []Event{
			SetGraphicRendition{Params: []int{31}},
			SetGraphicRendition{Params: []int{0}},
		},
	}, chunk)
}

func TestDoubleEscapeRestartsSequence(t *testing.T) {
	single := decode(t, "\x1b[32mX")
	double := decode(t, "\x1b\x1b[32mX")

	assert.Equal(t, single, double)
	assert.Equal(t, "X", double.Text)
	assert.Equal(t, []Event{SetGraphicRendition{Params: []int{32}}}, double.Events)
}

func TestHyperlinkTerminators(t *testing.T) {
	withBEL := decode(t, "\x1b]8;;https://example.com\aLink\x1b]8;;\a")
	withST := decode(t, "\x1b]8;;https://example.com\x1b\\Link\x1b]8;;\x1b\\")

	assert.Equal(t, withBEL, withST)
	assert.Equal(t, "Link", withBEL.Text)
	assert.Equal(t, 4, withBEL.Width)
	assert.Equal(t, []Event{
		Hyperlink{URI: "https://example.com"},
		Hyperlink{URI: ""},
	}, withBEL.Events)
}

func TestCSIDispatch(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Event
	}{
		{"insert", "\x1b[@", CursorMove{Direction: DirectionInsert, Count: 1}},
		{"up default", "\x1b[A", CursorMove{Direction: DirectionUp, Count: 1}},
		{"up n", "\x1b[5A", CursorMove{Direction: DirectionUp, Count: 5}},
		{"down", "\x1b[2B", CursorMove{Direction: DirectionDown, Count: 2}},
		{"forward", "\x1b[3C", CursorMove{Direction: DirectionForward, Count: 3}},
		{"back zero means one", "\x1b[0D", CursorMove{Direction: DirectionBack, Count: 1}},
		{"next line", "\x1b[E", CursorMove{Direction: DirectionNextLine, Count: 1}},
		{"prev line", "\x1b[4F", CursorMove{Direction: DirectionPrevLine, Count: 4}},
		{"column", "\x1b[12G", CursorMove{Direction: DirectionColumn, Col: 12}},
		{"home", "\x1b[H", CursorMove{Direction: DirectionAbsolute, Row: 1, Col: 1}},
		{"position", "\x1b[10;20H", CursorMove{Direction: DirectionAbsolute, Row: 10, Col: 20}},
		{"position missing row", "\x1b[;7H", CursorMove{Direction: DirectionAbsolute, Row: 1, Col: 7}},
		{"position f", "\x1b[3;4f", CursorMove{Direction: DirectionAbsolute, Row: 3, Col: 4}},
		{"erase display default", "\x1b[J", EraseDisplay{Mode: 0}},
		{"erase display all", "\x1b[2J", EraseDisplay{Mode: 2}},
		{"erase line", "\x1b[1K", EraseLine{Mode: 1}},
		{"sgr compound", "\x1b[1;32m", SetGraphicRendition{Params: []int{1, 32}}},
		{"sgr truecolor", "\x1b[38;2;255;128;0m", SetGraphicRendition{Params: []int{38, 2, 255, 128, 0}}},
		{"sgr colon subparams", "\x1b[38:5:208m", SetGraphicRendition{Params: []int{38, 5, 208}}},
		{"sgr empty", "\x1b[m", SetGraphicRendition{Params: []int{}}},
		{"sgr empty fields", "\x1b[;1m", SetGraphicRendition{Params: []int{0, 1}}},
		{"save", "\x1b[s", SaveCursor{}},
		{"restore", "\x1b[u", RestoreCursor{}},
		{"unknown final", "\x1b[5n", Unknown{Source: SourceCSI, Final: 'n', Params: []int{5}, Intermediates: ""}},
		{"private mode", "\x1b[?25l", Unknown{Source: SourceCSI, Final: 'l', Params: []int{25}, Intermediates: "?"}},
		{"private sgr-like", "\x1b[>4;2m", Unknown{Source: SourceCSI, Final: 'm', Params: []int{4, 2}, Intermediates: ">"}},
		{"intermediate byte", "\x1b[2 q", Unknown{Source: SourceCSI, Final: 'q', Params: []int{2}, Intermediates: " "}},
		{"intermediate ignored for dispatch", "\x1b[1 A", CursorMove{Direction: DirectionUp, Count: 1}},
		{"huge param saturates", "\x1b[99999999A", CursorMove{Direction: DirectionUp, Count: 65535}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := decode(t, tt.input)
			assert.Empty(t, chunk.Text)
			assert.Zero(t, chunk.Width)
			require.Len(t, chunk.Events, 1)
			assert.Equal(t, tt.want, chunk.Events[0])
		})
	}
}

func TestOSCDispatch(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Event
	}{
		{"hyperlink", "\x1b]8;;http://a.b/c\a", Hyperlink{URI: "http://a.b/c"}},
		{"hyperlink with id", "\x1b]8;id=42;http://a.b\a", Hyperlink{ID: "42", URI: "http://a.b"}},
		{"hyperlink with empty id", "\x1b]8;id=;http://a.b\a", Hyperlink{URI: "http://a.b"}},
		{"hyperlink id among params", "\x1b]8;foo=bar:id=x1;http://a.b\a", Hyperlink{ID: "x1", URI: "http://a.b"}},
		{"hyperlink uri keeps semicolons", "\x1b]8;;http://a.b/?q=1;2\a", Hyperlink{URI: "http://a.b/?q=1;2"}},
		{"hyperlink malformed", "\x1b]8;no-uri\a", Unknown{Source: SourceOSC, Payload: "8;no-uri"}},
		{"window title", "\x1b]0;build: running\a", WindowTitle{Text: "build: running"}},
		{"window title osc 2", "\x1b]2;vim\x1b\\", WindowTitle{Text: "vim"}},
		{"empty title", "\x1b]0;\a", WindowTitle{Text: ""}},
		{"file payload", "\x1b]1337;File=name=YS50eHQ=;inline=1:aGVsbG8=\a", FileOrClipboard{Payload: "File=name=YS50eHQ=;inline=1:aGVsbG8="}},
		{"clipboard payload", "\x1b]1337;Copy=:aGk=\a", FileOrClipboard{Payload: "Copy=:aGk="}},
		{"unknown code", "\x1b]52;c;aGk=\a", Unknown{Source: SourceOSC, Payload: "52;c;aGk="}},
		{"no separator", "\x1b]104\a", Unknown{Source: SourceOSC, Payload: "104"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := decode(t, tt.input)
			assert.Empty(t, chunk.Text)
			require.Len(t, chunk.Events, 1)
			assert.Equal(t, tt.want, chunk.Events[0])
		})
	}
}

func TestUnknownEscape(t *testing.T) {
	chunk := decode(t, "a\x1b7b\x1bMc")

	assert.Equal(t, "abc", chunk.Text)
	assert.Equal(t, 3, chunk.Width)
	assert.Equal(t, []Event{
		Unknown{Source: SourceEscape, Final: '7'},
		Unknown{Source: SourceEscape, Final: 'M'},
	}, chunk.Events)
}

func TestEscapeInsideCSIAbortsSequence(t *testing.T) {
	chunk := decode(t, "\x1b[12\x1b[1mX")

	assert.Equal(t, "X", chunk.Text)
	assert.Equal(t, []Event{
		Unknown{Source: SourceCSI, Params: []int{12}, Intermediates: ""},
		SetGraphicRendition{Params: []int{1}},
	}, chunk.Events)
}

func TestEscapeInsideOSCWithoutTerminator(t *testing.T) {
	chunk := decode(t, "\x1b]0;title\x1b[2JX")

	assert.Equal(t, "X", chunk.Text)
	assert.Equal(t, []Event{
		Unknown{Source: SourceOSC, Payload: "0;title"},
		EraseDisplay{Mode: 2},
	}, chunk.Events)
}

func TestControlCharactersAreInvisibleText(t *testing.T) {
	chunk := decode(t, "ok\r\n\tdone\a")

	assert.Equal(t, "ok\r\n\tdone\a", chunk.Text)
	assert.Equal(t, 6, chunk.Width)
	assert.Empty(t, chunk.Events)
}

func TestWideText(t *testing.T) {
	chunk := decode(t, "\x1b[1m中文\x1b[0m \U0001F1EF\U0001F1F5")

	assert.Equal(t, "中文 \U0001F1EF\U0001F1F5", chunk.Text)
	assert.Equal(t, 7, chunk.Width)
}

func TestSequenceSplitAcrossChunks(t *testing.T) {
	m := New(DefaultOptions())

	first := m.Process([]byte("ab\x1b[3"))
	assert.Equal(t, "ab", first.Text)
	assert.Empty(t, first.Events)
	assert.Equal(t, ModeCSI, m.Mode())

	second := m.Process([]byte("8;5;1"))
	assert.Empty(t, second.Text)
	assert.Empty(t, second.Events)

	third := m.Process([]byte("96mcd"))
	assert.Equal(t, "cd", third.Text)
	assert.Equal(t, []Event{SetGraphicRendition{Params: []int{38, 5, 196}}}, third.Events)
	assert.Equal(t, ModeGround, m.Mode())
}

func TestOSCTerminatorSplitAcrossChunks(t *testing.T) {
	m := New(DefaultOptions())

	first := m.Process([]byte("\x1b]0;hello\x1b"))
	assert.Empty(t, first.Events)
	assert.Equal(t, ModeOSC, m.Mode())

	second := m.Process([]byte("\\world"))
	assert.Equal(t, "world", second.Text)
	assert.Equal(t, []Event{WindowTitle{Text: "hello"}}, second.Events)
}

func TestUTF8SplitAcrossChunks(t *testing.T) {
	m := New(DefaultOptions())
	wide := []byte("中") // three bytes

	first := m.Process(append([]byte("a"), wide[:2]...))
	assert.Equal(t, "a", first.Text)
	assert.Equal(t, 1, first.Width)

	second := m.Process(append(wide[2:], 'b'))
	assert.Equal(t, "中b", second.Text)
	assert.Equal(t, 3, second.Width)
}

func TestFlushEmitsHeldBytes(t *testing.T) {
	m := New(DefaultOptions())

	chunk := m.Process([]byte{'x', 0xe4, 0xb8})
	assert.Equal(t, "x", chunk.Text)

	tail := m.Flush()
	assert.Equal(t, "\xe4\xb8", tail.Text)
	assert.Equal(t, ModeGround, m.Mode())

	assert.True(t, m.Flush().Empty())
}

func TestEveryChunkSplitDecodesIdentically(t *testing.T) {
	input := "pre\x1b[1;31mred\x1b[0m \x1b]8;id=7;http://x.y\x1b\\link\x1b]8;;\a" +
		"\x1b\x1b[2K中\U0001F44D\U0001F3FD\x1b]0;t\a\x1b[?1049h end" +
		" \U0001F468\u200d\U0001F469\u200d\U0001F467\u2764\ufe0f1\ufe0f\u20e3"

	whole := decode(t, input)

	for split := 1; split < len(input); split++ {
		m := New(DefaultOptions())
		a := m.Process([]byte(input[:split]))
		b := m.Process([]byte(input[split:]))

		assert.Equal(t, whole.Text, a.Text+b.Text, "split at %d", split)
		assert.Equal(t, whole.Width, a.Width+b.Width, "split at %d", split)
		assert.Equal(t, whole.Events, append(append([]Event{}, a.Events...), b.Events...), "split at %d", split)
		assert.Equal(t, ModeGround, m.Mode(), "split at %d", split)
	}
}

func TestClusterWidthAcrossChunks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"skin tone", "\U0001F44D\U0001F3FD", 2},
		{"zwj family", "\U0001F468\u200d\U0001F469\u200d\U0001F467", 2},
		{"variation selector", "\u2764\ufe0f", 2},
		{"keycap", "1\ufe0f\u20e3", 2},
		{"flag", "\U0001F1FA\U0001F1F8", 2},
		{"styled continuation", "\U0001F44D\x1b[0m\U0001F3FD", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decode(t, tt.input).Width, "whole")

			m := New(DefaultOptions())
			total := 0
			var text strings.Builder
			for _, r := range tt.input {
				chunk := m.Process([]byte(string(r)))
				total += chunk.Width
				text.WriteString(chunk.Text)
			}
			assert.Equal(t, tt.want, total, "one rune per chunk")
			assert.Equal(t, decode(t, tt.input).Text, text.String())
		})
	}
}

func TestReturnsToGroundAfterEveryDispatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	alphabet := []byte("\x1b[];?0123456789mHJK@ABCDsu\a\\8abc \x00\x7f\xff")

	for i := 0; i < 2000; i++ {
		noise := make([]byte, rng.Intn(64))
		for j := range noise {
			noise[j] = alphabet[rng.Intn(len(alphabet))]
		}

		m := New(DefaultOptions())
		m.Process(noise)

		// Whatever state the noise left behind, a full terminator sequence
		// followed by a complete SGR always brings the machine home.
		m.Process([]byte("\a\x1b\\\x1b[0m"))
		if m.Mode() != ModeGround {
			t.Fatalf("noise %q left machine in %s", noise, m.Mode())
		}
	}
}

func TestParamLimit(t *testing.T) {
	m := New(Options{MaxParams: 3})

	chunk := m.Process([]byte("\x1b[1;2;3;4;5m"))
	assert.Equal(t, []Event{SetGraphicRendition{Params: []int{1, 2, 3}}}, chunk.Events)
}

func TestOSCLengthLimit(t *testing.T) {
	m := New(Options{MaxOSCLength: 8})

	chunk := m.Process([]byte("\x1b]0;" + strings.Repeat("x", 100) + "\aok"))
	assert.Equal(t, "ok", chunk.Text)
	assert.Equal(t, []Event{Unknown{Source: SourceOSC, Payload: "0;xxxxxx"}}, chunk.Events)
}

func TestEventsAreNotAliased(t *testing.T) {
	m := New(DefaultOptions())

	first := m.Process([]byte("\x1b[1;2m"))
	m.Process([]byte("\x1b[7;8m"))

	assert.Equal(t, []int{1, 2}, first.Events[0].(SetGraphicRendition).Params)
}

func BenchmarkProcess(b *testing.B) {
	line := []byte("\x1b[1;32m✔\x1b[0m compiled \x1b]8;;file:///tmp/x.go\x1b\\x.go\x1b]8;;\x1b\\ in 12ms\r\n")
	m := New(DefaultOptions())

	b.SetBytes(int64(len(line)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Process(line)
	}
}
