package width

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCluster(t *testing.T) {
	tests := []struct {
		name    string
		cluster string
		want    int
	}{
		{"ascii letter", "a", 1},
		{"space", " ", 1},
		{"empty", "", 0},
		{"regional indicator flag", "\U0001F1FA\U0001F1F8", 2},
		{"skin tone modifier", "\U0001F44D\U0001F3FD", 2},
		{"bmp base with skin tone", "\u270b\U0001F3FF", 2},
		{"text symbol with emoji presentation", "\u00a9\ufe0f", 2},
		{"heart with variation selector", "\u2764\ufe0f", 2},
		{"zwj family", "\U0001F468\u200d\U0001F469\u200d\U0001F467\u200d\U0001F466", 2},
		{"zwj profession with skin tone", "\U0001F469\U0001F3FD\u200d\U0001F52C", 2},
		{"keycap", "1\ufe0f\u20e3", 2},
		{"single emoji", "\U0001F600", 2},
		{"cjk ideograph", "\u4e2d", 2},
		{"hangul syllable", "\uac00", 2},
		{"fullwidth letter", "\uff21", 2},
		{"base with combining acute", "e\u0301", 1},
		{"cjk with combining mark", "\u4e2d\u0301", 2},
		{"standalone combining mark", "\u0301", 0},
		{"word joiner", "\u2060", 0},
		{"zero width space", "\u200b", 0},
		{"byte order mark", "\ufeff", 0},
		{"standalone variation selector", "\ufe0f", 0},
		{"carriage return", "\r", 0},
		{"crlf", "\r\n", 0},
		{"bell", "\a", 0},
		{"ambiguous width is narrow", "\u00b1", 1},
		{"box drawing", "\u2500", 1},
		{"keycap without selector", "#\u20e3", 2},
		{"digit with selector only", "1\ufe0f", 1},
		{"tag sequence alone", "\U000E0067\U000E007F", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cluster(tt.cluster))
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"ascii", "hello", 5},
		{"mixed cjk", "a\u4e2db", 4},
		{"two flags", "\U0001F1FA\U0001F1F8\U0001F1EF\U0001F1F5", 4},
		{"family counts once", "x\U0001F468\u200d\U0001F469\u200d\U0001F467y", 4},
		{"combining marks", "cafe\u0301", 4},
		{"newline is invisible", "ab\r\n", 2},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, String(tt.input))
		})
	}
}

func TestStreamSplitClusters(t *testing.T) {
	inputs := []string{
		"\U0001F44D\U0001F3FD",
		"\U0001F468\u200d\U0001F469\u200d\U0001F467",
		"\u2764\ufe0f",
		"1\ufe0f\u20e3",
		"\U0001F1FA\U0001F1F8\U0001F1EF",
		"e\u0301\u4e2d\r\n",
		"a\U0001F469\U0001F3FD\u200d\U0001F52Cb",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			var st Stream
			total := 0
			for _, r := range input {
				total += st.Write(string(r))
			}
			assert.Equal(t, String(input), total, "rune by rune")

			for i := range input {
				var split Stream
				got := split.Write(input[:i]) + split.Write(input[i:])
				assert.Equal(t, String(input), got, "split at rune offset %d", i)
			}
		})
	}
}

func TestStreamContinuationAddsNothing(t *testing.T) {
	var st Stream
	assert.Equal(t, 2, st.Write("\U0001F44D"))
	assert.Equal(t, 0, st.Write("\U0001F3FD"))
	assert.Equal(t, 0, st.Write("\u200d"))
	assert.Equal(t, 0, st.Write("\U0001F52C"))
	assert.Equal(t, 1, st.Write("x"))
}

func TestStreamPairsRegionalIndicators(t *testing.T) {
	var st Stream
	assert.Equal(t, 2, st.Write("\U0001F1FA"))
	assert.Equal(t, 0, st.Write("\U0001F1F8"), "second half of the flag")
	assert.Equal(t, 2, st.Write("\U0001F1EF"), "third indicator starts a new cluster")
	assert.Equal(t, 0, st.Write(""))
}

func TestConcurrentUse(t *testing.T) {
	const input = "\U0001F468\u200d\U0001F469\u200d\U0001F467 \u4e2d\u6587 ok"

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, 10, String(input))
			}
		}()
	}
	wg.Wait()
}

func BenchmarkString(b *testing.B) {
	const input = "build \u2714\ufe0f passed in 3.2s \U0001F680 \u4e2d\u6587"
	for i := 0; i < b.N; i++ {
		_ = String(input)
	}
}
