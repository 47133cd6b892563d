// Package width computes terminal display widths for grapheme clusters.
//
// Segmentation and the base width of each cluster come from rivo/uniseg.
// Two rules are layered on top:
//
//   - a keycap sequence (digit, '#' or '*' followed by U+20E3) is 2 cells
//   - a cluster made only of controls, format characters, combining marks
//     and variation selectors is 0 cells
//
// Ambiguous East Asian characters are narrow, which is uniseg's default.
// String and Cluster are safe for concurrent use. A Stream is not.
package width

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

const keycapMark = '\u20e3'

// String returns the display width of s, summed over its grapheme clusters.
func String(s string) int {
	total := 0
	state := -1
	for len(s) > 0 {
		var (
			cluster string
			w       int
		)
		cluster, s, w, state = uniseg.FirstGraphemeClusterInString(s, state)
		total += adjust(cluster, w)
	}
	return total
}

// Cluster returns the display width of a single grapheme cluster.
func Cluster(cluster string) int {
	if cluster == "" {
		return 0
	}
	_, _, w, _ := uniseg.FirstGraphemeClusterInString(cluster, -1)
	return adjust(cluster, w)
}

func adjust(cluster string, w int) int {
	base, size := utf8.DecodeRuneInString(cluster)
	switch {
	case isKeycapBase(base) && strings.ContainsRune(cluster[size:], keycapMark):
		return 2
	case invisible(cluster):
		return 0
	}
	return w
}

// Stream measures text that arrives in pieces, such as successive pty
// reads. The last cluster of every piece stays open until a later piece
// proves it complete, so a cluster split across pieces is counted once and
// the widths returned by Write always sum to String of the concatenation.
//
// The zero value is ready to use.
type Stream struct {
	open    string
	counted int
}

// Write returns the width s adds to everything written so far. The result
// is negative only when s narrows a cluster left open by an earlier piece,
// for example a text-presentation selector following an emoji.
func (st *Stream) Write(s string) int {
	if s == "" {
		return 0
	}

	// The open cluster starts on a boundary, so segmenting it again from a
	// fresh state together with s reproduces the whole-text segmentation.
	text := st.open + s
	delta := -st.counted
	state := -1
	for len(text) > 0 {
		var (
			cluster string
			w       int
		)
		cluster, text, w, state = uniseg.FirstGraphemeClusterInString(text, state)
		w = adjust(cluster, w)
		delta += w
		if text == "" {
			st.open, st.counted = cluster, w
		}
	}
	return delta
}

func isKeycapBase(r rune) bool {
	return (r >= '0' && r <= '9') || r == '#' || r == '*'
}

func invisible(cluster string) bool {
	for _, r := range cluster {
		if !unicode.In(r, unicode.Cc, unicode.Cf, unicode.Mn, unicode.Me, unicode.Variation_Selector) {
			return false
		}
	}
	return true
}
