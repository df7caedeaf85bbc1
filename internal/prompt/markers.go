// Package prompt finds shell prompts and interactive questions in terminal
// output and answers the questions.
package prompt

import "strings"

// DefaultMarkers are the prompt markers used when a connection configures none.
var DefaultMarkers = []string{"#", "$"}

// Match is the position of a marker inside a text.
type Match struct {
	// Index is the byte offset of the first byte of Marker.
	Index  int
	Marker string
}

// End returns the offset just past the marker.
func (m Match) End() int {
	return m.Index + len(m.Marker)
}

// FindAny returns the earliest occurrence of any candidate in text. When two
// candidates start at the same offset the one listed first wins. Empty
// candidates never match.
func FindAny(text string, candidates []string) (Match, bool) {
	best := Match{Index: -1}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		i := strings.Index(text, c)
		if i < 0 {
			continue
		}
		if best.Index < 0 || i < best.Index {
			best = Match{Index: i, Marker: c}
		}
	}
	return best, best.Index >= 0
}

// FindAnyAnchored is FindAny restricted to candidates that start a line: a
// candidate only matches when it is preceded by "\n". Index points at the
// candidate itself, not at the newline.
func FindAnyAnchored(text string, candidates []string) (Match, bool) {
	best := Match{Index: -1}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		i := strings.Index(text, "\n"+c)
		if i < 0 {
			continue
		}
		if best.Index < 0 || i+1 < best.Index {
			best = Match{Index: i + 1, Marker: c}
		}
	}
	return best, best.Index >= 0
}
