package slideshow

import (
	"strings"
)

// WrapText breaks text into lines whose measured width does not exceed
// maxWidth. Words are packed greedily; a word wider than maxWidth on its own
// is split between runes. The result depends only on its inputs.
func WrapText(text string, maxWidth int, measure func(string) int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	var current string
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if measure(candidate) <= maxWidth {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		if measure(word) <= maxWidth {
			current = word
			continue
		}
		pieces := splitWord(word, maxWidth, measure)
		lines = append(lines, pieces[:len(pieces)-1]...)
		current = pieces[len(pieces)-1]
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// splitWord cuts an oversized word into rune runs that each fit maxWidth.
// Every run holds at least one rune so the loop always advances.
func splitWord(word string, maxWidth int, measure func(string) int) []string {
	var pieces []string
	var b strings.Builder
	for _, r := range word {
		next := b.String() + string(r)
		if b.Len() > 0 && measure(next) > maxWidth {
			pieces = append(pieces, b.String())
			b.Reset()
		}
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		pieces = append(pieces, b.String())
	}
	return pieces
}
