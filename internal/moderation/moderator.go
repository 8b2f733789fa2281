package moderation

import (
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// DefaultMask replaces every rune of a censored word.
const DefaultMask = '*'

// Moderator masks configured words in message bodies, tolerating leetspeak and
// punctuation inserted between letters. Only whole words are matched.
type Moderator struct {
	matcher *goahocorasick.Machine
	mask    rune
}

// New builds the automaton. It returns nil when no usable word is configured,
// which callers treat as "no moderation".
func New(words []string, mask rune) (*Moderator, error) {
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		normalized := normalizeRunes([]rune(strings.TrimSpace(word)))
		if len(normalized) == 0 {
			continue
		}
		patterns = append(patterns, normalized)
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	if mask == 0 {
		mask = DefaultMask
	}
	return &Moderator{matcher: m, mask: mask}, nil
}

// Censor returns text with every matched span masked. Spacing is preserved.
func (m *Moderator) Censor(text string) string {
	if m == nil {
		return text
	}
	norm, origIdx := normalize(text)
	if len(norm) == 0 {
		return text
	}

	terms := m.matcher.MultiPatternSearch(norm, false)
	if len(terms) == 0 {
		return text
	}

	runes := []rune(text)
	for _, term := range terms {
		start := term.Pos
		end := start + len(term.Word)
		if start < 0 || end > len(origIdx) || !wordBoundary(norm, start, end) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			if !unicode.IsSpace(runes[i]) {
				runes[i] = m.mask
			}
		}
	}
	return string(runes)
}

// normalize lowers and simplifies runes, dropping noise and collapsing whitespace
// runs to one separator, and records where each kept rune came from.
func normalize(input string) ([]rune, []int) {
	runes := []rune(input)
	norm := make([]rune, 0, len(runes))
	origIdx := make([]int, 0, len(runes))
	for i, r := range runes {
		if unicode.IsSpace(r) {
			if n := len(norm); n > 0 && norm[n-1] != ' ' {
				norm = append(norm, ' ')
				origIdx = append(origIdx, i)
			}
			continue
		}
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}

func normalizeRunes(input []rune) []rune {
	out, _ := normalize(string(input))
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return out
}

// wordBoundary reports whether norm[start:end] is delimited by separators or the text edges.
func wordBoundary(norm []rune, start, end int) bool {
	return (start == 0 || norm[start-1] == ' ') && (end == len(norm) || norm[end] == ' ')
}

// simplifyRune maps common leetspeak characters back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
