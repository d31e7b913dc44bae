// Package normalize canonicalizes extracted text before storage and chunking.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

type Normalizer struct{}

func New() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Normalize(text string) string {
	return Text(text)
}

func (n *Normalizer) WordCount(text string) int {
	return WordCount(text)
}

// Text is deterministic and idempotent: Text(Text(x)) == Text(x).
// Page delimiters such as "--- Page 3 ---" pass through unchanged.
func Text(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.Map(mapRune, text)

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blankRun := 0
	for _, line := range lines {
		line = collapseSpaces(line)
		if line == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		out = append(out, line)
	}

	// NFC runs last so that removed zero-width marks cannot unlock a new composition on a second pass.
	return norm.NFC.String(strings.TrimSpace(strings.Join(out, "\n")))
}

func mapRune(r rune) rune {
	switch {
	case r == '\n':
		return r
	case r == '\t':
		return ' '
	case r == unicode.ReplacementChar:
		return -1
	case r == '\u200b', r == '\u200c', r == '\u200d', r == '\u2060', r == '\ufeff', r == '\u00ad':
		return -1
	case unicode.IsSpace(r):
		return ' '
	case unicode.IsControl(r):
		return -1
	case unicode.Is(unicode.Cf, r):
		return -1
	case unicode.Is(unicode.Co, r), unicode.Is(unicode.Cs, r):
		return -1
	default:
		return r
	}
}

func collapseSpaces(line string) string {
	if line == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(line))
	pendingSpace := false
	for _, r := range line {
		if r == ' ' {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// CollapseWhitespace folds every whitespace run, newlines included, into one space.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
