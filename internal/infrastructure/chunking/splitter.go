package chunking

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMaxChunkSize = 2000
	DefaultOverlapWords = 50
)

// Splitter packs whole sentences into chunks of at most MaxChunkSize runes and
// seeds every chunk after the first with the trailing OverlapWords words of its predecessor.
type Splitter struct {
	MaxChunkSize int
	OverlapWords int
}

func NewSplitter(maxChunkSize, overlapWords int) *Splitter {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	// An overlap that alone fills a chunk would stop the buffer from ever moving forward.
	if maxWords := maxChunkSize / 8; overlapWords > 0 && overlapWords > maxWords {
		overlapWords = maxWords
	}
	return &Splitter{
		MaxChunkSize: maxChunkSize,
		OverlapWords: overlapWords,
	}
}

// OverlapWordsFromChars approximates a character overlap as a word count (~5 chars per word).
func OverlapWordsFromChars(chars int) int {
	if chars <= 0 {
		return 0
	}
	return chars / 5
}

func (s *Splitter) Split(text string) []string {
	segments := splitSentences(text)
	if len(segments) == 0 {
		return nil
	}

	pieces := make([]string, 0, len(segments))
	for _, seg := range segments {
		if runeLen(strings.TrimSpace(seg)) > s.MaxChunkSize {
			pieces = append(pieces, wrapWords(seg, s.MaxChunkSize)...)
			continue
		}
		pieces = append(pieces, seg)
	}

	out := make([]string, 0, runeLen(text)/s.MaxChunkSize+1)
	var buf string
	for _, piece := range pieces {
		if buf == "" {
			buf = piece
			continue
		}
		if runeLen(strings.TrimSpace(buf+piece)) > s.MaxChunkSize {
			emitted := strings.TrimSpace(buf)
			out = append(out, emitted)
			if tail := lastWords(emitted, s.OverlapWords); tail != "" {
				buf = tail + " " + piece
			} else {
				buf = piece
			}
			continue
		}
		buf += piece
	}
	if last := strings.TrimSpace(buf); last != "" {
		out = append(out, last)
	}
	return out
}

// splitSentences cuts after ., ! or ? (plus closing quotes/brackets) followed by
// whitespace, and at blank lines. Each segment keeps its trailing whitespace so
// that the concatenation of segments equals the input.
func splitSentences(text string) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/80+1)
	start := 0
	for i := 0; i < len(runes); i++ {
		end := -1
		switch r := runes[i]; {
		case isTerminator(r):
			j := i + 1
			for j < len(runes) && (isTerminator(runes[j]) || isCloser(runes[j])) {
				j++
			}
			if j == len(runes) || unicode.IsSpace(runes[j]) {
				end = j
			}
		case r == '\n' && i+1 < len(runes) && runes[i+1] == '\n':
			end = i
		}
		if end < 0 {
			continue
		}

		k := end
		for k < len(runes) && unicode.IsSpace(runes[k]) {
			k++
		}
		if seg := string(runes[start:k]); strings.TrimSpace(seg) != "" {
			out = append(out, seg)
		}
		start = k
		i = k - 1
	}
	if start < len(runes) {
		if seg := string(runes[start:]); strings.TrimSpace(seg) != "" {
			out = append(out, seg)
		}
	}
	return out
}

// wrapWords breaks an oversized sentence at word boundaries; a single word longer
// than limit is cut on rune boundaries.
func wrapWords(sentence string, limit int) []string {
	words := strings.Fields(sentence)
	out := make([]string, 0, runeLen(sentence)/limit+1)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String()+" ")
			b.Reset()
		}
	}
	for _, word := range words {
		for runeLen(word) > limit {
			flush()
			r := []rune(word)
			out = append(out, string(r[:limit])+" ")
			word = string(r[limit:])
		}
		if word == "" {
			continue
		}
		if b.Len() > 0 && runeLen(b.String())+1+runeLen(word) > limit {
			flush()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	flush()
	return out
}

func lastWords(text string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '\u00bb', '\u201d', '\u2019':
		return true
	default:
		return false
	}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
