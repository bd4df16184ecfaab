// Package chunker splits document text into overlapping semantic chunks sized
// for embedding and retrieval.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"document-qa/internal/models"
)

const (
	DefaultMaxChars     = 800
	DefaultOverlapChars = 150
)

var (
	carriageReturns = regexp.MustCompile(`\r`)
	paragraphBreaks = regexp.MustCompile(`\n{3,}`)
	headingLine     = regexp.MustCompile(`^[A-Z][A-Z \t]{3,}$`)
)

// Chunker holds the size budget. Lengths are counted in characters, not bytes.
type Chunker struct {
	maxChars     int
	overlapChars int
}

// New returns a Chunker. A non-positive maxChars falls back to DefaultMaxChars
// and a negative overlap disables overlap.
func New(maxChars, overlapChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars}
}

// Chunk is shorthand for New(maxChars, overlapChars).Split(text).
func Chunk(text string, maxChars, overlapChars int) []string {
	return New(maxChars, overlapChars).Split(text)
}

// Split returns the chunks of text in document order. Every chunk after the
// first starts with the trailing overlap of the previous chunk's own content.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	return c.addOverlap(c.merge(semanticUnits(normalize(text))))
}

func normalize(text string) string {
	text = carriageReturns.ReplaceAllString(text, "")
	return paragraphBreaks.ReplaceAllString(text, models.ChunkSeparator)
}

// semanticUnits cuts at blank lines and immediately before heading or bullet lines.
func semanticUnits(text string) []string {
	var units []string
	var current []string

	flush := func() {
		unit := strings.TrimSpace(strings.Join(current, "\n"))
		if unit != "" {
			units = append(units, unit)
		}
		current = current[:0]
	}

	for _, block := range strings.Split(text, "\n\n") {
		for i, line := range strings.Split(block, "\n") {
			if i > 0 && startsUnit(line) {
				flush()
			}
			current = append(current, line)
		}
		flush()
	}
	return units
}

func startsUnit(line string) bool {
	return headingLine.MatchString(line) ||
		strings.HasPrefix(line, "●") ||
		strings.HasPrefix(line, "- ")
}

// merge greedily packs units into chunks of at most maxChars. A unit that is
// longer than maxChars on its own becomes its own oversized chunk.
func (c *Chunker) merge(units []string) []string {
	var chunks []string
	var current string
	sepLen := utf8.RuneCountInString(models.ChunkSeparator)

	for _, unit := range units {
		if current == "" {
			current = unit
			continue
		}
		if runeLen(current)+sepLen+runeLen(unit) <= c.maxChars {
			current += models.ChunkSeparator + unit
			continue
		}
		chunks = append(chunks, current)
		current = unit
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func (c *Chunker) addOverlap(chunks []string) []string {
	if c.overlapChars == 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		out[i] = tail(chunks[i-1], c.overlapChars) + models.ChunkSeparator + chunks[i]
	}
	return out
}

// tail returns the last n characters of s, or all of s when it is shorter.
func tail(s string, n int) string {
	r := []rune(s)
	if n >= len(r) {
		return s
	}
	return string(r[len(r)-n:])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
