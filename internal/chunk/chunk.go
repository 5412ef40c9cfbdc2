// Package chunk implements Chunker (spec §4.3): splitting a textual body
// into an ordered, overlapping sequence of segments under a strategy
// chosen from paragraph, line, token, or character splitting.
package chunk

import (
	"regexp"
	"strings"

	"github.com/DrunkOnJava/ingestor-service/internal/config"
)

// DefaultMaxSize and DefaultOverlapFraction mirror spec §4.3's stated defaults:
// maxSize = 4 MiB, overlap = 10% of maxSize.
const (
	DefaultMaxSize = 4 * 1024 * 1024
	DefaultOverlapFraction = 0.10
)

// Options configures a single Chunk call.
type Options struct {
	MaxSize  int
	Overlap  int
	Strategy config.ChunkStrategy
}

// WithDefaults fills zero-valued fields with spec §4.3's defaults. The
// default Overlap (10% of MaxSize) is applied only when MaxSize is unset
// too, so an explicit MaxSize with Overlap 0 means no overlap.
func (o Options) WithDefaults() Options {
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
		if o.Overlap <= 0 {
			o.Overlap = int(float64(o.MaxSize) * DefaultOverlapFraction)
		}
	}
	if o.Strategy == "" {
		o.Strategy = config.ChunkStrategyParagraph
	}
	return o
}

// tokenSplit approximates tokenization by splitting on whitespace and
// punctuation boundaries — spec §4.3 and §9 explicitly call this an
// approximation, not a real tokenizer.
var tokenSplit = regexp.MustCompile(`\s+|(?:[[:punct:]])`)

// Chunk splits text into an ordered sequence of strings per opts.Strategy.
// Chunking is a no-op (single full-body chunk) when len(text) <= maxSize,
// matching ContentProcessor's "only when len(text) > maxSize" rule
// (spec §4.3/§4.6) — callers that always want segmentation regardless of
// size should call chunkBySegments directly via Split.
func Chunk(text string, opts Options) []string {
	opts = opts.WithDefaults()
	if len(text) == 0 {
		return []string{""}
	}
	if len(text) <= opts.MaxSize {
		return []string{text}
	}
	return Split(text, opts)
}

// Split always segments text by opts.Strategy, regardless of size —
// used directly by tests and by callers that already decided chunking
// applies.
func Split(text string, opts Options) []string {
	opts = opts.WithDefaults()
	if text == "" {
		return []string{""}
	}

	switch opts.Strategy {
	case config.ChunkStrategyCharacter:
		return chunkByCharacter(text, opts.MaxSize, opts.Overlap)
	case config.ChunkStrategyLine:
		return chunkBySegments(splitLines(text), opts.MaxSize, opts.Overlap)
	case config.ChunkStrategyToken:
		return chunkBySegments(splitTokens(text), opts.MaxSize, opts.Overlap)
	default:
		return chunkBySegments(splitParagraphs(text), opts.MaxSize, opts.Overlap)
	}
}

func splitParagraphs(text string) []string {
	parts := regexp.MustCompile(`\n\s*\n`).Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l)
	}
	return out
}

func splitTokens(text string) []string {
	matches := tokenSplit.Split(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if m != "" {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// chunkBySegments assembles segments greedily into a chunk until adding
// the next would exceed maxSize, then emits the chunk, retains a tail of
// min(overlap, currentSize) from the end, and begins the next chunk with
// that tail (spec §4.3). A single oversized segment is emitted alone
// rather than dropped.
func chunkBySegments(segments []string, maxSize, overlap int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() string {
		out := current.String()
		current.Reset()
		return out
	}

	appendSeparator := func(s *strings.Builder) {
		if s.Len() > 0 {
			s.WriteString("\n")
		}
	}

	for _, seg := range segments {
		candidateLen := current.Len()
		if current.Len() > 0 {
			candidateLen++ // separator
		}
		candidateLen += len(seg)

		if current.Len() > 0 && candidateLen > maxSize {
			done := flush()
			chunks = append(chunks, done)
			tail := tailOf(done, overlap)
			current.WriteString(tail)
		}

		if current.Len() == 0 && len(seg) > maxSize {
			// A single oversized segment is emitted alone.
			chunks = append(chunks, seg)
			continue
		}

		appendSeparator(&current)
		current.WriteString(seg)
	}

	if current.Len() > 0 {
		chunks = append(chunks, flush())
	}
	if len(chunks) == 0 {
		chunks = append(chunks, "")
	}
	return chunks
}

// chunkByCharacter uses a sliding window of maxSize bytes with an
// overlap step-back, always advancing at least one byte per chunk to
// prevent livelock (spec §4.3).
func chunkByCharacter(text string, maxSize, overlap int) []string {
	if overlap >= maxSize {
		overlap = maxSize - 1
	}
	if overlap < 0 {
		overlap = 0
	}
	step := maxSize - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + maxSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	if len(chunks) == 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

// tailOf returns the last min(n, len(s)) characters of s.
func tailOf(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) == 0 {
		return ""
	}
	if n >= len(r) {
		return s
	}
	return string(r[len(r)-n:])
}
