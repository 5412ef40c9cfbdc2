package chunk

import (
	"strings"
	"testing"

	"github.com/DrunkOnJava/ingestor-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_SmallTextIsSingleChunk(t *testing.T) {
	out := Chunk("hello world", Options{MaxSize: 100})
	require.Len(t, out, 1)
	assert.Equal(t, "hello world", out[0])
}

func TestChunk_EmptyTextYieldsOneEmptyChunk(t *testing.T) {
	out := Chunk("", Options{})
	require.Len(t, out, 1)
	assert.Equal(t, "", out[0])
}

func TestSplit_Paragraph_SplitsOnBlankLines(t *testing.T) {
	text := "first paragraph\nstill first\n\nsecond paragraph\n\nthird paragraph"
	out := Split(text, Options{MaxSize: 20, Overlap: 0, Strategy: config.ChunkStrategyParagraph})
	require.GreaterOrEqual(t, len(out), 2)
	for _, c := range out {
		assert.NotEmpty(t, c)
	}
}

func TestSplit_Line_SplitsOnNewlines(t *testing.T) {
	text := "line one\nline two\nline three\nline four"
	out := Split(text, Options{MaxSize: 10, Overlap: 0, Strategy: config.ChunkStrategyLine})
	require.GreaterOrEqual(t, len(out), 2)
}

func TestSplit_Token_SplitsOnWhitespaceAndPunctuation(t *testing.T) {
	text := "the quick, brown fox; jumps over the lazy dog."
	out := Split(text, Options{MaxSize: 15, Overlap: 0, Strategy: config.ChunkStrategyToken})
	require.GreaterOrEqual(t, len(out), 2)
}

func TestSplit_Character_ProducesAtLeastOneChunk(t *testing.T) {
	text := strings.Repeat("a", 100)
	out := Split(text, Options{MaxSize: 30, Overlap: 0, Strategy: config.ChunkStrategyCharacter})
	require.GreaterOrEqual(t, len(out), 1)
}

func TestSplit_Character_ZeroOverlap_ConcatenationEqualsInput(t *testing.T) {
	text := strings.Repeat("abcdefghij", 10) // 100 bytes
	out := Split(text, Options{MaxSize: 30, Overlap: 0, Strategy: config.ChunkStrategyCharacter})

	var rebuilt strings.Builder
	for _, c := range out {
		rebuilt.WriteString(c)
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplit_Character_EachChunkAtMostMaxSize(t *testing.T) {
	text := strings.Repeat("x", 257)
	out := Split(text, Options{MaxSize: 64, Overlap: 16, Strategy: config.ChunkStrategyCharacter})
	require.NotEmpty(t, out)
	for _, c := range out {
		assert.LessOrEqual(t, len(c), 64)
	}
}

func TestSplit_Character_OverlapRepeatsTailOfPriorChunk(t *testing.T) {
	text := strings.Repeat("0123456789", 10) // 100 bytes
	out := Split(text, Options{MaxSize: 30, Overlap: 10, Strategy: config.ChunkStrategyCharacter})
	require.GreaterOrEqual(t, len(out), 2)
	assert.Equal(t, out[0][len(out[0])-10:], out[1][:10])
}

func TestSplit_Character_AdvancesAtLeastOneByte_NoLivelock(t *testing.T) {
	text := strings.Repeat("z", 50)
	out := Split(text, Options{MaxSize: 10, Overlap: 9, Strategy: config.ChunkStrategyCharacter})
	require.Less(t, len(out), 100) // terminates, doesn't loop forever
}

func TestSplit_OverlapEqualToMaxSize_DoesNotLivelock(t *testing.T) {
	text := strings.Repeat("y", 40)
	out := Split(text, Options{MaxSize: 10, Overlap: 10, Strategy: config.ChunkStrategyCharacter})
	require.NotEmpty(t, out)
	require.Less(t, len(out), 100)
}

func TestSplit_OversizedSingleSegmentEmittedAlone(t *testing.T) {
	oversized := strings.Repeat("w", 50)
	text := "short\n\n" + oversized + "\n\nshort again"
	out := Split(text, Options{MaxSize: 20, Overlap: 0, Strategy: config.ChunkStrategyParagraph})
	require.NotEmpty(t, out)
	found := false
	for _, c := range out {
		if c == oversized {
			found = true
		}
	}
	assert.True(t, found)
}

func TestWithDefaults_FillsZeroValues(t *testing.T) {
	o := Options{}.WithDefaults()
	assert.Equal(t, DefaultMaxSize, o.MaxSize)
	assert.Equal(t, int(float64(DefaultMaxSize)*DefaultOverlapFraction), o.Overlap)
	assert.Equal(t, config.ChunkStrategyParagraph, o.Strategy)
}

func TestChunk_ChunkCountIsAlwaysAtLeastOne(t *testing.T) {
	for _, text := range []string{"", "x", strings.Repeat("a", 1000)} {
		out := Chunk(text, Options{MaxSize: 10, Strategy: config.ChunkStrategyCharacter})
		assert.GreaterOrEqual(t, len(out), 1)
	}
}
