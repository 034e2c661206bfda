package ingest_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exexexll/figwork-knowledge/internal/ingest"
)

// words builds a paragraph of n distinct, numbered words so tests can check
// ordering and overlap by content.
func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%04d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 0, ingest.EstimateTokens(""))
	require.Equal(t, 1, ingest.EstimateTokens("abcd"))
	require.Equal(t, 2, ingest.EstimateTokens("abcde"))
	// Rune-based, not byte-based.
	require.Equal(t, 1, ingest.EstimateTokens("日本語だ"))
}

func TestSplitEmptyInput(t *testing.T) {
	c := ingest.NewChunker()
	require.Empty(t, c.Split(""))
	require.Empty(t, c.Split("   \n\n \t \n\n  "))
}

func TestSplitMergesAdjacentParagraphs(t *testing.T) {
	// Two ~250-token paragraphs fit one 600-token chunk together.
	p1 := words("alpha", 100)
	p2 := words("beta", 100)

	chunks := ingest.NewChunker().Split(p1 + "\n\n" + p2)

	require.Len(t, chunks, 1)
	require.Contains(t, chunks[0].Content, "alpha0000")
	require.Contains(t, chunks[0].Content, "beta0099")
	require.Equal(t, ingest.EstimateTokens(chunks[0].Content), chunks[0].TokenCount)
	require.LessOrEqual(t, chunks[0].TokenCount, ingest.DefaultMaxTokens)
	require.GreaterOrEqual(t, chunks[0].TokenCount, ingest.DefaultMinTokens)
}

func TestSplitOversizedParagraphFallsBackToSentences(t *testing.T) {
	// One paragraph far beyond maxTokens, made of short sentences.
	var sentences []string
	for i := 0; i < 80; i++ {
		sentences = append(sentences, fmt.Sprintf("Sentence %04d covers one more detail of the report.", i))
	}
	para := strings.Join(sentences, " ")
	require.Greater(t, ingest.EstimateTokens(para), ingest.DefaultMaxTokens)

	chunks := ingest.NewChunker().Split(para)

	require.GreaterOrEqual(t, len(chunks), 2)
	for _, ch := range chunks {
		require.LessOrEqual(t, ch.TokenCount, ingest.DefaultMaxTokens)
		require.Equal(t, ingest.EstimateTokens(ch.Content), ch.TokenCount)
	}

	// Sentence-level splits carry no overlap, so the pieces reassemble to
	// the original paragraph exactly.
	var contents []string
	for _, ch := range chunks {
		contents = append(contents, ch.Content)
	}
	require.Equal(t, para, strings.Join(contents, " "))
}

func TestSplitOverlapAcrossParagraphChunks(t *testing.T) {
	// Three ~400-token paragraphs force two chunk boundaries.
	text := words("alpha", 160) + "\n\n" + words("beta", 160) + "\n\n" + words("gamma", 160)

	chunks := ingest.NewChunker().Split(text)
	require.Len(t, chunks, 3)

	// Each chunk after the first starts with the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		head := strings.Fields(chunks[i].Content)
		require.Greater(t, len(head), 10)
		prev := chunks[i-1].Content
		for _, w := range head[:10] {
			require.Contains(t, prev, w)
		}
	}
	// Past the overlap tail, chunk 2 is the second paragraph.
	require.Contains(t, chunks[1].Content, "beta0000")
	require.Contains(t, chunks[1].Content, "beta0159")
	require.NotContains(t, chunks[0].Content, "beta0000")

	for _, ch := range chunks {
		require.LessOrEqual(t, ch.TokenCount, ingest.DefaultMaxTokens)
	}
}

func TestSplitShortDocument(t *testing.T) {
	c := ingest.NewChunker()

	// Far below the trailing threshold: dropped.
	require.Empty(t, c.Split(words("tiny", 40)))

	// Above half of minTokens: kept as a single short chunk.
	chunks := c.Split(words("short", 120))
	require.Len(t, chunks, 1)
	require.Contains(t, chunks[0].Content, "short0000")
}

func TestSplitCustomTunables(t *testing.T) {
	c := ingest.NewChunker(
		ingest.WithMinTokens(50),
		ingest.WithMaxTokens(100),
		ingest.WithOverlapTokens(10),
	)

	text := words("one", 40) + "\n\n" + words("two", 40) + "\n\n" + words("three", 40)
	chunks := c.Split(text)

	require.GreaterOrEqual(t, len(chunks), 2)
	for _, ch := range chunks {
		require.LessOrEqual(t, ch.TokenCount, 100)
	}
	all := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		all = append(all, ch.Content)
	}
	joined := strings.Join(all, " ")
	require.Contains(t, joined, "one0000")
	require.Contains(t, joined, "three0039")
}

func TestSplitDeterministic(t *testing.T) {
	var sentences []string
	for i := 0; i < 120; i++ {
		sentences = append(sentences, fmt.Sprintf("Line %04d of the appendix explains a corner case.", i))
	}
	text := words("intro", 200) + "\n\n" +
		strings.Join(sentences, " ") + "\n\n" +
		words("outro", 300)

	c := ingest.NewChunker()
	first := c.Split(text)
	second := c.Split(text)
	require.Equal(t, first, second)

	for _, ch := range first {
		require.LessOrEqual(t, ch.TokenCount, ingest.DefaultMaxTokens)
		require.NotEmpty(t, strings.TrimSpace(ch.Content))
	}
}
