package ingest

import (
	"regexp"
	"strings"
)

// Chunker tunable defaults.
const (
	DefaultMinTokens     = 300
	DefaultMaxTokens     = 600
	DefaultOverlapTokens = 60
)

var (
	paragraphRe = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)
	sentenceRe  = regexp.MustCompile(`([.!?])\s+`)
)

// Chunk is one token-bounded piece of a document, in source order.
type Chunk struct {
	Content    string
	TokenCount int
}

// Chunker splits text into token-budgeted chunks. Paragraphs are packed into
// chunks of at most maxTokens, consecutive chunks share an overlap tail so
// retrieval doesn't lose context that straddles a boundary, and paragraphs
// too large for a single chunk fall back to sentence-level splitting.
//
// Splitting is deterministic: the same text and tunables always produce the
// same chunk sequence, which re-ingestion on retry relies on.
type Chunker struct {
	minTokens     int
	maxTokens     int
	overlapTokens int
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithMinTokens sets the lower bound a buffer must reach before it is flushed
// as a chunk.
func WithMinTokens(n int) ChunkerOption {
	return func(c *Chunker) {
		if n > 0 {
			c.minTokens = n
		}
	}
}

// WithMaxTokens sets the hard ceiling per chunk.
func WithMaxTokens(n int) ChunkerOption {
	return func(c *Chunker) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithOverlapTokens sets the context carried across paragraph-level chunk
// boundaries. Zero disables overlap.
func WithOverlapTokens(n int) ChunkerOption {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlapTokens = n
		}
	}
}

// NewChunker creates a Chunker with the given options.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		minTokens:     DefaultMinTokens,
		maxTokens:     DefaultMaxTokens,
		overlapTokens: DefaultOverlapTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxTokens <= c.minTokens {
		c.maxTokens = c.minTokens * 2
	}
	if c.overlapTokens >= c.minTokens {
		c.overlapTokens = c.minTokens / 4
	}
	return c
}

// EstimateTokens approximates the token count of s as ceil(runes/4). This is
// a heuristic, not a tokenizer: callers may rely on monotonicity with text
// length, never on exactness.
func EstimateTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}

// Split produces the ordered chunk sequence for text. Empty or
// whitespace-only input yields no chunks; the pipeline treats that as an
// ingestion error rather than a silent success.
func (c *Chunker) Split(text string) []Chunk {
	var chunks []Chunk
	var buf []string // accumulated paragraphs; buf[0] may be an overlap tail
	seeded := false  // true while buf holds only the overlap tail

	bufText := func() string { return strings.Join(buf, "\n\n") }

	flush := func() string {
		content := bufText()
		chunks = append(chunks, Chunk{Content: content, TokenCount: EstimateTokens(content)})
		buf = buf[:0]
		seeded = false
		return content
	}

	seed := func(flushed string) {
		if tail := c.overlapTail(flushed); tail != "" {
			buf = append(buf, tail)
			seeded = true
		}
	}

	for _, para := range splitParagraphs(text) {
		if EstimateTokens(para) > c.maxTokens {
			// Paragraph too large for any single chunk: emit the buffer
			// first, then split the paragraph by sentences. No overlap is
			// carried across these sentence-level splits.
			if len(buf) > 0 {
				if EstimateTokens(bufText()) >= c.minTokens {
					flush()
				} else {
					// Too small to stand alone; carry it into the sentence
					// packing so nothing is lost or reordered.
					para = bufText() + "\n\n" + para
					buf = buf[:0]
					seeded = false
				}
			}
			chunks = append(chunks, c.packSentences(para)...)
			continue
		}

		if len(buf) == 0 {
			buf = append(buf, para)
			continue
		}

		if EstimateTokens(bufText()+"\n\n"+para) <= c.maxTokens {
			buf = append(buf, para)
			seeded = false
			continue
		}

		// Buffer is full. Flush it and seed the next buffer with an overlap
		// tail. A buffer still under minTokens flushes short rather than
		// overflowing: the token ceiling is hard, the floor is best effort.
		seedSrc := flush()
		seed(seedSrc)
		if seeded && EstimateTokens(bufText()+"\n\n"+para) > c.maxTokens {
			// The tail plus a large paragraph would breach the ceiling; the
			// ceiling wins over overlap.
			buf = buf[:0]
		}
		buf = append(buf, para)
		seeded = false
	}

	// Trailing buffer: a looser threshold so short trailing content isn't
	// discarded outright. A buffer holding only an overlap tail is dropped,
	// its content is already in the previous chunk.
	if len(buf) > 0 && !seeded && EstimateTokens(bufText()) >= c.minTokens/2 {
		flush()
	}
	return chunks
}

// packSentences greedily packs the sentences of an oversized paragraph into
// sub-chunks of at most maxTokens each.
func (c *Chunker) packSentences(para string) []Chunk {
	var out []Chunk
	var cur []string

	curText := func() string { return strings.Join(cur, " ") }
	emit := func(content string) {
		out = append(out, Chunk{Content: content, TokenCount: EstimateTokens(content)})
	}

	for _, s := range splitSentences(para) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if EstimateTokens(s) > c.maxTokens {
			// A single run-on sentence beyond the ceiling; hard-split it so
			// the per-chunk bound still holds.
			if len(cur) > 0 {
				emit(curText())
				cur = cur[:0]
			}
			for _, piece := range hardSplit(s, c.maxTokens*4) {
				emit(piece)
			}
			continue
		}
		if len(cur) > 0 && EstimateTokens(curText()+" "+s) > c.maxTokens {
			emit(curText())
			cur = cur[:0]
		}
		cur = append(cur, s)
	}
	if len(cur) > 0 {
		emit(curText())
	}
	return out
}

// overlapTail returns the trailing words of a flushed chunk worth roughly
// overlapTokens of context (~0.75 words per token).
func (c *Chunker) overlapTail(flushed string) string {
	if c.overlapTokens <= 0 {
		return ""
	}
	words := strings.Fields(flushed)
	keep := c.overlapTokens * 3 / 4
	if keep <= 0 {
		return ""
	}
	if keep > len(words) {
		keep = len(words)
	}
	return strings.Join(words[len(words)-keep:], " ")
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphRe.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences splits on sentence-ending punctuation followed by
// whitespace, keeping the punctuation with the preceding sentence.
func splitSentences(p string) []string {
	matches := sentenceRe.FindAllStringSubmatchIndex(p, -1)
	if len(matches) == 0 {
		return []string{p}
	}
	var out []string
	start := 0
	for _, m := range matches {
		out = append(out, p[start:m[3]]) // through the punctuation
		start = m[1]                     // past the whitespace
	}
	if start < len(p) {
		out = append(out, p[start:])
	}
	return out
}

// hardSplit cuts s into rune-bounded pieces of at most maxRunes each.
func hardSplit(s string, maxRunes int) []string {
	runes := []rune(s)
	var out []string
	for len(runes) > 0 {
		n := maxRunes
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
