package text

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// Chunk is a contiguous span of the input. StartIndex and EndIndex are
// character (rune) offsets, end exclusive.
type Chunk struct {
	Text       string
	StartIndex int
	EndIndex   int
	TokenCount int
}

// Chunker splits a unit of text into ordered chunks.
type Chunker interface {
	Chunk(text string) []Chunk
}

// ChunkerFactory builds a chunker for a given token budget.
type ChunkerFactory func(chunkSize, overlap int) (Chunker, error)

var DefaultDelimiters = []string{". ", "! ", "? ", "\n"}

const (
	DefaultMinSentencesPerChunk     = 1
	DefaultMinCharactersPerSentence = 12
)

// SentenceChunker packs whole sentences into chunks of at most ChunkSize
// tokens. Consecutive chunks share trailing sentences worth at most Overlap
// tokens. A single sentence larger than ChunkSize becomes its own chunk.
type SentenceChunker struct {
	counter TokenCounter

	ChunkSize                int
	Overlap                  int
	MinSentencesPerChunk     int
	MinCharactersPerSentence int
	Delimiters               []string
}

func NewSentenceChunker(counter TokenCounter, chunkSize, overlap int) (*SentenceChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkConfig, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, overlap, chunkSize)
	}
	return &SentenceChunker{
		counter:                  counter,
		ChunkSize:                chunkSize,
		Overlap:                  overlap,
		MinSentencesPerChunk:     DefaultMinSentencesPerChunk,
		MinCharactersPerSentence: DefaultMinCharactersPerSentence,
		Delimiters:               DefaultDelimiters,
	}, nil
}

// NewSentenceChunkerFactory binds a token counter so parsers can pick the
// budget per request.
func NewSentenceChunkerFactory(counter TokenCounter) ChunkerFactory {
	return func(chunkSize, overlap int) (Chunker, error) {
		return NewSentenceChunker(counter, chunkSize, overlap)
	}
}

type sentence struct {
	start, end int // byte offsets
	tokens     int
}

func (c *SentenceChunker) Chunk(text string) []Chunk {
	sentences := c.sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	minSentences := c.MinSentencesPerChunk
	if minSentences < 1 {
		minSentences = 1
	}

	var chunks []Chunk
	pos := 0
	for pos < len(sentences) {
		end := pos
		tokens := 0
		for end < len(sentences) && (end-pos < minSentences || tokens+sentences[end].tokens <= c.ChunkSize) {
			tokens += sentences[end].tokens
			end++
		}

		startByte, endByte := sentences[pos].start, sentences[end-1].end
		content := text[startByte:endByte]
		if strings.TrimSpace(content) != "" {
			startRune := utf8.RuneCountInString(text[:startByte])
			chunks = append(chunks, Chunk{
				Text:       content,
				StartIndex: startRune,
				EndIndex:   startRune + utf8.RuneCountInString(content),
				TokenCount: c.counter.Count(content),
			})
		}

		if end >= len(sentences) {
			break
		}
		pos = end - c.overlapSentences(sentences[pos:end])
	}
	return chunks
}

// overlapSentences counts how many trailing sentences of the window fit in
// the overlap budget. The first sentence is never reused so the window
// always advances.
func (c *SentenceChunker) overlapSentences(window []sentence) int {
	if c.Overlap <= 0 {
		return 0
	}
	n, tokens := 0, 0
	for i := len(window) - 1; i > 0; i-- {
		if tokens+window[i].tokens > c.Overlap {
			break
		}
		tokens += window[i].tokens
		n++
	}
	return n
}

func (c *SentenceChunker) sentences(text string) []sentence {
	var out []sentence
	pending := -1
	flush := func(start, end int) {
		out = append(out, sentence{start: start, end: end, tokens: c.counter.Count(text[start:end])})
	}

	for _, span := range splitKeepDelimiters(text, c.Delimiters) {
		start, end := span[0], span[1]
		short := utf8.RuneCountInString(text[start:end]) < c.MinCharactersPerSentence
		if pending < 0 {
			if short {
				pending = start
				continue
			}
			flush(start, end)
			continue
		}
		// a short run is open; extend it and close once it is long enough
		if utf8.RuneCountInString(text[pending:end]) >= c.MinCharactersPerSentence || !short {
			flush(pending, end)
			pending = -1
		}
	}
	if pending >= 0 {
		flush(pending, len(text))
	}
	return out
}

// splitKeepDelimiters returns [start, end) byte spans, each ending just after
// a delimiter. Text after the last delimiter forms the final span.
func splitKeepDelimiters(text string, delimiters []string) [][2]int {
	var spans [][2]int
	start := 0
	for i := 0; i < len(text); {
		matched := 0
		for _, d := range delimiters {
			if d != "" && strings.HasPrefix(text[i:], d) {
				matched = len(d)
				break
			}
		}
		if matched == 0 {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			continue
		}
		i += matched
		// swallow trailing whitespace so it stays with the sentence it ends
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) || r == '\n' {
				break
			}
			i += size
		}
		spans = append(spans, [2]int{start, i})
		start = i
	}
	if start < len(text) {
		spans = append(spans, [2]int{start, len(text)})
	}
	return spans
}
