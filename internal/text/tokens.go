package text

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// WordCounter approximates tokens as whitespace-separated words.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// GPT2Encoding is the BPE vocabulary shared by gpt2 and r50k_base.
const GPT2Encoding = "r50k_base"

var loaderOnce sync.Once

// BPECounter counts tokens with a tiktoken BPE encoding. The vocabulary is
// embedded, so no network access happens at runtime.
type BPECounter struct {
	enc *tiktoken.Tiktoken
}

func NewBPECounter(encoding string) (*BPECounter, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encoding, err)
	}
	return &BPECounter{enc: enc}, nil
}

func (c *BPECounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// NewTokenCounter resolves a tokenizer name from configuration.
func NewTokenCounter(name string) (TokenCounter, error) {
	switch strings.ToLower(name) {
	case "", "gpt2", GPT2Encoding:
		return NewBPECounter(GPT2Encoding)
	case "words", "whitespace":
		return WordCounter{}, nil
	default:
		return NewBPECounter(name)
	}
}
