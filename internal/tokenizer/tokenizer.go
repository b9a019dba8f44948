// Package tokenizer counts model tokens in serialized text.
package tokenizer

import (
	"fmt"
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultModel is the model whose encoding sizes result payloads.
const DefaultModel = "gpt-4o"

// Counter returns the number of tokens in text. Implementations must be
// deterministic for a given input.
type Counter interface {
	Count(text string) int
}

var loaderOnce sync.Once

// Tiktoken counts tokens with the BPE encoding of an OpenAI model.
// Encodings are loaded from data embedded in the binary, never the network.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken returns a counter for model (DefaultModel when empty).
func NewTiktoken(model string) (*Tiktoken, error) {
	if model == "" {
		model = DefaultModel
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("load encoding for %s: %w", model, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the number of BPE tokens in text.
func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// WordCounter counts each run of letters/digits and each other non-space
// rune as one token. It approximates BPE cost without any model data.
type WordCounter struct{}

// Count returns the approximate token count of text.
func (WordCounter) Count(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				n++
				inWord = true
			}
		case unicode.IsSpace(r):
			inWord = false
		default:
			n++
			inWord = false
		}
	}
	return n
}

// Func adapts a plain function to Counter.
type Func func(text string) int

// Count calls f(text).
func (f Func) Count(text string) int { return f(text) }
