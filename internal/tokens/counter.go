// Package tokens keeps chat prompts inside a model's context window.
package tokens

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/wolfman30/spa-concierge/internal/llm"
)

// messageOverhead is the per-message framing cost of the chat format
// (<|start|>{role}\n{content}<|end|>\n).
const messageOverhead = 4

// Counter reports how many tokens a prompt message occupies.
type Counter interface {
	CountMessage(msg llm.Message) int
}

// TiktokenCounter counts tokens with the same BPE encoding the completion model uses.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the encoding for model, falling back to cl100k_base
// for model names tiktoken does not know.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			return nil, fmt.Errorf("tokens: load encoding for %q: %w", model, err)
		}
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) CountMessage(msg llm.Message) int {
	return messageOverhead +
		len(c.enc.Encode(string(msg.Role), nil, nil)) +
		len(c.enc.Encode(msg.Content, nil, nil))
}

// ApproxCounter estimates tokens from word counts. It is approximate: English
// text averages roughly four tokens per three words, and the estimate can be off
// for code, numbers or non-English text. Use it only when TiktokenCounter cannot
// be loaded.
type ApproxCounter struct{}

func (ApproxCounter) CountMessage(msg llm.Message) int {
	words := len(strings.Fields(msg.Content))
	return messageOverhead + 1 + int(math.Ceil(float64(words)*4/3))
}

// NewCounter prefers exact tokenization and degrades to ApproxCounter.
// The returned bool reports whether the counter is exact.
func NewCounter(model string) (Counter, bool) {
	counter, err := NewTiktokenCounter(model)
	if err != nil {
		return ApproxCounter{}, false
	}
	return counter, true
}

// Total sums the token count of every message.
func Total(messages []llm.Message, counter Counter) int {
	total := 0
	for _, msg := range messages {
		total += counter.CountMessage(msg)
	}
	return total
}
