package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tiktokenPerMessageOverhead mirrors OpenAI's documented chat-format
// overhead: each message costs a fixed number of framing tokens on top
// of its role and content, and every reply is primed with a trailing
// assistant-start sequence.
const (
	tiktokenPerMessageOverhead = 3
	tiktokenReplyPrimingTokens = 3
)

var (
	encodingCache = map[string]*tiktoken.Tiktoken{}
	encodingMu    sync.RWMutex
)

// TiktokenTokenizer is the accurate Tokenizer implementation for
// OpenAI-family models, used by internal/ctxassembly's budget trimming
// so history/memory selection matches what the provider will actually
// bill, not a chars/4 heuristic.
type TiktokenTokenizer struct {
	model    string
	encoding *tiktoken.Tiktoken
}

// NewTiktokenTokenizer builds a tokenizer for model, falling back to
// cl100k_base when the model has no registered encoding (self-hosted or
// unrecognized model names).
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	encodingMu.RLock()
	cached, ok := encodingCache[model]
	encodingMu.RUnlock()
	if ok {
		return &TiktokenTokenizer{model: model, encoding: cached}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("tiktoken: no encoding available for %q: %w", model, err)
		}
	}

	encodingMu.Lock()
	encodingCache[model] = enc
	encodingMu.Unlock()

	return &TiktokenTokenizer{model: model, encoding: enc}, nil
}

func (t *TiktokenTokenizer) CountTokens(_ context.Context, text string) (int, error) {
	return len(t.encoding.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessagesTokens(_ context.Context, msgs []Message) (int, error) {
	total := tiktokenReplyPrimingTokens
	for _, m := range msgs {
		total += tiktokenPerMessageOverhead
		total += len(t.encoding.Encode(m.Role, nil, nil))
		total += len(t.encoding.Encode(m.Content, nil, nil))
	}
	return total, nil
}
