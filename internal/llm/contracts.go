package llm

import (
	"context"

	"github.com/joseph-ayodele/autofill/constants"
)

// Completion is the raw answer of one model call.
type Completion struct {
	Content          string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
}

// TotalTokens is prompt plus completion tokens.
func (c Completion) TotalTokens() int64 {
	return c.PromptTokens + c.CompletionTokens
}

// Client is the interface our pipeline depends on. Failures match
// common.ErrModelUnavailable or common.ErrModelTimeout.
type Client interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, prompt string) (Completion, error)

func (f ClientFunc) Complete(ctx context.Context, prompt string) (Completion, error) {
	return f(ctx, prompt)
}

// Result is the model output reconciled against the requested fields.
// Values holds exactly one entry per requested name; nil means not found.
type Result struct {
	Status constants.Status
	Values map[string]*string
	// Dropped lists keys the model returned that were not requested or could not be used.
	Dropped []string
}

// Found counts the non-null values.
func (r Result) Found() int {
	n := 0
	for _, v := range r.Values {
		if v != nil {
			n++
		}
	}
	return n
}
