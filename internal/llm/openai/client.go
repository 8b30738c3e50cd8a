// Package openai implements llm.Client over any OpenAI-compatible chat completions endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/llm"
)

var _ llm.Client = (*Client)(nil)

// Complete sends the system prompt plus the instruction and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (llm.Completion, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	c.logger.Info("llm.openai.request",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"json_mode", c.cfg.JSONMode,
		"prompt_len", len(prompt),
	)

	params := openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(c.cfg.Model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(llm.SystemPrompt),
			openaisdk.UserMessage(prompt),
		},
		Temperature: openaisdk.Float(float64(c.cfg.Temperature)),
	}
	if c.cfg.JSONMode {
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	ctx, cancel := common.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.sdk.Chat.Completions.New(ctx, params, option.WithHeader("X-Request-ID", rid))
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		mapped := classify(ctx, err)
		c.logger.Error("llm.openai.error",
			"req_id", rid,
			"error", err,
			"timeout", errors.Is(mapped, common.ErrModelTimeout),
			"elapsed_ms", elapsed,
		)
		return llm.Completion{}, mapped
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("llm.openai.no_choices", "req_id", rid, "elapsed_ms", elapsed)
		return llm.Completion{}, common.ModelUnavailable("model returned no choices", nil)
	}

	out := llm.Completion{
		Content:          strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if out.Model == "" {
		out.Model = c.cfg.Model
	}

	c.logger.Info("llm.openai.ok",
		"req_id", rid,
		"model", out.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", out.PromptTokens,
		"completion_tokens", out.CompletionTokens,
		"content_len", len(out.Content),
		"elapsed_ms", elapsed,
	)
	return out, nil
}

// classify maps an SDK failure onto the model error taxonomy.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return common.ModelTimeout("model call timed out", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return common.ModelTimeout("model call timed out", err)
	}
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return common.ModelUnavailable(fmt.Sprintf("model service returned status %d", apiErr.StatusCode), err)
	}
	return common.ModelUnavailable(fmt.Sprintf("model service unreachable: %v", err), err)
}
