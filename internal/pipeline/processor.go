// Package pipeline runs one auto-fill request end to end and renders the response envelope.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/fields"
	"github.com/joseph-ayodele/autofill/internal/llm"
	"github.com/joseph-ayodele/autofill/internal/usage"
)

// Request is one auto-fill call.
type Request struct {
	Filename    string
	ContentType string
	Data        []byte
	Fields      []byte // raw JSON array of {field_name, field_type}
	ClientID    string
}

// Outcome is the envelope plus what the pipeline learned on the way.
type Outcome struct {
	Envelope Envelope
	Status   constants.Status
	Fields   []fields.Spec
	Format   constants.Format
	Method   string
	Tokens   int64
	Err      error
	Elapsed  time.Duration
}

// Processor coordinates text extraction then the model call.
type Processor struct {
	Logger  *slog.Logger
	Extract *ExtractStage
	Model   *ModelStage
	Usage   usage.Ledger // optional
}

func NewProcessor(logger *slog.Logger, ex *ExtractStage, model *ModelStage, ledger usage.Ledger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Extract: ex, Model: model, Usage: ledger}
}

// Process never returns an error: every failure is rendered into Outcome.Envelope.
func (p *Processor) Process(ctx context.Context, req Request) Outcome {
	start := time.Now()
	reqID := common.RequestIDFromContext(ctx)
	clientID := p.clientID(ctx, req)
	p.Logger.Info("pipeline.process.start",
		"req_id", reqID,
		"client_id", clientID,
		"filename", req.Filename,
		"content_type", req.ContentType,
		"bytes", len(req.Data),
	)

	out := p.run(ctx, req, clientID)
	out.Elapsed = time.Since(start)

	if out.Err != nil {
		out.Status = constants.StatusError
		out.Envelope = ErrorEnvelope(out.Err)
		p.Logger.Warn("pipeline.process.failed",
			"req_id", reqID,
			"message", out.Envelope.Message,
			"error", out.Err,
			"elapsed_ms", out.Elapsed.Milliseconds(),
		)
		return out
	}
	p.Logger.Info("pipeline.process.done",
		"req_id", reqID,
		"status", out.Status,
		"message", out.Envelope.Message,
		"elapsed_ms", out.Elapsed.Milliseconds(),
	)
	return out
}

func (p *Processor) run(ctx context.Context, req Request, clientID string) Outcome {
	var out Outcome

	specs, err := fields.Parse(req.Fields)
	if err != nil {
		out.Err = err
		return out
	}
	out.Fields = specs

	format, x, err := p.Extract.Classify(req.Filename, req.ContentType, req.Data)
	if err != nil {
		out.Err = err
		return out
	}
	out.Format = format

	text, err := p.Extract.Run(ctx, format, x, req.Data)
	if err != nil {
		out.Err = err
		return out
	}
	out.Method = text.Method

	if strings.TrimSpace(text.Text) == "" {
		p.Logger.Info("pipeline.process.no_text", "req_id", common.RequestIDFromContext(ctx), "format", format)
		res := llm.Reconcile("", specs)
		out.Status = res.Status
		out.Envelope = EnvelopeFor(res)
		return out
	}

	res, comp, err := p.Model.Run(ctx, text.Text, specs)
	out.Tokens = comp.TotalTokens()
	p.recordUsage(ctx, clientID, out.Tokens)
	if err != nil {
		out.Err = err
		return out
	}
	out.Status = res.Status
	out.Envelope = EnvelopeFor(res)
	return out
}

func (p *Processor) clientID(ctx context.Context, req Request) string {
	if id := strings.TrimSpace(req.ClientID); id != "" {
		return id
	}
	if id := common.ClientIDFromContext(ctx); id != "" {
		return id
	}
	return constants.DefaultClientID
}

// recordUsage never affects the response.
func (p *Processor) recordUsage(ctx context.Context, clientID string, tokens int64) {
	if p.Usage == nil || tokens <= 0 {
		return
	}
	w, err := p.Usage.Add(context.WithoutCancel(ctx), clientID, tokens)
	if err != nil {
		p.Logger.Warn("pipeline.usage.record_failed", "req_id", common.RequestIDFromContext(ctx), "client_id", clientID, "error", err)
		return
	}
	p.Logger.Debug("pipeline.usage.recorded",
		"client_id", clientID,
		"tokens", tokens,
		"window_total", w.TotalTokens,
		"reset_at", w.ResetAt,
	)
}
