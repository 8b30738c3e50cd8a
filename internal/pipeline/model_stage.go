package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/fields"
	"github.com/joseph-ayodele/autofill/internal/llm"
)

// validateSchema is swapped in tests.
var validateSchema = llm.ValidateJSONAgainstSchema

// ModelStage builds the instruction, calls the model and reconciles its answer.
type ModelStage struct {
	Logger  *slog.Logger
	Client  llm.Client
	Builder llm.Builder
	Timeout time.Duration // 0 leaves only the caller's deadline
}

func NewModelStage(client llm.Client, builder llm.Builder, timeout time.Duration, logger *slog.Logger) *ModelStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelStage{Logger: logger, Client: client, Builder: builder, Timeout: timeout}
}

// Run never retries; a failed call is returned as is.
func (s *ModelStage) Run(ctx context.Context, text string, specs []fields.Spec) (llm.Result, llm.Completion, error) {
	start := time.Now()
	reqID := common.RequestIDFromContext(ctx)
	prompt := s.Builder.Build(text, specs)

	callCtx, cancel := common.WithTimeout(ctx, s.Timeout)
	defer cancel()

	comp, err := s.Client.Complete(callCtx, prompt)
	if err != nil {
		s.Logger.Error("pipeline.model.failed",
			"req_id", reqID,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Result{}, comp, err
	}

	res := llm.Reconcile(comp.Content, specs)
	if len(res.Dropped) > 0 {
		s.Logger.Warn("pipeline.reconcile.dropped", "req_id", reqID, "keys", res.Dropped)
	}
	if res.Status != constants.StatusInvalid && s.Logger.Enabled(ctx, slog.LevelDebug) {
		schema := llm.BuildFieldsJSONSchema(fields.Names(specs))
		if verr := validateSchema(schema, []byte(llm.StripCodeFences(comp.Content))); verr != nil {
			s.Logger.Debug("pipeline.reconcile.schema_drift", "req_id", reqID, "error", verr)
		}
	}

	s.Logger.Info("pipeline.model.ok",
		"req_id", reqID,
		"model", comp.Model,
		"status", res.Status,
		"found", res.Found(),
		"requested", len(specs),
		"tokens", comp.TotalTokens(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, comp, nil
}
