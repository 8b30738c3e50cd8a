package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/extract"
)

// ExtractStage classifies an upload and runs the matching text extractor.
type ExtractStage struct {
	Extractors extract.Registry
	Logger     *slog.Logger
}

func NewExtractStage(extractors extract.Registry, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{Extractors: extractors, Logger: logger}
}

// Classify resolves the format without touching the extractors.
func (s *ExtractStage) Classify(filename, contentType string, data []byte) (constants.Format, extract.TextExtractor, error) {
	format, err := extract.Classify(filename, contentType, data)
	if err != nil {
		return "", nil, err
	}
	x, err := s.Extractors.For(format)
	if err != nil {
		return format, nil, err
	}
	return format, x, nil
}

// Run extracts the text of data with x.
func (s *ExtractStage) Run(ctx context.Context, format constants.Format, x extract.TextExtractor, data []byte) (extract.Text, error) {
	start := time.Now()
	reqID := common.RequestIDFromContext(ctx)

	res, err := x.Extract(ctx, data)
	if err != nil {
		s.Logger.Error("pipeline.extract.failed",
			"req_id", reqID,
			"format", format,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return res, err
	}
	s.Logger.Info("pipeline.extract.ok",
		"req_id", reqID,
		"format", format,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
