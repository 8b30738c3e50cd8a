// Package app assembles the auto-fill pipeline from configuration.
package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/extract"
	"github.com/joseph-ayodele/autofill/internal/llm"
	"github.com/joseph-ayodele/autofill/internal/llm/openai"
	"github.com/joseph-ayodele/autofill/internal/ocr"
	"github.com/joseph-ayodele/autofill/internal/pipeline"
	"github.com/joseph-ayodele/autofill/internal/usage"
)

// Runtime is everything a binary needs to serve auto-fill requests.
type Runtime struct {
	Extractors extract.Registry
	Model      *openai.Client
	Builder    llm.Builder
	Usage      usage.Ledger
	Processor  *pipeline.Processor
}

// NewExtractors registers the PDF text-layer extractor and the OCR backend named in cfg.
func NewExtractors(cfg *common.Config, logger *slog.Logger) extract.Registry {
	var img extract.TextExtractor
	switch cfg.OCR.Backend {
	case "service":
		img = ocr.NewServiceExtractor(ocr.ServiceConfig{
			BaseURL: cfg.OCR.ServiceURL,
			Lang:    cfg.OCR.ServiceLang,
			Timeout: cfg.OCR.ServiceTimeout,
		}, &http.Client{}, logger)
	default:
		img = ocr.NewTesseractExtractor(ocr.TesseractConfig{
			Binary:      cfg.OCR.Tesseract,
			Lang:        cfg.OCR.TesseractLang,
			TessdataDir: cfg.OCR.TessdataDir,
		}, nil, logger)
	}
	return extract.Registry{
		constants.PDF:   extract.NewPDFExtractor(cfg.PDF.MaxPages, logger),
		constants.IMAGE: img,
	}
}

// NewModelClient builds the chat completions client for cfg.LLM.
func NewModelClient(cfg *common.Config, logger *slog.Logger) *openai.Client {
	return openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		JSONMode:    cfg.LLM.JSONMode,
	}, &http.Client{}, logger)
}

// NewBuilder returns the prompt builder configured by cfg.LLM.
func NewBuilder(cfg *common.Config) llm.Builder {
	return llm.Builder{MaxTextRunes: cfg.LLM.MaxPromptRunes}
}

// Build validates cfg and wires extraction, the model client and the usage ledger into a Processor.
// The caller owns Runtime.Usage and must Close it.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ledger, err := usage.Open(ctx, usage.Config{
		Driver: cfg.Usage.Driver,
		DSN:    cfg.Usage.DSN,
		Window: cfg.Usage.Window,
	}, logger)
	if err != nil {
		return nil, common.WrapError(err, "open usage ledger")
	}

	rt := &Runtime{
		Extractors: NewExtractors(cfg, logger),
		Model:      NewModelClient(cfg, logger),
		Builder:    NewBuilder(cfg),
		Usage:      ledger,
	}
	rt.Processor = pipeline.NewProcessor(logger,
		pipeline.NewExtractStage(rt.Extractors, logger),
		pipeline.NewModelStage(rt.Model, rt.Builder, cfg.LLM.Timeout, logger),
		ledger,
	)
	logger.Info("app.wired",
		"ocr_backend", cfg.OCR.Backend,
		"model", rt.Model.Model(),
		"usage_driver", cfg.Usage.Driver,
	)
	return rt, nil
}

// Pinger returns a reachability check for the configured usage store, or nil when it has none.
func (rt *Runtime) Pinger() func(context.Context) error {
	switch l := rt.Usage.(type) {
	case *usage.Postgres:
		return l.Pool().Ping
	case *usage.SQLite:
		return l.Ping
	}
	return nil
}
