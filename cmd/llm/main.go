package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/autofill/internal/app"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/fields"
	"github.com/joseph-ayodele/autofill/internal/pipeline"
)

func main() {
	_ = common.LoadDotEnv()
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Log)

	if len(os.Args) < 3 {
		logger.Error("usage: llm <text_file> <fields_json_file> [times]")
		os.Exit(2)
	}
	text, err := os.ReadFile(os.Args[1])
	if err != nil {
		logger.Error("read text", "path", os.Args[1], "error", err)
		os.Exit(2)
	}
	rawFields, err := os.ReadFile(os.Args[2])
	if err != nil {
		logger.Error("read fields", "path", os.Args[2], "error", err)
		os.Exit(2)
	}
	specs, err := fields.Parse(rawFields)
	if err != nil {
		logger.Error("invalid fields", "detail", common.Detail(err))
		os.Exit(2)
	}
	times := 1
	if len(os.Args) >= 4 {
		if n, err := strconv.Atoi(os.Args[3]); err == nil && n > 0 {
			times = n
		}
	}

	client := app.NewModelClient(cfg, logger)
	stage := pipeline.NewModelStage(client, app.NewBuilder(cfg), cfg.LLM.Timeout, logger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for i := 1; i <= times; i++ {
		runCtx, cancelRun := context.WithTimeout(context.Background(), 2*time.Minute)
		start := time.Now()
		logger.Info("model.run.start", "iter", i, "model", client.Model())

		res, comp, err := stage.Run(runCtx, string(text), specs)
		cancelRun()
		if err != nil {
			logger.Error("model.run.error", "iter", i, "error", err)
			continue
		}
		logger.Info("model.run.ok",
			"iter", i,
			"status", res.Status,
			"found", res.Found(),
			"dropped", res.Dropped,
			"tokens", comp.TotalTokens(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		_ = enc.Encode(pipeline.EnvelopeFor(res))
	}
}
