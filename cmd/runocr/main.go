package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/autofill/internal/app"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/pipeline"
)

func main() {
	_ = common.LoadDotEnv()
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Log)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <file.pdf|file.png|file.jpg>")
		os.Exit(2)
	}
	path := os.Args[1]
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stage := pipeline.NewExtractStage(app.NewExtractors(cfg, logger), logger)
	format, x, err := stage.Classify(filepath.Base(path), "", data)
	if err != nil {
		logger.Error("classify", "path", path, "error", err)
		os.Exit(1)
	}

	start := time.Now()
	res, err := stage.Run(ctx, format, x, data)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"format", res.Source,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(res.Text)
}
