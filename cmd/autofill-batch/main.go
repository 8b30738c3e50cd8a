package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/app"
	"github.com/joseph-ayodele/autofill/internal/async"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/export"
	"github.com/joseph-ayodele/autofill/internal/fields"
	"github.com/joseph-ayodele/autofill/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory of documents to auto-fill (required)")
		fieldsPath = flag.String("fields", "", "JSON file with the field list (required)")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		workers    = flag.Int("workers", 4, "concurrent documents")
		timeout    = flag.Duration("timeout", 3*time.Minute, "per-document deadline")
		clientID   = flag.String("client", "batch", "client id charged for token usage")
		hidden     = flag.Bool("hidden", false, "include hidden files and directories")
	)
	flag.Parse()

	if *dir == "" || *fieldsPath == "" {
		printError("Error: --dir and --fields are required\n")
		os.Exit(2)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "autofill.xlsx")
	}

	rawFields, err := os.ReadFile(*fieldsPath)
	if err != nil {
		printError("Error: reading --fields: %v\n", err)
		os.Exit(2)
	}
	specs, err := fields.Parse(rawFields)
	if err != nil {
		printError("Error: %s%s\n", constants.MessageInvalidFieldsPrefix, common.Detail(err))
		os.Exit(2)
	}

	if err := common.LoadDotEnv(); err != nil {
		printError("Warning: %v\n", err)
	}
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Log)

	ctx := context.Background()
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to wire pipeline", "error", err)
		os.Exit(1)
	}
	defer func() { _ = rt.Usage.Close() }()

	paths, stats, err := ingest.WalkDirectory(ctx, *dir, nil, !*hidden)
	if err != nil {
		logger.Error("failed to walk directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("scan complete", "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

	jobs := make([]async.Job, 0, len(paths))
	for _, p := range paths {
		jobs = append(jobs, async.Job{Path: p, Fields: rawFields, ClientID: *clientID})
	}
	runner := async.NewBatchRunner(rt.Processor, logger,
		async.WithWorkers(*workers),
		async.WithProcessTimeout(*timeout),
	)
	results, err := runner.Run(ctx, jobs)
	if err != nil {
		logger.Error("batch run failed", "error", err)
		os.Exit(1)
	}

	xlsx, err := export.NewService(logger).ResultsXLSX(results, specs)
	if err != nil {
		logger.Error("failed to export results", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	failures := 0
	for _, r := range results {
		if !r.Outcome.Envelope.Success {
			failures++
		}
	}
	fmt.Printf("Batch auto-fill complete!\n")
	fmt.Printf("- Files processed: %d\n", len(results))
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}
