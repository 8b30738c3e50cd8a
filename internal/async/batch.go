// Package async fans auto-fill jobs out over a bounded worker pool.
package async

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/pipeline"
)

// Processor is the single-request pipeline the runner drives.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) pipeline.Outcome
}

// Job is one file to auto-fill.
type Job struct {
	Path     string
	Fields   []byte
	ClientID string
}

type Result struct {
	Path    string
	Outcome pipeline.Outcome
}

// BatchRunner runs jobs concurrently; each job gets its own deadline.
type BatchRunner struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	read    func(string) ([]byte, error)
}

type Option func(*BatchRunner)

func WithWorkers(n int) Option {
	return func(b *BatchRunner) {
		if n > 0 {
			b.workers = n
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(b *BatchRunner) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func NewBatchRunner(proc Processor, logger *slog.Logger, opts ...Option) *BatchRunner {
	if logger == nil {
		logger = slog.Default()
	}
	b := &BatchRunner{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		read:    os.ReadFile,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run processes every job and returns results in job order.
// A file that cannot be read yields an error envelope for that job only.
func (b *BatchRunner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}

	pool, err := ants.NewPool(b.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = b.runOne(ctx, i+1, job)
		}); err != nil {
			wg.Done()
			results[i] = failed(job.Path, fmt.Errorf("submit job: %w", err))
		}
	}
	wg.Wait()
	return results, nil
}

func (b *BatchRunner) runOne(ctx context.Context, n int, job Job) Result {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return failed(job.Path, err)
	}
	data, err := b.read(job.Path)
	if err != nil {
		b.logger.Error("batch.read.failed", "path", job.Path, "error", err)
		return failed(job.Path, common.DocumentUnreadable("cannot read file: "+filepath.Base(job.Path), err))
	}

	jctx, cancel := common.WithTimeout(ctx, b.timeout)
	defer cancel()
	jctx = common.WithRequestID(jctx, fmt.Sprintf("batch-%d", n))

	out := b.proc.Process(jctx, pipeline.Request{
		Filename: filepath.Base(job.Path),
		Data:     data,
		Fields:   job.Fields,
		ClientID: job.ClientID,
	})
	b.logger.Info("batch.job.done",
		"path", job.Path,
		"status", out.Status,
		"success", out.Envelope.Success,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Path: job.Path, Outcome: out}
}

func failed(path string, err error) Result {
	return Result{Path: path, Outcome: pipeline.Outcome{
		Envelope: pipeline.ErrorEnvelope(err),
		Status:   constants.StatusError,
		Err:      err,
	}}
}
