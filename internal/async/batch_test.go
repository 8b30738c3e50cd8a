package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/pipeline"
)

type recordingProcessor struct {
	mu       sync.Mutex
	seen     map[string]pipeline.Request
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (p *recordingProcessor) Process(ctx context.Context, req pipeline.Request) pipeline.Outcome {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(p.delay)

	_, hasDL := ctx.Deadline()
	p.mu.Lock()
	p.seen[req.Filename] = req
	p.mu.Unlock()
	msg := "no deadline"
	if hasDL && common.RequestIDFromContext(ctx) != "" {
		msg = constants.MessageSuccess
	}
	return pipeline.Outcome{
		Status:   constants.StatusSuccess,
		Envelope: pipeline.Envelope{Success: true, Message: msg, Data: map[string]*string{}},
	}
}

func newRunner(p Processor, files map[string][]byte, opts ...Option) *BatchRunner {
	b := NewBatchRunner(p, nil, opts...)
	b.read = func(path string) ([]byte, error) {
		data, ok := files[path]
		if !ok {
			return nil, errors.New("no such file")
		}
		return data, nil
	}
	return b
}

func TestBatchRunner_RunsAllJobsInOrder(t *testing.T) {
	files := map[string][]byte{
		"/in/a.pdf": []byte("A"),
		"/in/b.png": []byte("B"),
		"/in/c.jpg": []byte("C"),
	}
	proc := &recordingProcessor{seen: map[string]pipeline.Request{}, delay: 20 * time.Millisecond}
	b := newRunner(proc, files, WithWorkers(2), WithProcessTimeout(time.Second))

	jobs := []Job{
		{Path: "/in/a.pdf", Fields: []byte(`[]`), ClientID: "batch"},
		{Path: "/in/b.png", Fields: []byte(`[]`)},
		{Path: "/in/c.jpg", Fields: []byte(`[]`)},
	}
	results, err := b.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, jobs[i].Path, r.Path)
		assert.Equal(t, constants.MessageSuccess, r.Outcome.Envelope.Message)
	}
	assert.Equal(t, []byte("A"), proc.seen["a.pdf"].Data)
	assert.Equal(t, "batch", proc.seen["a.pdf"].ClientID)
	assert.LessOrEqual(t, proc.peak.Load(), int32(2))
}

func TestBatchRunner_UnreadableFile(t *testing.T) {
	proc := &recordingProcessor{seen: map[string]pipeline.Request{}}
	b := newRunner(proc, map[string][]byte{"/in/ok.pdf": []byte("x")})

	results, err := b.Run(context.Background(), []Job{{Path: "/in/missing.pdf"}, {Path: "/in/ok.pdf"}})
	require.NoError(t, err)
	require.Len(t, results, 2)

	miss := results[0].Outcome
	assert.ErrorIs(t, miss.Err, common.ErrDocumentUnreadable)
	assert.Equal(t, constants.StatusError, miss.Status)
	assert.False(t, miss.Envelope.Success)
	assert.Equal(t, "Error processing document: cannot read file: missing.pdf", miss.Envelope.Message)
	assert.True(t, results[1].Outcome.Envelope.Success)
	assert.NotContains(t, proc.seen, "missing.pdf")
}

func TestBatchRunner_CancelledContext(t *testing.T) {
	proc := &recordingProcessor{seen: map[string]pipeline.Request{}}
	b := newRunner(proc, map[string][]byte{"/in/a.pdf": []byte("x")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := b.Run(ctx, []Job{{Path: "/in/a.pdf"}})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Outcome.Err, context.Canceled)
	assert.Empty(t, proc.seen)
}

func TestBatchRunner_NoJobs(t *testing.T) {
	results, err := NewBatchRunner(&recordingProcessor{}, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
