package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/extract"
	"github.com/joseph-ayodele/autofill/internal/llm"
	"github.com/joseph-ayodele/autofill/internal/usage"
)

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) Extract(context.Context, []byte) (extract.Text, error) {
	f.calls++
	return extract.Text{Text: f.text, Method: "fake"}, f.err
}

type fakeModel struct {
	content string
	err     error
	tokens  int64
	calls   int
	prompt  string
	hadDL   bool
}

func (f *fakeModel) Complete(ctx context.Context, prompt string) (llm.Completion, error) {
	f.calls++
	f.prompt = prompt
	_, f.hadDL = ctx.Deadline()
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Content: f.content, Model: "fake", PromptTokens: f.tokens, CompletionTokens: 1}, nil
}

type failingLedger struct{ usage.Nop }

func (failingLedger) Add(context.Context, string, int64) (usage.Window, error) {
	return usage.Window{}, errors.New("db down")
}

func newProcessor(pdf, img *fakeExtractor, model llm.Client, ledger usage.Ledger) *Processor {
	reg := extract.Registry{constants.PDF: pdf, constants.IMAGE: img}
	return NewProcessor(nil,
		NewExtractStage(reg, nil),
		NewModelStage(model, llm.Builder{}, 5*time.Second, nil),
		ledger,
	)
}

func strp(s string) *string { return &s }

const twoFields = `[{"field_name":"firstname"},{"field_name":"birth_date"}]`

func TestProcess_EndToEnd(t *testing.T) {
	pdf := &fakeExtractor{text: "John, born 1990-01-15"}
	model := &fakeModel{content: `{"firstname":"John","birth_date":"1990-01-15"}`, tokens: 40}
	ledger := usage.NewMemory(time.Hour)
	p := newProcessor(pdf, &fakeExtractor{}, model, ledger)

	out := p.Process(context.Background(), Request{Filename: "id.pdf", Data: []byte("%PDF"), Fields: []byte(twoFields), ClientID: "acme"})

	require.NoError(t, out.Err)
	assert.Equal(t, constants.StatusSuccess, out.Status)
	assert.Equal(t, Envelope{
		Success: true,
		Message: "success",
		Data:    map[string]*string{"firstname": strp("John"), "birth_date": strp("1990-01-15")},
	}, out.Envelope)
	assert.Contains(t, model.prompt, "John, born 1990-01-15")
	assert.True(t, model.hadDL, "model call must carry a deadline")

	raw, err := json.Marshal(out.Envelope)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"success","data":{"firstname":"John","birth_date":"1990-01-15"}}`, string(raw))

	w, err := ledger.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.EqualValues(t, 41, w.TotalTokens)
}

func TestProcess_EmptyTextSkipsModel(t *testing.T) {
	for _, text := range []string{"", "   \n\t "} {
		img := &fakeExtractor{text: text}
		model := &fakeModel{content: `{"firstname":"x"}`}
		p := newProcessor(&fakeExtractor{}, img, model, nil)

		out := p.Process(context.Background(), Request{Filename: "scan.png", Fields: []byte(twoFields)})

		assert.Equal(t, 0, model.calls)
		assert.Equal(t, 1, img.calls)
		assert.Equal(t, constants.StatusInvalid, out.Status)
		assert.Equal(t, Envelope{
			Success: true,
			Message: "invalid doc",
			Data:    map[string]*string{"firstname": nil, "birth_date": nil},
		}, out.Envelope)
	}
}

func TestProcess_EmptyModelObjectIsInvalidDoc(t *testing.T) {
	fieldSets := []string{
		`[{"field_name":"a"}]`,
		`[{"field_name":"a"},{"field_name":"b"},{"field_name":"c"},{"field_name":"d"}]`,
	}
	for _, fs := range fieldSets {
		p := newProcessor(&fakeExtractor{text: "some text"}, &fakeExtractor{}, &fakeModel{content: "{}"}, nil)
		out := p.Process(context.Background(), Request{Filename: "a.pdf", Fields: []byte(fs)})
		assert.True(t, out.Envelope.Success)
		assert.Equal(t, "invalid doc", out.Envelope.Message)
		for k, v := range out.Envelope.Data {
			assert.Nil(t, v, k)
		}
		assert.Len(t, out.Envelope.Data, len(out.Fields))
	}
}

func TestProcess_PartialIsReportedAsSuccess(t *testing.T) {
	model := &fakeModel{content: `{"firstname":"John","birth_date":null,"ssn":"123-45"}`}
	p := newProcessor(&fakeExtractor{text: "John"}, &fakeExtractor{}, model, nil)

	out := p.Process(context.Background(), Request{Filename: "a.pdf", Fields: []byte(twoFields)})
	assert.Equal(t, constants.StatusPartial, out.Status)
	assert.Equal(t, Envelope{
		Success: true,
		Message: "success",
		Data:    map[string]*string{"firstname": strp("John"), "birth_date": nil},
	}, out.Envelope)
}

func TestProcess_MalformedFieldsFailFirst(t *testing.T) {
	pdf := &fakeExtractor{text: "x"}
	model := &fakeModel{content: `{}`}
	p := newProcessor(pdf, &fakeExtractor{}, model, nil)

	out := p.Process(context.Background(), Request{
		Filename: "contract.docx",
		Fields:   []byte(`[{"field_name":"a"},{"field_name":"a"}]`),
	})
	assert.ErrorIs(t, out.Err, common.ErrMalformedFieldSpec)
	assert.Equal(t, constants.StatusError, out.Status)
	assert.False(t, out.Envelope.Success)
	assert.Contains(t, out.Envelope.Message, "Invalid fields parameter: ")
	assert.Empty(t, out.Envelope.Data)
	assert.NotNil(t, out.Envelope.Data)
	assert.Equal(t, 0, pdf.calls)
	assert.Equal(t, 0, model.calls)
}

func TestProcess_UnsupportedFileTypeBeforeExtraction(t *testing.T) {
	pdf, img := &fakeExtractor{text: "x"}, &fakeExtractor{text: "x"}
	model := &fakeModel{content: `{}`}
	p := newProcessor(pdf, img, model, nil)

	out := p.Process(context.Background(), Request{Filename: "contract.docx", Data: []byte("%PDF-1.4"), Fields: []byte(twoFields)})
	assert.ErrorIs(t, out.Err, common.ErrUnsupportedFileType)
	assert.Equal(t, Envelope{
		Success: false,
		Message: "Unsupported file type. Supported types: PDF, PNG, JPG, JPEG",
		Data:    map[string]*string{},
	}, out.Envelope)
	assert.Equal(t, 0, pdf.calls+img.calls)
	assert.Equal(t, 0, model.calls)
}

func TestProcess_HardFailuresAreApiErrors(t *testing.T) {
	cases := []struct {
		name    string
		extErr  error
		modErr  error
		wantMsg string
	}{
		{"unreadable", common.DocumentUnreadable("cannot read PDF: bad xref", nil), nil, "Error processing document: cannot read PDF: bad xref"},
		{"model unavailable", nil, common.ModelUnavailable("model service returned status 503", nil), "Error processing document: model service returned status 503"},
		{"model timeout", nil, common.ModelTimeout("model call timed out", context.DeadlineExceeded), "Error processing document: model call timed out"},
		{"plain error", errors.New("OCR service unreachable"), nil, "Error processing document: OCR service unreachable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pdf := &fakeExtractor{text: "text", err: tc.extErr}
			p := newProcessor(pdf, &fakeExtractor{}, &fakeModel{err: tc.modErr}, nil)

			out := p.Process(context.Background(), Request{Filename: "a.pdf", Fields: []byte(twoFields)})
			assert.Equal(t, constants.StatusError, out.Status)
			assert.Equal(t, Envelope{Success: false, Message: tc.wantMsg, Data: map[string]*string{}}, out.Envelope)
		})
	}
}

func TestProcess_UsageFailureDoesNotChangeEnvelope(t *testing.T) {
	model := &fakeModel{content: `{"firstname":"John","birth_date":"1990-01-15"}`, tokens: 10}
	p := newProcessor(&fakeExtractor{text: "John"}, &fakeExtractor{}, model, failingLedger{})

	out := p.Process(context.Background(), Request{Filename: "a.pdf", Fields: []byte(twoFields)})
	assert.Equal(t, "success", out.Envelope.Message)
	assert.True(t, out.Envelope.Success)
}

func TestProcess_ClientIDFallbacks(t *testing.T) {
	ledger := usage.NewMemory(time.Hour)
	model := &fakeModel{content: `{"firstname":"a","birth_date":"b"}`, tokens: 4}
	p := newProcessor(&fakeExtractor{text: "x"}, &fakeExtractor{}, model, ledger)

	p.Process(context.Background(), Request{Filename: "a.pdf", Fields: []byte(twoFields)})
	ctx := common.WithClientID(context.Background(), "from-ctx")
	p.Process(ctx, Request{Filename: "a.pdf", Fields: []byte(twoFields)})

	anon, err := ledger.Get(context.Background(), constants.DefaultClientID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, anon.TotalTokens)
	fromCtx, err := ledger.Get(context.Background(), "from-ctx")
	require.NoError(t, err)
	assert.EqualValues(t, 5, fromCtx.TotalTokens)
}

func TestProcess_ZeroFields(t *testing.T) {
	model := &fakeModel{content: `{"anything":"x"}`}
	p := newProcessor(&fakeExtractor{text: "x"}, &fakeExtractor{}, model, nil)

	out := p.Process(context.Background(), Request{Filename: "a.pdf", Fields: []byte(`[]`)})
	assert.Equal(t, Envelope{Success: true, Message: "success", Data: map[string]*string{}}, out.Envelope)
}

func TestProcess_ModelTimeoutFromDeadline(t *testing.T) {
	slow := llm.ClientFunc(func(ctx context.Context, _ string) (llm.Completion, error) {
		<-ctx.Done()
		return llm.Completion{}, common.ModelTimeout("model call timed out", ctx.Err())
	})
	reg := extract.Registry{constants.PDF: &fakeExtractor{text: "x"}}
	p := NewProcessor(nil, NewExtractStage(reg, nil), NewModelStage(slow, llm.Builder{}, 20*time.Millisecond, nil), nil)

	out := p.Process(context.Background(), Request{Filename: "a.pdf", Fields: []byte(twoFields)})
	assert.ErrorIs(t, out.Err, common.ErrModelTimeout)
	assert.Equal(t, "Error processing document: model call timed out", out.Envelope.Message)
}
