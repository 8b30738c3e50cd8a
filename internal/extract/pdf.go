package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
)

var pdfMagic = []byte("%PDF")

// PDFExtractor reads the embedded text layer of a PDF. Scanned PDFs without a text layer
// yield empty text.
type PDFExtractor struct {
	maxPages int
	logger   *slog.Logger
}

// NewPDFExtractor builds a PDFExtractor. maxPages <= 0 reads every page.
func NewPDFExtractor(maxPages int, logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{maxPages: maxPages, logger: logger}
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (Text, error) {
	start := time.Now()
	out := Text{Source: constants.PDF, Method: "pdf-text"}

	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic) {
		return out, common.DocumentUnreadable("not a PDF document", nil)
	}

	r, err := openPDF(data)
	if err != nil {
		e.logger.Warn("pdf.open.failed", "req_id", common.RequestIDFromContext(ctx), "error", err)
		return out, common.DocumentUnreadable(fmt.Sprintf("cannot read PDF: %v", err), err)
	}

	total := r.NumPage()
	limit := total
	if e.maxPages > 0 && limit > e.maxPages {
		limit = e.maxPages
	}

	var b strings.Builder
	skipped := 0
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		txt, err := pageText(r, i)
		if err != nil {
			skipped++
			e.logger.Debug("pdf.page.skipped", "page", i, "error", err)
			continue
		}
		if txt == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n", i)
		b.WriteString(txt)
	}

	out.Text = b.String()
	out.Pages = total
	out.Duration = time.Since(start)
	e.logger.Debug("pdf.extract.done",
		"req_id", common.RequestIDFromContext(ctx),
		"pages", total,
		"read_pages", limit,
		"skipped_pages", skipped,
		"chars", len(out.Text),
		"elapsed_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

// openPDF parses the cross-reference table. The parser panics on some malformed input.
func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("pdf parser panic: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func pageText(r *pdf.Reader, i int) (txt string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			txt, err = "", fmt.Errorf("page %d: %v", i, rec)
		}
	}()
	page := r.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	s, err := page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}
