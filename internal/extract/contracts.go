package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
)

// TextExtractor turns document bytes into plain text. Empty text is a successful result;
// only structurally invalid input fails, with an error matching common.ErrDocumentUnreadable.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (Text, error)
}

// Text is the output of one extraction.
type Text struct {
	Text     string
	Source   constants.Format
	Pages    int
	Method   string // "pdf-text" | "image-ocr" | "image-ocr-service"
	Duration time.Duration
}

// Registry maps each supported format to its extractor.
type Registry map[constants.Format]TextExtractor

// For returns the extractor registered for format.
func (r Registry) For(format constants.Format) (TextExtractor, error) {
	if e, ok := r[format]; ok && e != nil {
		return e, nil
	}
	return nil, common.NewAppError(common.CodeUnsupportedFileType,
		fmt.Sprintf("no extractor configured for %s", format), common.ErrUnsupportedFileType)
}
