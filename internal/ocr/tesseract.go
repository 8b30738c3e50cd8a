package ocr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/extract"
)

type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TessdataDir string
	PSM         int // page segmentation mode; 0 leaves tesseract's default
	TempDir     string
}

// TesseractExtractor runs the tesseract CLI over an uploaded image.
type TesseractExtractor struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseractExtractor(cfg TesseractConfig, runner Runner, logger *slog.Logger) *TesseractExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &TesseractExtractor{cfg: cfg, runner: runner, logger: logger}
}

func (e *TesseractExtractor) Extract(ctx context.Context, data []byte) (extract.Text, error) {
	start := time.Now()
	out := extract.Text{Source: constants.IMAGE, Method: "image-ocr", Pages: 1}

	format, err := checkImage(data)
	if err != nil {
		return out, err
	}

	f, err := os.CreateTemp(e.cfg.TempDir, "autofill-ocr-*"+fileExt(format))
	if err != nil {
		return out, fmt.Errorf("create temp image: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("ocr.tempfile.remove_failed", "path", path, "error", err)
		}
	}()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return out, fmt.Errorf("write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return out, fmt.Errorf("close temp image: %w", err)
	}

	// tesseract <file> stdout -l <lang>
	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	stdout, stderr, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		if notStarted(err) {
			e.logger.Error("ocr.tesseract.unavailable", "binary", e.cfg.Binary, "error", err)
			return out, fmt.Errorf("start tesseract: %w", err)
		}
		detail := strings.TrimSpace(truncate(string(stderr), 512))
		if detail == "" {
			detail = err.Error()
		}
		return out, common.DocumentUnreadable("tesseract failed: "+detail, err)
	}

	out.Text = Normalize(string(stdout))
	out.Duration = time.Since(start)
	e.logger.Debug("ocr.tesseract.done",
		"req_id", common.RequestIDFromContext(ctx),
		"format", format,
		"chars", len(out.Text),
		"elapsed_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

// notStarted reports whether err means the OCR process never ran, as opposed to exiting with a failure.
func notStarted(err error) bool {
	var execErr *exec.Error
	var pathErr *fs.PathError
	return errors.Is(err, exec.ErrNotFound) || errors.As(err, &execErr) || errors.As(err, &pathErr)
}
