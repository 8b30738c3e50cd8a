package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/extract"
)

type ServiceConfig struct {
	BaseURL string
	Lang    string // default "en"
	Timeout time.Duration
}

// serviceResponse is the body returned by POST /extract-text.
type serviceResponse struct {
	Success    bool   `json:"success"`
	Text       string `json:"text"`
	LinesCount int    `json:"lines_count"`
	Message    string `json:"message"`
}

// ServiceExtractor sends images to a remote OCR service.
type ServiceExtractor struct {
	cfg    ServiceConfig
	client *http.Client
	logger *slog.Logger
}

func NewServiceExtractor(cfg ServiceConfig, client *http.Client, logger *slog.Logger) *ServiceExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ServiceExtractor{cfg: cfg, client: client, logger: logger}
}

func (e *ServiceExtractor) Extract(ctx context.Context, data []byte) (extract.Text, error) {
	start := time.Now()
	reqID := common.RequestIDFromContext(ctx)
	out := extract.Text{Source: constants.IMAGE, Method: "image-ocr-service", Pages: 1}

	format, err := checkImage(data)
	if err != nil {
		return out, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "upload"+fileExt(format))
	if err != nil {
		return out, fmt.Errorf("build ocr request: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return out, fmt.Errorf("build ocr request: %w", err)
	}
	if err := mw.WriteField("lang", e.cfg.Lang); err != nil {
		return out, fmt.Errorf("build ocr request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return out, fmt.Errorf("build ocr request: %w", err)
	}

	ctx, cancel := common.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	url := e.cfg.BaseURL + "/extract-text"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return out, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}

	e.logger.Info("ocr.service.request", "req_id", reqID, "url", url, "content_length", body.Len())

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("ocr.service.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return out, fmt.Errorf("OCR service unreachable: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			e.logger.Warn("ocr.service.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("read OCR service response: %w", err)
	}

	e.logger.Info("ocr.service.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return out, fmt.Errorf("OCR service returned status %d", resp.StatusCode)
	}

	var sr serviceResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return out, fmt.Errorf("decode OCR service response: %w", err)
	}
	if !sr.Success {
		msg := strings.TrimSpace(sr.Message)
		if msg == "" {
			msg = "OCR failed"
		}
		return out, common.DocumentUnreadable(msg, nil)
	}

	out.Text = Normalize(sr.Text)
	out.Duration = time.Since(start)
	return out, nil
}
