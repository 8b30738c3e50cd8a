package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/extract"
	"github.com/joseph-ayodele/autofill/internal/ocr"
)

func testConfig() *common.Config {
	return &common.Config{
		Server: common.ServerConfig{HTTPAddr: ":0", MaxUploadMB: 1},
		OCR:    common.OCRConfig{Backend: "tesseract", Tesseract: "tesseract", TesseractLang: "eng"},
		LLM:    common.LLMConfig{BaseURL: "http://127.0.0.1:1/v1", Model: "local-model", Timeout: time.Second},
		Usage:  common.UsageConfig{Driver: "memory"},
	}
}

func TestNewExtractors(t *testing.T) {
	cfg := testConfig()
	reg := NewExtractors(cfg, nil)
	assert.IsType(t, &extract.PDFExtractor{}, reg[constants.PDF])
	assert.IsType(t, &ocr.TesseractExtractor{}, reg[constants.IMAGE])

	cfg.OCR.Backend = "service"
	cfg.OCR.ServiceURL = "http://localhost:8001"
	reg = NewExtractors(cfg, nil)
	assert.IsType(t, &ocr.ServiceExtractor{}, reg[constants.IMAGE])
}

func TestBuild_Memory(t *testing.T) {
	rt, err := Build(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer rt.Usage.Close()

	require.NotNil(t, rt.Processor)
	assert.Equal(t, "local-model", rt.Model.Model())
	assert.Nil(t, rt.Pinger())
}

func TestBuild_SQLitePinger(t *testing.T) {
	cfg := testConfig()
	cfg.Usage = common.UsageConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "usage.db")}

	rt, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer rt.Usage.Close()

	ping := rt.Pinger()
	require.NotNil(t, ping)
	assert.NoError(t, ping(context.Background()))
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.OCR.Backend = "cloud"
	_, err := Build(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
