package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	OCR    OCRConfig
	PDF    PDFConfig
	LLM    LLMConfig
	Usage  UsageConfig
	Log    LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	MaxUploadMB    int
	AllowedOrigins []string
	// RequestTimeout bounds a whole auto-fill request, model call included.
	RequestTimeout time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Backend        string // "tesseract" | "service"
	Tesseract      string
	TesseractLang  string
	TessdataDir    string
	ServiceURL     string
	ServiceLang    string
	ServiceTimeout time.Duration
}

// PDFConfig holds PDF text-layer configuration
type PDFConfig struct {
	MaxPages int // 0 = no limit
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float32
	Timeout        time.Duration
	JSONMode       bool
	MaxPromptRunes int
}

// UsageConfig selects the token usage ledger backend
type UsageConfig struct {
	Driver string // "memory" | "postgres" | "sqlite" | "none"
	DSN    string
	Window time.Duration
}

// LogConfig controls the slog handler built by the binaries
type LogConfig struct {
	Level  string
	Format string // "json" | "text"
}

// LoadDotEnv loads a .env file into the process environment when one exists.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	apiKey := getEnv("LLM_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("OPENAI_API_KEY", "")
	}
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
			GRPCAddr:       getEnv("GRPC_ADDR", ":8081"),
			MaxUploadMB:    getEnvAsInt("MAX_UPLOAD_MB", 20),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Minute),
		},
		OCR: OCRConfig{
			Backend:        strings.ToLower(getEnv("OCR_BACKEND", "tesseract")),
			Tesseract:      getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang:  getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:    getEnv("TESSDATA_PREFIX", ""),
			ServiceURL:     getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
			ServiceLang:    getEnv("OCR_LANG", "en"),
			ServiceTimeout: getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
		},
		PDF: PDFConfig{
			MaxPages: getEnvAsInt("PDF_MAX_PAGES", 0),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:         apiKey,
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature:    getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			JSONMode:       getEnvAsBool("LLM_JSON_MODE", true),
			MaxPromptRunes: getEnvAsInt("PROMPT_MAX_TEXT_RUNES", 12000),
		},
		Usage: UsageConfig{
			Driver: strings.ToLower(getEnv("USAGE_DRIVER", "memory")),
			DSN:    getEnv("USAGE_DSN", ""),
			Window: getEnvAsDuration("USAGE_WINDOW", 24*time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxUploadMB <= 0 {
		return NewAppError(CodeConfig, "MAX_UPLOAD_MB must be positive", ErrInvalidInput)
	}
	switch c.OCR.Backend {
	case "tesseract":
		if c.OCR.Tesseract == "" {
			return NewAppError(CodeConfig, "TESSERACT_BIN is required for the tesseract backend", ErrInvalidInput)
		}
	case "service":
		if c.OCR.ServiceURL == "" {
			return NewAppError(CodeConfig, "OCR_SERVICE_URL is required for the service backend", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unknown OCR_BACKEND %q", c.OCR.Backend), ErrInvalidInput)
	}
	if c.LLM.BaseURL == "" {
		return NewAppError(CodeConfig, "LLM_BASE_URL is required", ErrInvalidInput)
	}
	if c.LLM.Model == "" {
		return NewAppError(CodeConfig, "LLM_MODEL is required", ErrInvalidInput)
	}
	switch c.Usage.Driver {
	case "memory", "none", "":
	case "postgres", "sqlite":
		if c.Usage.DSN == "" {
			return NewAppError(CodeConfig, "USAGE_DSN is required for the "+c.Usage.Driver+" usage driver", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unknown USAGE_DRIVER %q", c.Usage.Driver), ErrInvalidInput)
	}
	return nil
}
