// Package server exposes the auto-fill pipeline over HTTP and reports health over gRPC.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
	"github.com/joseph-ayodele/autofill/internal/pipeline"
	"github.com/joseph-ayodele/autofill/internal/usage"
)

const (
	AutoFillPath = "/api/v1/orcha/auto-fill"
	UsagePath    = "/api/v1/orcha/usage"
	HealthPath   = "/healthz"

	HeaderRequestID = "X-Request-ID"
	HeaderClientID  = "X-Client-ID"
)

// Processor is the part of the pipeline the HTTP layer needs.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) pipeline.Outcome
}

type Config struct {
	MaxUploadBytes int64
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// HTTPServer routes auto-fill and usage requests.
type HTTPServer struct {
	cfg    Config
	proc   Processor
	usage  usage.Ledger
	router *mux.Router
	logger *slog.Logger
}

func NewHTTPServer(cfg Config, proc Processor, ledger usage.Ledger, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if ledger == nil {
		ledger = usage.Nop{}
	}
	s := &HTTPServer{cfg: cfg, proc: proc, usage: ledger, router: mux.NewRouter(), logger: logger}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type", HeaderRequestID},
	})
	s.router.Use(s.requestContext)
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler { return s.router }

func (s *HTTPServer) registerRoutes() {
	s.router.HandleFunc(AutoFillPath, s.handleAutoFill).Methods(http.MethodPut, http.MethodPost, http.MethodOptions)
	s.router.HandleFunc(UsagePath, s.handleUsage).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc(HealthPath, s.handleHealth).Methods(http.MethodGet)
}

// requestContext stamps a request id and client id on the request context.
func (s *HTTPServer) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if rid == "" {
			rid = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, rid)
		ctx := common.WithRequestID(r.Context(), rid)
		if cid := strings.TrimSpace(r.Header.Get(HeaderClientID)); cid != "" {
			ctx = common.WithClientID(ctx, cid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *HTTPServer) handleAutoFill(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := common.RequestIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			s.writeTransportError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d MB upload limit", s.cfg.MaxUploadBytes>>20))
			return
		}
		s.writeTransportError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeTransportError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeTransportError(w, http.StatusBadRequest, "cannot read upload: "+err.Error())
		return
	}

	req := pipeline.Request{
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
		Fields:      []byte(r.FormValue("fields")),
		ClientID:    common.ClientIDFromContext(r.Context()),
	}

	ctx, cancel := common.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	out := s.proc.Process(ctx, req)

	s.logger.Info("http.autofill",
		"req_id", reqID,
		"method", r.Method,
		"status", out.Status,
		"success", out.Envelope.Success,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	s.writeJSON(w, http.StatusOK, out.Envelope)
}

func (s *HTTPServer) handleUsage(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if clientID == "" {
		clientID = common.ClientIDFromContext(r.Context())
	}
	if clientID == "" {
		clientID = constants.DefaultClientID
	}
	win, err := s.usage.Get(r.Context(), clientID)
	if err != nil {
		s.logger.Error("http.usage.failed", "req_id", common.RequestIDFromContext(r.Context()), "client_id", clientID, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "usage unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, win)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeTransportError renders a request that never reached the pipeline as an error envelope.
func (s *HTTPServer) writeTransportError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, pipeline.Envelope{
		Success: false,
		Message: constants.MessageProcessingPrefix + detail,
		Data:    map[string]*string{},
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("http.write_failed", "error", err)
	}
}
