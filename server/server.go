// Package server exposes the detector over HTTP and WebSocket
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/RyanBlaney/sonido-vox/detector"
	"github.com/RyanBlaney/sonido-vox/detector/config"
	"github.com/RyanBlaney/sonido-vox/logging"
)

// Languages accepted by the detection endpoint
var Languages = []string{"Tamil", "English", "Hindi", "Malayalam", "Telugu"}

// MinPayloadLength is the shortest audioBase64 accepted
const MinPayloadLength = 100

const (
	HeaderAPIKey    = "x-api-key"
	HeaderRequestID = "X-Request-ID"
	QueryAPIKey     = "x_api_key"
)

// Analyzer is the part of the detector the server needs
type Analyzer interface {
	AnalyzeAudio(ctx context.Context, data []byte, format string) (*detector.Result, error)
	AnalyzeBase64(ctx context.Context, payload, format string) (*detector.Result, error)
	SupportedFormats() []string
	Ready() bool
}

// Server serves the detection API
type Server struct {
	config   config.ServerConfig
	analyzer Analyzer
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	logger   logging.Logger
}

// New creates a server. Routes are registered immediately; call Handler or
// ListenAndServe to use them.
func New(cfg config.ServerConfig, analyzer Analyzer) *Server {
	s := &Server{
		config:   cfg,
		analyzer: analyzer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
		logger: logging.WithFields(logging.Fields{
			"component": "server",
		}),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/voice-detection", s.handleVoiceDetection)
	s.mux.HandleFunc("GET /ws/voice", s.handleVoiceStream)
	return s
}

// Handler returns the routed handler wrapped with request IDs
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", logging.Fields{"addr": s.config.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)

		ctx := logging.ContextWithFields(r.Context(), logging.Fields{"request_id": id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogger(r *http.Request, function string) logging.Logger {
	return s.logger.WithContext(r.Context()).WithFields(logging.Fields{
		"function": function,
		"path":     r.URL.Path,
	})
}

// authError is an authentication failure with its HTTP status
type authError struct {
	status  int
	message string
}

// authenticate distinguishes a missing key (401) from a wrong one (403)
func (s *Server) authenticate(key string, present bool) *authError {
	if !present {
		return &authError{http.StatusUnauthorized, "Missing API key"}
	}
	if s.config.APIKey == "" {
		return &authError{http.StatusInternalServerError, "Server misconfiguration: API key not set"}
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.config.APIKey)) != 1 {
		return &authError{http.StatusForbidden, "Invalid API key"}
	}
	return nil
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Status: "error", Message: message})
}
