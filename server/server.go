// Package server exposes the chat service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/hupe1980/chatgraph/chat"
	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/logging"
)

// Options configure a Server.
type Options struct {
	// Addr is the listen address. Defaults to ":8080".
	Addr string
	// Logger receives request logs. Defaults to a text slog logger.
	Logger logging.Logger
	// AllowedOrigins configures CORS. Empty allows all origins.
	AllowedOrigins []string
	// RequestTimeout bounds one chat turn end to end.
	RequestTimeout time.Duration
}

// Server serves the chat API.
type Server struct {
	service *chat.Service
	logger  logging.Logger
	opts    Options
	http    *http.Server
}

// New creates a Server around a chat service.
func New(service *chat.Service, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:           ":8080",
		Logger:         logging.NewDefaultSlogLogger(),
		RequestTimeout: 120 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Server{
		service: service,
		logger:  opts.Logger,
		opts:    opts,
	}

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      c.Handler(s.Routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: opts.RequestTimeout + 10*time.Second,
	}
	return s
}

// Routes builds the API router. Exposed separately so tests can drive the
// handlers without a listener.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/chat/memory", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/api/chat/memory/{sessionID}", s.handleDeleteSession).Methods(http.MethodDelete)
	return r
}

// ListenAndServe starts the server and blocks until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.opts.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// chatRequest is the JSON body of POST /api/chat/memory. UseMemory defaults
// to true when the field is absent.
type chatRequest struct {
	Message     string         `json:"message"`
	SessionID   string         `json:"sessionId,omitempty"`
	UserContext map[string]any `json:"userContext,omitempty"`
	UseMemory   *bool          `json:"useMemory,omitempty"`
}

// chatEnvelope wraps the turn result with server-side timing.
type chatEnvelope struct {
	*chat.Response
	ProcessingTimeMS int64 `json:"processing_time_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	ctx := r.Context()
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.service.Chat(ctx, chat.Request{
		Message:       req.Message,
		SessionID:     req.SessionID,
		UserContext:   req.UserContext,
		DisableMemory: req.UseMemory != nil && !*req.UseMemory,
	})
	if err != nil {
		s.logger.Error("chat turn failed", "error", err)
		var execErr *core.ExecutionError
		if errors.As(err, &execErr) {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal pipeline error"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, chatEnvelope{
		Response:         resp,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]

	existed, err := s.service.DeleteSession(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("session delete failed", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "delete failed"})
		return
	}
	if !existed {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "sessionId": sessionID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
