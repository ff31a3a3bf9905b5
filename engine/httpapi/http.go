// Package httpapi exposes the engine over a narrow HTTP surface so a host
// UI can drive it. All semantics live in the engine packages; handlers only
// decode, delegate, and encode.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"companion.arpa/engine/avatar"
)

type Config struct {
	ServerURL string
	// RespondPerSecond bounds how fast /api/respond accepts AI responses.
	RespondPerSecond float64
	RespondBurst     int
}

// Responder is the engine surface the HTTP adapter drives.
type Responder interface {
	ProcessResponse(ctx context.Context, text string) (string, error)
	ProcessCommand(ctx context.Context, text string) (string, error)
	AvatarState() avatar.State
}

type Server struct {
	log            *zap.Logger
	config         Config
	responder      Responder
	limiter        *rate.Limiter
	server         *http.Server
	serveMux       *http.ServeMux
	isShuttingDown atomic.Bool
	isReady        atomic.Bool
}

func NewServer(log *zap.Logger, config Config, responder Responder) *Server {
	perSecond := config.RespondPerSecond
	if perSecond <= 0 {
		perSecond = 2
	}
	burst := config.RespondBurst
	if burst <= 0 {
		burst = 5
	}

	h := &Server{
		log:       log,
		config:    config,
		responder: responder,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), burst),
		serveMux:  http.NewServeMux(),
	}
	h.registerEndpoints()
	return h
}

func (h *Server) Run(ctx context.Context) error {
	// Set the service as ready after a short delay
	go func() {
		time.Sleep(2 * time.Second)
		h.isReady.Store(true)
	}()

	su, err := url.ParseRequestURI(h.config.ServerURL)
	if err != nil || su == nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	h.server = &http.Server{
		Addr:    su.Host,
		Handler: h.serveMux,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	h.log.Info("Starting http server", zap.String("addr", su.Host))
	if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (h *Server) BeginShutdown(ctx context.Context) error {
	h.isShuttingDown.Store(true)
	return nil
}

func (h *Server) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *Server) registerEndpoints() {
	h.serveMux.HandleFunc("/health", h.health)
	h.serveMux.HandleFunc("/healthz", h.healthz)
	h.serveMux.HandleFunc("/ready", h.ready)
	h.serveMux.HandleFunc("POST /api/respond", h.respond)
	h.serveMux.HandleFunc("POST /api/command", h.command)
	h.serveMux.HandleFunc("GET /api/avatar/state", h.avatarState)
}

type textRequest struct {
	Text string `json:"text"`
}

type textResponse struct {
	Text string `json:"text"`
}

// respond ingests a raw AI response: command tags, narrative tags, and
// emotion heuristics all apply. Rate limited so a misbehaving host cannot
// flood the generation pipeline.
func (h *Server) respond(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		http.Error(w, "Too many responses, slow down.", http.StatusTooManyRequests)
		return
	}
	h.processText(w, r, h.responder.ProcessResponse)
}

// command applies explicit command tag text without the emotion fallback.
func (h *Server) command(w http.ResponseWriter, r *http.Request) {
	h.processText(w, r, h.responder.ProcessCommand)
}

func (h *Server) processText(w http.ResponseWriter, r *http.Request, process func(context.Context, string) (string, error)) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	clean, err := process(r.Context(), req.Text)
	if err != nil {
		h.log.Error("Failed to process text", zap.Error(err))
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(textResponse{Text: clean})
}

func (h *Server) avatarState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.responder.AvatarState())
}

func (h *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.isShuttingDown.Load() { // allow draining by degrading readiness probe
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "shutting down",
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if h.isShuttingDown.Load() { // allow draining by degrading readiness probe
		h.log.Error("Health check failed", zap.String("remoteAddr", r.RemoteAddr))
		http.Error(w, "Service is shutting down.", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Server) ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !h.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "not ready",
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}
