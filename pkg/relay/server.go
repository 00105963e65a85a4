// Package relay exposes the HTTP surface that fronts the remote
// wellness flow: one chat endpoint plus health and metrics handlers.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/wellnesscouncil/relay/pkg/config"
	"github.com/wellnesscouncil/relay/pkg/errors"
	"github.com/wellnesscouncil/relay/pkg/flow"
	"github.com/wellnesscouncil/relay/pkg/logging"
)

// Invoker starts one flow invocation. Satisfied by *flow.Client.
type Invoker interface {
	Invoke(ctx context.Context, req flow.Request) (flow.Stream, error)
}

// Collector drains one stream into a result. Satisfied by
// *flow.Aggregator.
type Collector interface {
	Collect(ctx context.Context, st flow.Stream) (*flow.Result, error)
}

// Server is the relay HTTP server.
type Server struct {
	cfg        *config.Config
	client     Invoker
	collector  Collector
	log        *logging.Logger
	limiter    *rate.Limiter
	inFlight   *connLimiter
	httpServer *http.Server
}

// NewServer wires the chat endpoint on top of a flow client and
// aggregator.
func NewServer(cfg *config.Config, client Invoker, collector Collector, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewNop()
	}

	s := &Server{
		cfg:       cfg,
		client:    client,
		collector: collector,
		log:       log,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst),
		inFlight:  newConnLimiter(cfg.Server.MaxInFlight),
	}

	r := chi.NewRouter()
	r.Use(withCORS)
	r.Use(s.withLogging)
	r.Use(s.withRecovery)

	r.Post("/api/chat", s.handleChat)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// chatRequest is the body of POST /api/chat. ContextData is kept as
// raw JSON so the payload the flow receives is exactly the payload
// the caller sent.
type chatRequest struct {
	ContextData json.RawMessage `json:"contextData"`
}

// chatResponse is the uniform response shape for both outcomes.
// Exactly one of Reply/Error is set.
type chatResponse struct {
	Success bool   `json:"success"`
	Reply   string `json:"reply,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := ulid.Make().String()

	metricRequests.Inc()
	defer func() {
		metricRequestDuration.Observe(time.Since(start).Seconds())
	}()

	if !s.limiter.Allow() {
		s.writeFailure(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if !s.inFlight.Acquire() {
		s.writeFailure(w, http.StatusServiceUnavailable, "too many requests in flight")
		return
	}
	defer s.inFlight.Release()
	metricInFlight.Inc()
	defer metricInFlight.Dec()

	var req chatRequest
	if status, err := decodeJSONBody(w, r, &req, s.cfg.Server.MaxBodyBytes); err != nil {
		s.log.Warn(logging.CategoryRelay, "request_rejected", err.Error(), map[string]any{
			"request_id": requestID,
		})
		s.writeFailure(w, status, err.Error())
		return
	}
	if len(req.ContextData) == 0 {
		s.writeFailure(w, http.StatusBadRequest, "contextData is required")
		return
	}

	s.log.Info(logging.CategoryRelay, "request_received", "chat request", map[string]any{
		"request_id": requestID,
		"bytes":      len(req.ContextData),
	})

	// r.Context() is canceled when the caller disconnects, which
	// abandons the in-flight stream.
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.RequestTimeout)
	defer cancel()

	st, err := s.client.Invoke(ctx, flow.Request{
		Payload:     req.ContextData,
		FlowID:      s.cfg.Flow.FlowID,
		FlowAliasID: s.cfg.Flow.FlowAliasID,
	})
	if err != nil {
		s.failRequest(w, requestID, err)
		return
	}

	res, err := s.collector.Collect(ctx, st)
	if err != nil {
		s.failRequest(w, requestID, err)
		return
	}

	metricCompletions.WithLabelValues(res.CompletionReason).Inc()
	s.log.Info(logging.CategoryRelay, "request_completed", "chat request succeeded", map[string]any{
		"request_id":        requestID,
		"chunks":            res.Chunks,
		"unknown_events":    res.UnknownEvents,
		"completion_reason": res.CompletionReason,
		"reply_bytes":       len(res.Reply),
		"duration_ms":       time.Since(start).Milliseconds(),
	})

	writeJSON(w, http.StatusOK, chatResponse{Success: true, Reply: res.Reply})
}

// failRequest converts a classified error into the uniform failure
// body with the matching HTTP status.
func (s *Server) failRequest(w http.ResponseWriter, requestID string, err error) {
	code := errors.GetCode(err)
	s.log.Error(logging.CategoryRelay, "request_failed", err.Error(), map[string]any{
		"request_id": requestID,
		"code":       string(code),
	})
	s.writeFailure(w, statusForCode(code), err.Error())
}

func (s *Server) writeFailure(w http.ResponseWriter, status int, message string) {
	metricFailures.WithLabelValues(http.StatusText(status)).Inc()
	writeJSON(w, status, chatResponse{Success: false, Error: message})
}

// statusForCode maps error taxonomy onto HTTP statuses: caller
// mistakes are 4xx, upstream trouble is 502/504, everything else 500.
func statusForCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeSerialization:
		return http.StatusBadRequest
	case errors.ErrCodeTransport, errors.ErrCodeRemoteRejection:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.client == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": "flow client not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Helpers
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
