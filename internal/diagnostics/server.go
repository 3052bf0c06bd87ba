// Package diagnostics serves an optional HTTP side channel with metrics,
// health and engine statistics. It never carries protocol traffic.
package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/opera/internal/presentation/graph"
	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/engine"
	"github.com/aretw0/opera/pkg/runner"
	"github.com/aretw0/opera/pkg/uci"
)

// DefaultShutdownTimeout bounds how long outstanding requests may run
// once the server is asked to stop.
const DefaultShutdownTimeout = 5 * time.Second

// Source is the read-only view of the engine the endpoints report on.
type Source interface {
	State() domain.EngineState
	Config() domain.EngineConfig
	Statistics() domain.Statistics
	ParserStats() uci.ParserStats
	Position() engine.History
	Identification() engine.Identification
}

// LoopStats reports the event loop counters; nil when no loop runs.
type LoopStats func() runner.Stats

type handler struct {
	source Source
	loop   LoopStats
	logger *slog.Logger
}

// NewHandler builds the router. gatherer may be nil, in which case
// /metrics is not mounted.
func NewHandler(source Source, loop LoopStats, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &handler{source: source, loop: loop, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", h.health)
	r.Get("/statz", h.statz)
	r.Get("/lifecycle", h.lifecycle)
	return r
}

type healthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	st := h.source.State()
	resp := healthResponse{Status: "ok", State: st.String()}
	code := http.StatusOK
	if st == domain.StateError || st == domain.StateStopping {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, resp)
}

// Statz is the body of GET /statz.
type Statz struct {
	Name       string              `json:"name"`
	Version    string              `json:"version,omitempty"`
	State      string              `json:"state"`
	Config     domain.EngineConfig `json:"config"`
	Statistics domain.Statistics   `json:"statistics"`
	Parser     uci.ParserStats     `json:"parser"`
	Position   PositionView        `json:"position"`
	Loop       *LoopView           `json:"loop,omitempty"`
}

// PositionView is the position history as set up by the last "position".
type PositionView struct {
	Base  string   `json:"base"`
	Moves []string `json:"moves"`
}

// LoopView renders runner.Stats with human-friendly units.
type LoopView struct {
	CommandsProcessed uint64  `json:"commands_processed"`
	ResponsesSent     uint64  `json:"responses_sent"`
	Timeouts          uint64  `json:"timeouts"`
	RejectedLines     uint64  `json:"rejected_lines"`
	SuppressedWarns   uint64  `json:"suppressed_warnings"`
	LaggedResponses   uint64  `json:"lagged_responses"`
	AvgCommandMS      float64 `json:"avg_command_ms"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	PeakMemoryBytes   uint64  `json:"peak_memory_bytes"`
}

func (h *handler) statz(w http.ResponseWriter, r *http.Request) {
	id := h.source.Identification()
	pos := h.source.Position()
	if pos.Moves == nil {
		pos.Moves = []string{}
	}
	resp := Statz{
		Name:       id.Name,
		Version:    id.Version,
		State:      h.source.State().String(),
		Config:     h.source.Config(),
		Statistics: h.source.Statistics(),
		Parser:     h.source.ParserStats(),
		Position:   PositionView{Base: pos.Base, Moves: pos.Moves},
	}
	if h.loop != nil {
		s := h.loop()
		resp.Loop = &LoopView{
			CommandsProcessed: s.CommandsProcessed,
			ResponsesSent:     s.ResponsesSent,
			Timeouts:          s.Timeouts,
			RejectedLines:     s.RejectedLines,
			SuppressedWarns:   s.SuppressedWarns,
			LaggedResponses:   s.LaggedResponses,
			AvgCommandMS:      float64(s.AvgCommandTime.Microseconds()) / 1000,
			UptimeSeconds:     s.Uptime.Seconds(),
			PeakMemoryBytes:   s.PeakMemory,
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// lifecycle renders the state diagram as Mermaid with the current state
// highlighted.
func (h *handler) lifecycle(w http.ResponseWriter, r *http.Request) {
	current := h.source.State()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(graph.Lifecycle, &graph.Overlay{Current: &current}))
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Diagnostics response encode failed", "error", err)
	}
}

// Server runs the diagnostics handler until its context ends.
type Server struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger
	grace   time.Duration
}

// NewServer creates a server bound to addr once Run is called.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{addr: addr, handler: handler, logger: logger, grace: DefaultShutdownTimeout}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on an existing listener until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("Diagnostics server listening", "addr", ln.Addr().String())
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.grace)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Warn("Diagnostics shutdown did not complete", "error", err)
			_ = srv.Close()
		}
		return nil
	}
}
