// Package api serves the running simulation over HTTP.
// GET endpoints are public observation. POST endpoints require a bearer
// token and control the engine and the observer view.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/agentsim/internal/agents"
	"github.com/talgya/agentsim/internal/engine"
	"github.com/talgya/agentsim/internal/persistence"
)

const maxSSEConns = 2

// Server serves one engine over HTTP.
type Server struct {
	Eng      *engine.Engine
	DB       *persistence.DB // optional run journal
	RunID    uuid.UUID       // journal run being recorded, or uuid.Nil
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	// RatePerMinute bounds requests per client (0 = unlimited).
	RatePerMinute int
	// OnShutdown runs when an admin asks the process to exit.
	OnShutdown func()

	sseConns int32

	viewMu sync.Mutex
	view   engine.View
	viewOK bool

	limiter *RateLimiter
	srv     *http.Server
}

// Handler builds the routed, CORS-wrapped and rate-limited handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentDetail)
	mux.HandleFunc("/api/v1/grid", s.handleGrid)
	mux.HandleFunc("/api/v1/network", s.handleNetwork)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/stats/history", s.handleStatsHistory)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Admin endpoints.
	mux.HandleFunc("/api/v1/view", s.adminOnly(s.handleView))
	mux.HandleFunc("/api/v1/start", s.adminOnly(postOnly(s.handleStart)))
	mux.HandleFunc("/api/v1/stop", s.adminOnly(postOnly(s.handleStop)))
	mux.HandleFunc("/api/v1/step", s.adminOnly(postOnly(s.handleStep)))
	mux.HandleFunc("/api/v1/shutdown", s.adminOnly(postOnly(s.handleShutdown)))

	var h http.Handler = mux
	if s.RatePerMinute > 0 {
		if s.limiter == nil {
			s.limiter = NewRateLimiter(s.RatePerMinute, time.Minute)
		}
		h = RateLimitMiddleware(s.limiter, h)
	}
	return corsMiddleware(h)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "rate_per_minute", s.RatePerMinute)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server and its rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no AGENTSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) currentView() engine.View {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	if !s.viewOK {
		return engine.DefaultView
	}
	return s.view
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Eng.Snapshot(s.currentView())
	status := map[string]any{
		"name":       snap.Name,
		"state":      snap.State,
		"step":       snap.Step,
		"universe":   snap.Universe,
		"agents":     len(snap.Agents),
		"states":     snap.AgentSummary(),
		"properties": snap.Properties,
		"stats":      snap.Stats,
	}
	if s.RunID != uuid.Nil {
		status["run_id"] = s.RunID.String()
	}
	if err := s.Eng.Err(); err != nil {
		status["error"] = err.Error()
	}
	writeJSON(w, status)
}

// handleAgents lists agents, optionally only those in ?state=.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	snap := s.Eng.Snapshot(s.currentView())

	result := make([]engine.AgentSnapshot, 0, len(snap.Agents))
	for _, a := range snap.Agents {
		if state != "" && !inState(a, state) {
			continue
		}
		result = append(result, a)
	}
	writeJSON(w, result)
}

func inState(a engine.AgentSnapshot, state string) bool {
	for _, st := range a.States {
		if st == state {
			return true
		}
	}
	return false
}

type agentDetail struct {
	engine.AgentSnapshot
	Behaviors []string       `json:"behaviors"`
	Knowledge map[string]any `json:"knowledge"`
}

// handleAgentDetail serves GET /api/v1/agent/:id.
func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/agent/")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	v := s.currentView()
	var (
		body     []byte
		found    bool
		marshErr error
	)
	// Knowledge values may be references the loop mutates, so they are
	// encoded while the step lock is held.
	s.Eng.Inspect(func(sim *engine.Simulation) {
		a, ok := sim.Agent(agents.AgentID(id))
		if !ok {
			return
		}
		found = true
		body, marshErr = json.MarshalIndent(agentDetail{
			AgentSnapshot: engine.SnapshotAgent(a, v),
			Behaviors:     a.BehaviorNames(),
			Knowledge:     a.Knowledge,
		}, "", "  ")
	})
	if !found {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	if marshErr != nil {
		http.Error(w, "encode agent: "+marshErr.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(append(body, '\n'))
}

// handleGrid returns layer snapshots, filtered by ?substrate= and ?layer=.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	substrate := r.URL.Query().Get("substrate")
	layer := r.URL.Query().Get("layer")
	snap := s.Eng.Snapshot(s.currentView())

	layers := make([]engine.LayerSnapshot, 0, len(snap.Layers))
	for _, l := range snap.Layers {
		if substrate != "" && l.Substrate != substrate {
			continue
		}
		if layer != "" && l.Name != layer {
			continue
		}
		layers = append(layers, l)
	}
	writeJSON(w, map[string]any{
		"step":     snap.Step,
		"universe": snap.Universe,
		"view":     snap.View,
		"layers":   layers,
	})
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	snap := s.Eng.Snapshot(s.currentView())
	if snap.Network == nil {
		http.Error(w, "no network attached", http.StatusNotFound)
		return
	}
	writeJSON(w, snap.Network)
}

// handleEvents returns the newest ?limit= events, or those after ?since=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if since := r.URL.Query().Get("since"); since != "" {
		seq, err := strconv.ParseUint(since, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		writeJSON(w, s.Eng.EventsSince(seq))
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	events := s.Eng.Events(limit)

	if category := r.URL.Query().Get("category"); category != "" {
		filtered := make([]engine.Event, 0, len(events))
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	writeJSON(w, events)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Eng.Stats())
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil || s.RunID == uuid.Nil {
		http.Error(w, "journal not available", http.StatusServiceUnavailable)
		return
	}
	rows, err := s.DB.StatsHistory(s.RunID)
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		// The table may not have data yet.
		writeJSON(w, []persistence.StepStat{})
		return
	}
	if rows == nil {
		rows = []persistence.StepStat{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "journal not available", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	runs, err := s.DB.Runs(limit)
	if err != nil {
		slog.Error("runs query failed", "error", err)
		http.Error(w, "runs query failed", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, runs)
}

// handleView reports the observer view and, on POST, pans or zooms it.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			PanX  int     `json:"pan_x"`
			PanY  int     `json:"pan_y"`
			Zoom  float64 `json:"zoom"`
			Reset bool    `json:"reset"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Zoom < 0 || req.Zoom > 64 {
			http.Error(w, "zoom must be 0-64", http.StatusBadRequest)
			return
		}
		v := s.currentView()
		if req.Reset {
			v = engine.DefaultView
		}
		v = v.Pan(req.PanX, req.PanY)
		if req.Zoom > 0 {
			v = v.Zoom(req.Zoom)
		}
		s.viewMu.Lock()
		s.view, s.viewOK = v, true
		s.viewMu.Unlock()
		slog.Info("view changed", "cell_w", v.CellWidth, "origin_x", v.OriginX, "origin_y", v.OriginY)
	}
	writeJSON(w, s.currentView())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	// The loop outlives the request.
	if err := s.Eng.Start(context.Background()); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"state": s.Eng.State().String(), "step": s.Eng.StepTime()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Eng.Stop()
	writeJSON(w, map[string]any{"state": s.Eng.State().String(), "step": s.Eng.StepTime()})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	err := s.Eng.Step()
	switch {
	case errors.Is(err, engine.ErrRunning), errors.Is(err, engine.ErrStopped):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"state": s.Eng.State().String(), "step": s.Eng.StepTime()})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if s.OnShutdown == nil {
		http.Error(w, "shutdown not supported", http.StatusNotImplemented)
		return
	}
	writeJSON(w, map[string]string{"message": "shutting down"})
	go s.OnShutdown()
}

// handleStream pushes new events as server-sent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Catch up with the last 50 events.
	var last uint64
	for _, e := range s.Eng.Events(50) {
		writeSSEEvent(w, e)
		last = e.Seq
	}
	flusher.Flush()

	poll := time.NewTicker(250 * time.Millisecond)
	defer poll.Stop()
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-poll.C:
			events := s.Eng.EventsSince(last)
			if len(events) == 0 {
				continue
			}
			for _, e := range events {
				writeSSEEvent(w, e)
				last = e.Seq
			}
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, e engine.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.Seq, e.Category, data)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
