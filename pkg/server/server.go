// Package server exposes the simulation core to external collaborators:
// a JSON state API for renderers and HUDs, a websocket snapshot stream,
// scheduler controls (pause/resume/step/restart), and prometheus metrics.
// The server owns the fixed-rate step loop; pausing withholds step
// invocations rather than interrupting one mid-flight.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emilyst/many-body-simulation/pkg/astronomy/nbody"
	"github.com/emilyst/many-body-simulation/pkg/utils"
)

type Server struct {
	sys     *nbody.System
	cfg     utils.ServerConfig
	metrics *MetricsCollector
	paused  atomic.Bool

	upgrader websocket.Upgrader
}

func New(sys *nbody.System, cfg utils.ServerConfig) *Server {
	return &Server{
		sys:     sys,
		cfg:     cfg,
		metrics: NewMetricsCollector(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run drives the fixed-rate step loop and serves the HTTP API until the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.router(),
	}

	go s.stepLoop(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("server: listening on %s", s.cfg.ListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) stepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.StepRateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.paused.Load() {
				continue
			}
			s.step()
		}
	}
}

func (s *Server) step() {
	start := time.Now()
	if err := s.sys.Step(); err != nil {
		log.Printf("server: step failed: %v", err)
		return
	}
	s.metrics.RecordStep(time.Since(start))

	d := s.sys.Diagnostics()
	s.metrics.RecordPopulation(d.BodyCount, d.ExcludedTotal, d.Tree.ForceCalculations, d.Tree.NodeCount)
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/bodies", s.handleBodies).Methods("GET")
	api.HandleFunc("/barycenter", s.handleBarycenter).Methods("GET")
	api.HandleFunc("/octree", s.handleOctree).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/control/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/control/resume", s.handleResume).Methods("POST")
	api.HandleFunc("/control/step", s.handleSingleStep).Methods("POST")
	api.HandleFunc("/control/restart", s.handleRestart).Methods("POST")
	api.HandleFunc("/ws", s.handleWebsocket).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.Use(corsMiddleware)
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func (s *Server) handleBodies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.sys.Bodies())
}

func (s *Server) handleBarycenter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.sys.Barycenter())
}

func (s *Server) handleOctree(w http.ResponseWriter, r *http.Request) {
	depth := s.cfg.OctreeDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, fmt.Sprintf("invalid depth %q", raw), http.StatusBadRequest)
			return
		}
		depth = parsed
	}
	writeJSON(w, map[string]interface{}{
		"max_depth": depth,
		"bounds":    s.sys.TreeBounds(depth),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"paused":      s.paused.Load(),
		"seed":        s.sys.Seed(),
		"diagnostics": s.sys.Diagnostics(),
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.paused.Store(true)
	writeJSON(w, map[string]bool{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.paused.Store(false)
	writeJSON(w, map[string]bool{"paused": false})
}

// handleSingleStep advances exactly one step while paused, for frame-by-
// frame inspection.
func (s *Server) handleSingleStep(w http.ResponseWriter, r *http.Request) {
	if !s.paused.Load() {
		http.Error(w, "single-stepping requires the simulation to be paused", http.StatusConflict)
		return
	}
	s.step()
	writeJSON(w, map[string]uint64{"step_index": s.sys.StepIndex()})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	seed := s.sys.Seed()
	if raw := r.URL.Query().Get("seed"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid seed %q", raw), http.StatusBadRequest)
			return
		}
		seed = parsed
	}

	if err := s.sys.Restart(seed); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	log.Printf("server: restarted with seed %d", seed)
	writeJSON(w, map[string]uint64{"seed": seed})
}

// snapshot is one websocket frame of renderable state.
type snapshot struct {
	StepIndex  uint64           `json:"step_index"`
	Bodies     []nbody.Body     `json:"bodies"`
	Barycenter nbody.Barycenter `json:"barycenter"`
}

// handleWebsocket streams a snapshot per step tick until the client goes
// away. Each frame is a full copy; the simulation never blocks on a slow
// consumer.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.StepRateHz))
	defer ticker.Stop()

	for range ticker.C {
		frame := snapshot{
			StepIndex:  s.sys.StepIndex(),
			Bodies:     s.sys.Bodies(),
			Barycenter: s.sys.Barycenter(),
		}
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
	}
}
