// Package server provides the HTTP server for the pairclick solver.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ayusman/pairclick/internal/capture"
	"github.com/ayusman/pairclick/internal/server/api"
	"github.com/ayusman/pairclick/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Solver    api.Solver
	Source    capture.Source
	Events    *Hub
}

// Server represents the HTTP server for the pairclick application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil || s.config.Solver != nil {
		solves := api.NewSolveHandler(s.config.Store, s.config.Solver)
		s.mux.Handle("/api/solve", solves)
		s.mux.Handle("/api/solve/last", solves)
		s.mux.Handle("/api/solves", solves)
		s.mux.Handle("/api/solves/", solves)
	}

	if s.config.Store != nil {
		templates := api.NewTemplateHandler(s.config.Store, s.config.Solver)
		s.mux.Handle("/api/templates", templates)
		s.mux.Handle("/api/templates/", templates)

		profiles := api.NewProfileHandler(s.config.Store, s.config.Solver)
		s.mux.Handle("/api/profiles", profiles)
		s.mux.Handle("/api/profiles/", profiles)

		s.mux.Handle("/api/settings", api.NewSettingsHandler(s.config.Store, s.config.Solver))
	}

	if s.config.Source != nil {
		s.mux.Handle("/api/capture", NewSnapshotHandler(s.config.Source, s.config.Solver))
	}

	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health. Host figures that
// cannot be read are left out.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	if n, err := cpu.Counts(true); err == nil {
		response["cpus"] = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		response["memory"] = map[string]interface{}{
			"total":        vm.Total,
			"available":    vm.Available,
			"used_percent": vm.UsedPercent,
		}
	}
	if s.config.Store != nil {
		if n, err := s.config.Store.Templates().Count(); err == nil {
			response["templates"] = n
		}
	}
	if s.config.Solver != nil {
		response["dry_run"] = s.config.Solver.DryRun()
		if last := s.config.Solver.Last(); last != nil {
			response["last_solve"] = last.At.Format(time.RFC3339)
		}
	}
	if s.config.Events != nil {
		response["clients"] = s.config.Events.Clients()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
