package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/pairclick/internal/app"
	"github.com/ayusman/pairclick/internal/report"
	"github.com/ayusman/pairclick/internal/store"
)

// DefaultSolveLimit is the page size of GET /api/solves.
const DefaultSolveLimit = 50

// SolveHandler runs solves and serves the solve history.
type SolveHandler struct {
	store  *store.Store
	solver Solver
}

// NewSolveHandler creates a SolveHandler. Either argument may be nil, which
// disables the routes that need it.
func NewSolveHandler(s *store.Store, solver Solver) *SolveHandler {
	return &SolveHandler{store: s, solver: solver}
}

// ServeHTTP routes POST /api/solve, GET /api/solve/last, GET /api/solves
// and GET /api/solves/{id}.
func (h *SolveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/solve":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.solve(w, r)
		return
	case r.URL.Path == "/api/solve/last":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.last(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/solves")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		h.list(w, r)
		return
	}
	h.get(w, r, path)
}

type listSolvesResponse struct {
	Solves []*store.Solve `json:"solves"`
}

// solve handles POST /api/solve. A multipart "image" file is solved
// directly; with no upload the current capture is solved instead.
func (h *SolveHandler) solve(w http.ResponseWriter, r *http.Request) {
	if h.solver == nil {
		writeError(w, http.StatusServiceUnavailable, "Solver not configured")
		return
	}

	var (
		out *app.Outcome
		err error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
		if perr := r.ParseMultipartForm(MaxUploadBytes); perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		file, _, ferr := r.FormFile("image")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, "image is required")
			return
		}
		data, rerr := io.ReadAll(file)
		file.Close()
		if rerr != nil {
			writeError(w, http.StatusBadRequest, "Failed to read image")
			return
		}
		out, err = h.solver.SolveBytes(r.Context(), data)
	} else {
		out, err = h.solver.SolveNow(r.Context())
	}

	if err != nil {
		writeError(w, solveStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// solveStatus maps solve errors to HTTP status codes.
func solveStatus(err error) int {
	switch {
	case report.IsLoadError(err):
		return http.StatusBadRequest
	case errors.Is(err, report.ErrNoCandidates):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrNoSource):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// last handles GET /api/solve/last.
func (h *SolveHandler) last(w http.ResponseWriter, r *http.Request) {
	if h.solver == nil || h.solver.Last() == nil {
		writeError(w, http.StatusNotFound, "No solve yet")
		return
	}
	writeJSON(w, http.StatusOK, h.solver.Last())
}

// list handles GET /api/solves?limit=N, newest first.
func (h *SolveHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Store not configured")
		return
	}

	limit := DefaultSolveLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	solves, err := h.store.Solves().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list solves")
		return
	}
	if solves == nil {
		solves = []*store.Solve{}
	}

	writeJSON(w, http.StatusOK, listSolvesResponse{Solves: solves})
}

// get handles GET /api/solves/{id}.
func (h *SolveHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Store not configured")
		return
	}

	s, err := h.store.Solves().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Solve not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get solve")
		return
	}

	writeJSON(w, http.StatusOK, s)
}
