package server

import (
	"net/http"

	"gocv.io/x/gocv"

	"github.com/ayusman/pairclick/internal/capture"
	"github.com/ayusman/pairclick/internal/engine"
	"github.com/ayusman/pairclick/internal/server/api"
)

// SnapshotHandler serves the current screenshot as a JPEG, optionally with
// the last solve drawn over it.
type SnapshotHandler struct {
	source capture.Source
	solver api.Solver
}

// NewSnapshotHandler creates a new SnapshotHandler. solver may be nil.
func NewSnapshotHandler(source capture.Source, solver api.Solver) *SnapshotHandler {
	return &SnapshotHandler{source: source, solver: solver}
}

// ServeHTTP handles GET /api/capture[?annotate=1].
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.source.IsOpen() {
		if err := h.source.Open(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	frame, err := h.source.ReadFrame()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer frame.Close()

	img := *frame
	if r.URL.Query().Get("annotate") != "" && h.solver != nil {
		if last := h.solver.Last(); last != nil {
			annotated := engine.Annotate(*frame, last.Result)
			defer annotated.Close()
			img = annotated
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		http.Error(w, "Failed to encode frame", http.StatusInternalServerError)
		return
	}
	defer buf.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.GetBytes())
}
