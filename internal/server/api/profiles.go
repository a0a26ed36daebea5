package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/pairclick/internal/coords"
	"github.com/ayusman/pairclick/internal/engine"
	"github.com/ayusman/pairclick/internal/store"
)

// ProfileHandler handles HTTP requests for coordinate profiles.
type ProfileHandler struct {
	store  *store.Store
	solver Solver
}

// NewProfileHandler creates a new ProfileHandler. solver may be nil.
func NewProfileHandler(s *store.Store, solver Solver) *ProfileHandler {
	return &ProfileHandler{store: s, solver: solver}
}

// ServeHTTP routes /api/profiles and /api/profiles/{id}.
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/profiles")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type profileRequest struct {
	Name      string   `json:"name"`
	Mode      string   `json:"mode"`
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	AnchorX   float64  `json:"anchor_x"`
	AnchorY   float64  `json:"anchor_y"`
	Scale     float64  `json:"scale"`
	HSpacing  *float64 `json:"h_spacing"`
	VSpacing  *float64 `json:"v_spacing"`
	Threshold float64  `json:"threshold"`
}

type profileResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Mode      string  `json:"mode"`
	Rows      int     `json:"rows"`
	Cols      int     `json:"cols"`
	AnchorX   float64 `json:"anchor_x"`
	AnchorY   float64 `json:"anchor_y"`
	Scale     float64 `json:"scale"`
	HSpacing  float64 `json:"h_spacing"`
	VSpacing  float64 `json:"v_spacing"`
	Threshold float64 `json:"threshold"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type listProfilesResponse struct {
	Profiles []profileResponse `json:"profiles"`
}

func toProfileResponse(p *store.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		Name:      p.Name,
		Mode:      p.Mode,
		Rows:      p.Rows,
		Cols:      p.Cols,
		AnchorX:   p.AnchorX,
		AnchorY:   p.AnchorY,
		Scale:     p.Scale,
		HSpacing:  p.HSpacing,
		VSpacing:  p.VSpacing,
		Threshold: p.Threshold,
		CreatedAt: p.CreatedAt.Format(timeFormat),
		UpdatedAt: p.UpdatedAt.Format(timeFormat),
	}
}

// apply copies req onto p, filling spacing and scale defaults, and returns
// a message describing the first invalid field.
func (req profileRequest) apply(p *store.Profile) string {
	if req.Name == "" {
		return "name is required"
	}
	if req.Mode == "" {
		req.Mode = string(engine.ModeGrid)
	}
	switch engine.Mode(req.Mode) {
	case engine.ModeGrid:
		if req.Rows <= 0 || req.Cols <= 0 {
			return "rows and cols are required for grid mode"
		}
		if req.Rows*req.Cols%2 != 0 {
			return "rows*cols must be even"
		}
	case engine.ModeTemplate:
	default:
		return "mode must be 'grid' or 'template'"
	}
	if req.Scale == 0 {
		req.Scale = 1
	}
	if req.Scale < 0 {
		return "scale must be positive"
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		return "threshold must be between 0 and 1"
	}

	spacing := coords.DefaultSpacing()
	if req.HSpacing != nil {
		spacing.Horizontal = *req.HSpacing
	}
	if req.VSpacing != nil {
		spacing.Vertical = *req.VSpacing
	}

	p.Name = req.Name
	p.Mode = req.Mode
	p.Rows = req.Rows
	p.Cols = req.Cols
	p.AnchorX = req.AnchorX
	p.AnchorY = req.AnchorY
	p.Scale = req.Scale
	p.HSpacing = spacing.Horizontal
	p.VSpacing = spacing.Vertical
	p.Threshold = req.Threshold
	return ""
}

// list handles GET /api/profiles.
func (h *ProfileHandler) list(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.Profiles().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list profiles")
		return
	}

	response := listProfilesResponse{
		Profiles: make([]profileResponse, 0, len(profiles)),
	}
	for _, p := range profiles {
		response.Profiles = append(response.Profiles, toProfileResponse(p))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/profiles/{id}.
func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	profile, err := h.store.Profiles().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// create handles POST /api/profiles.
func (h *ProfileHandler) create(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	profile := &store.Profile{ID: uuid.New().String()}
	if msg := req.apply(profile); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if _, err := h.store.Profiles().GetByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, "Profile name already exists")
		return
	}

	if err := h.store.Profiles().Create(profile); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create profile")
		return
	}

	writeJSON(w, http.StatusCreated, toProfileResponse(profile))
}

// update handles PUT /api/profiles/{id}. The active profile is reloaded
// into the engine.
func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	profile, err := h.store.Profiles().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := req.apply(profile); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if other, err := h.store.Profiles().GetByName(req.Name); err == nil && other.ID != id {
		writeError(w, http.StatusConflict, "Profile name already exists")
		return
	}

	if err := h.store.Profiles().Update(profile); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	if h.isActive(profile) {
		reload(h.solver)
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// delete handles DELETE /api/profiles/{id}.
func (h *ProfileHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	profile, err := h.store.Profiles().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}
	if h.isActive(profile) {
		writeError(w, http.StatusConflict, "Profile is active")
		return
	}

	if err := h.store.Profiles().Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete profile")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// isActive reports whether the active_profile setting names p.
func (h *ProfileHandler) isActive(p *store.Profile) bool {
	active, err := h.store.Settings().GetOr(store.SettingActiveProfile, "")
	if err != nil || active == "" {
		return false
	}
	return active == p.ID || active == p.Name
}
