package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ayusman/pairclick/internal/store"
)

// SettingsHandler reads and changes the active profile and dry-run mode.
type SettingsHandler struct {
	store  *store.Store
	solver Solver
}

// NewSettingsHandler creates a SettingsHandler. solver may be nil.
func NewSettingsHandler(s *store.Store, solver Solver) *SettingsHandler {
	return &SettingsHandler{store: s, solver: solver}
}

type settingsResponse struct {
	ActiveProfile string `json:"active_profile"`
	DryRun        bool   `json:"dry_run"`
}

type updateSettingsRequest struct {
	ActiveProfile *string `json:"active_profile"`
	DryRun        *bool   `json:"dry_run"`
}

// ServeHTTP handles GET and PUT /api/settings.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) current() (settingsResponse, error) {
	active, err := h.store.Settings().GetOr(store.SettingActiveProfile, "")
	if err != nil {
		return settingsResponse{}, err
	}
	resp := settingsResponse{ActiveProfile: active}
	if h.solver != nil {
		resp.DryRun = h.solver.DryRun()
	} else {
		v, err := h.store.Settings().GetOr(store.SettingDryRun, "false")
		if err != nil {
			return settingsResponse{}, err
		}
		resp.DryRun = v == "true"
	}
	return resp, nil
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// update applies the fields present in the body. Changing the active
// profile reloads the engine; an unknown profile is rejected.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.ActiveProfile != nil {
		if *req.ActiveProfile != "" {
			if _, err := h.store.Profiles().GetByID(*req.ActiveProfile); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusBadRequest, "Profile not found")
					return
				}
				writeError(w, http.StatusInternalServerError, "Failed to get profile")
				return
			}
		}
		if err := h.store.Settings().Set(store.SettingActiveProfile, *req.ActiveProfile); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
		reload(h.solver)
	}

	if req.DryRun != nil {
		if h.solver != nil {
			h.solver.SetDryRun(*req.DryRun)
		} else if err := h.store.Settings().Set(store.SettingDryRun, strconv.FormatBool(*req.DryRun)); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
	}

	h.get(w, r)
}
