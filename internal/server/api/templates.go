package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/pairclick/internal/detector"
	"github.com/ayusman/pairclick/internal/store"
)

// MaxUploadBytes caps template and screenshot uploads.
const MaxUploadBytes = 16 << 20

// TemplateHandler handles HTTP requests for the card template library.
type TemplateHandler struct {
	store  *store.Store
	solver Solver
}

// NewTemplateHandler creates a new TemplateHandler. solver may be nil.
func NewTemplateHandler(s *store.Store, solver Solver) *TemplateHandler {
	return &TemplateHandler{store: s, solver: solver}
}

// ServeHTTP routes /api/templates, /api/templates/{id} and
// /api/templates/{id}/image.
func (h *TemplateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/templates")
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

	if id, ok := strings.CutSuffix(path, "/image"); ok {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.image(w, r, id)
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type templateResponse struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	CreatedAt string `json:"created_at"`
}

type listTemplatesResponse struct {
	Templates []templateResponse `json:"templates"`
}

func toTemplateResponse(t *store.Template) templateResponse {
	return templateResponse{
		ID:        t.ID,
		Label:     t.Label,
		Width:     t.Width,
		Height:    t.Height,
		CreatedAt: t.CreatedAt.Format(timeFormat),
	}
}

// list handles GET /api/templates.
func (h *TemplateHandler) list(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.Templates().List(false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}

	response := listTemplatesResponse{
		Templates: make([]templateResponse, 0, len(templates)),
	}
	for _, t := range templates {
		response.Templates = append(response.Templates, toTemplateResponse(t))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/templates/{id}.
func (h *TemplateHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	t, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(t))
}

// image handles GET /api/templates/{id}/image and returns the stored bytes.
func (h *TemplateHandler) image(w http.ResponseWriter, r *http.Request, id string) {
	t, ok := h.lookup(w, id)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(t.Image))
	w.WriteHeader(http.StatusOK)
	w.Write(t.Image)
}

func (h *TemplateHandler) lookup(w http.ResponseWriter, id string) (*store.Template, bool) {
	t, err := h.store.Templates().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get template")
		return nil, false
	}
	return t, true
}

// create handles POST /api/templates with a multipart form holding a
// "label" field and an "image" file.
func (h *TemplateHandler) create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	label := strings.TrimSpace(r.FormValue("label"))
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	if label == "" {
		label = header.Filename
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read image")
		return
	}

	decoded, err := detector.DecodeTemplate(0, label, data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Image could not be decoded")
		return
	}
	width, height := decoded.Width, decoded.Height
	decoded.Close()

	if _, err := h.store.Templates().GetByLabel(label); err == nil {
		writeError(w, http.StatusConflict, "Template label already exists")
		return
	}

	t := &store.Template{
		ID:     uuid.New().String(),
		Label:  label,
		Width:  width,
		Height: height,
		Image:  data,
	}
	if err := h.store.Templates().Create(t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}

	reload(h.solver)
	writeJSON(w, http.StatusCreated, toTemplateResponse(t))
}

// delete handles DELETE /api/templates/{id}.
func (h *TemplateHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Templates().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete template")
		return
	}

	reload(h.solver)
	w.WriteHeader(http.StatusNoContent)
}
