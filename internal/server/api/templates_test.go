package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayusman/pairclick/internal/fixture"
	"github.com/ayusman/pairclick/internal/store"
)

// multipartBody builds a form with an optional label and an "image" file.
func multipartBody(t *testing.T, label string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if label != "" {
		if err := w.WriteField("label", label); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "card.png")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(image)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func storeTemplate(t *testing.T, s *store.Store, id, label string, image []byte) {
	t.Helper()
	tmpl := &store.Template{ID: id, Label: label, Width: 10, Height: 12, Image: image}
	if err := s.Templates().Create(tmpl); err != nil {
		t.Fatalf("failed to create template: %v", err)
	}
}

func TestTemplateHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewTemplateHandler(s, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listTemplatesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Templates == nil || len(response.Templates) != 0 {
		t.Errorf("expected empty templates array, got %v", response.Templates)
	}

	storeTemplate(t, s, "t1", "apple", []byte("png"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	json.NewDecoder(rec.Body).Decode(&response)
	if len(response.Templates) != 1 || response.Templates[0].Label != "apple" {
		t.Errorf("unexpected templates %+v", response.Templates)
	}
}

func TestTemplateHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewTemplateHandler(s, nil)
	storeTemplate(t, s, "t1", "apple", []byte("\x89PNG\r\n\x1a\nrest"))

	req := httptest.NewRequest(http.MethodGet, "/api/templates/t1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var response templateResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Width != 10 || response.Height != 12 {
		t.Errorf("size = %dx%d, want 10x12", response.Width, response.Height)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/templates/t1/image", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("image: expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("image Content-Type = %q, want image/png", ct)
	}
}

func TestTemplateHandler_NotFound(t *testing.T) {
	handler := NewTemplateHandler(newTestStore(t), nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/templates/missing"},
		{http.MethodGet, "/api/templates/missing/image"},
		{http.MethodDelete, "/api/templates/missing"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestTemplateHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	solver := newFakeSolver()
	handler := NewTemplateHandler(s, solver)
	storeTemplate(t, s, "t1", "apple", []byte("png"))

	req := httptest.NewRequest(http.MethodDelete, "/api/templates/t1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if solver.Reloads() != 1 {
		t.Errorf("expected 1 reload, got %d", solver.Reloads())
	}
	if _, err := s.Templates().GetByID("t1"); err == nil {
		t.Error("template still stored after delete")
	}
}

func TestTemplateHandler_Create_MissingImage(t *testing.T) {
	handler := NewTemplateHandler(newTestStore(t), nil)

	body, contentType := multipartBody(t, "apple", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/templates", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/templates", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-multipart: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestTemplateHandler_Create(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	s := newTestStore(t)
	solver := newFakeSolver()
	handler := NewTemplateHandler(s, solver)

	data, err := fixture.Encode(fixture.Noise(24, 32, 7, 0, 255))
	if err != nil {
		t.Fatalf("failed to encode template: %v", err)
	}

	body, contentType := multipartBody(t, "apple", data)
	req := httptest.NewRequest(http.MethodPost, "/api/templates", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var response templateResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Label != "apple" || response.Width != 24 || response.Height != 32 {
		t.Errorf("response = %+v", response)
	}
	if solver.Reloads() != 1 {
		t.Errorf("expected 1 reload, got %d", solver.Reloads())
	}

	stored, err := s.Templates().GetByID(response.ID)
	if err != nil {
		t.Fatalf("template not stored: %v", err)
	}
	if !bytes.Equal(stored.Image, data) {
		t.Error("stored image differs from upload")
	}

	// Same label again conflicts.
	body, contentType = multipartBody(t, "apple", data)
	req = httptest.NewRequest(http.MethodPost, "/api/templates", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate label: expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestTemplateHandler_Create_Undecodable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	handler := NewTemplateHandler(newTestStore(t), nil)

	body, contentType := multipartBody(t, "junk", []byte("not an image"))
	req := httptest.NewRequest(http.MethodPost, "/api/templates", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}
