package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayusman/pairclick/internal/store"
)

func TestSettingsHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewSettingsHandler(s, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var response settingsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ActiveProfile != "" || response.DryRun {
		t.Errorf("defaults = %+v", response)
	}
}

func TestSettingsHandler_Update(t *testing.T) {
	s := newTestStore(t)
	solver := newFakeSolver()
	handler := NewSettingsHandler(s, solver)
	createProfile(t, s, "p1", "arcade")

	body := `{"active_profile":"p1","dry_run":true}`
	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var response settingsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ActiveProfile != "p1" || !response.DryRun {
		t.Errorf("settings = %+v", response)
	}
	if solver.Reloads() != 1 {
		t.Errorf("expected 1 reload, got %d", solver.Reloads())
	}
	if !solver.DryRun() {
		t.Error("dry run not passed to solver")
	}

	// Only dry_run: no reload.
	req = httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewBufferString(`{"dry_run":false}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if solver.Reloads() != 1 {
		t.Errorf("dry_run change reloaded the engine")
	}
	if solver.DryRun() {
		t.Error("dry run still on")
	}
}

func TestSettingsHandler_Update_WithoutSolver(t *testing.T) {
	s := newTestStore(t)
	handler := NewSettingsHandler(s, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewBufferString(`{"dry_run":true}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	v, err := s.Settings().Get(store.SettingDryRun)
	if err != nil {
		t.Fatalf("dry run not stored: %v", err)
	}
	if v != "true" {
		t.Errorf("stored dry run = %q", v)
	}
}

func TestSettingsHandler_Update_Errors(t *testing.T) {
	s := newTestStore(t)
	handler := NewSettingsHandler(s, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"unknown profile", `{"active_profile":"missing"}`, http.StatusBadRequest},
		{"clear profile", `{"active_profile":""}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/settings", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
