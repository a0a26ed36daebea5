package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/pairclick/internal/store"
)

func newServerTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func getHealth(t *testing.T, s *Server) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestServer_Health(t *testing.T) {
	t.Run("bare server", func(t *testing.T) {
		response := getHealth(t, New(Config{}))

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, ok := response["uptime"]; !ok {
			t.Error("expected 'uptime' field in response")
		}
		for _, field := range []string{"dry_run", "templates", "clients", "last_solve"} {
			if _, ok := response[field]; ok {
				t.Errorf("unexpected %q field without its component", field)
			}
		}
	})

	t.Run("with store counts templates", func(t *testing.T) {
		st := newServerTestStore(t)
		st.Templates().Create(&store.Template{ID: "t1", Label: "apple", Width: 1, Height: 1, Image: []byte{0}})

		response := getHealth(t, New(Config{Store: st}))
		if response["templates"] != float64(1) {
			t.Errorf("templates = %v, want 1", response["templates"])
		}
	})

	t.Run("with hub reports clients", func(t *testing.T) {
		response := getHealth(t, New(Config{Events: NewHub()}))
		if response["clients"] != float64(0) {
			t.Errorf("clients = %v, want 0", response["clients"])
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		s := New(Config{})
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_Routes(t *testing.T) {
	st := newServerTestStore(t)

	tests := []struct {
		name   string
		config Config
		path   string
		status int
	}{
		{"templates need a store", Config{}, "/api/templates", http.StatusNotFound},
		{"templates with store", Config{Store: st}, "/api/templates", http.StatusOK},
		{"profiles with store", Config{Store: st}, "/api/profiles", http.StatusOK},
		{"settings with store", Config{Store: st}, "/api/settings", http.StatusOK},
		{"solve history with store", Config{Store: st}, "/api/solves", http.StatusOK},
		{"last solve without solver", Config{Store: st}, "/api/solve/last", http.StatusNotFound},
		{"capture needs a source", Config{Store: st}, "/api/capture", http.StatusNotFound},
		{"events need a hub", Config{Store: st}, "/api/events", http.StatusNotFound},
		{"unknown api path", Config{Store: st}, "/api/nonexistent", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			New(tt.config).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("GET %s: expected status %d, got %d", tt.path, tt.status, rec.Code)
			}
		})
	}
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"index.html": "<html><body>pairclick</body></html>",
		"app.js":     "connect('/api/events')",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}

	s := New(Config{StaticDir: dir})

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/", http.StatusOK, files["index.html"]},
		{"/app.js", http.StatusOK, files["app.js"]},
		{"/nonexistent.html", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if rec.Code != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.status, rec.Code)
		}
		if tt.body != "" && rec.Body.String() != tt.body {
			t.Errorf("%s: expected body %q, got %q", tt.path, tt.body, rec.Body.String())
		}
	}

	// Without a static dir the root is not served.
	rec := httptest.NewRecorder()
	New(Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("no static dir: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestNew(t *testing.T) {
	cfg := Config{StaticDir: "/some/path"}
	s := New(cfg)

	if s == nil {
		t.Fatal("expected non-nil server")
	}
	if s.config.StaticDir != cfg.StaticDir {
		t.Errorf("expected StaticDir %s, got %s", cfg.StaticDir, s.config.StaticDir)
	}

	var _ http.Handler = s
}
