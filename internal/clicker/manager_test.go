package clicker

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, root string, m Manifest) string {
	t.Helper()
	manifestBytes, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	return writeRawManifest(t, root, m.Name, string(manifestBytes))
}

func writeRawManifest(t *testing.T, root, dir, content string) string {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, ManifestFile), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	pluginDir := writeManifest(t, tmpDir, Manifest{
		Name:        "cliclick",
		Version:     "1.0.0",
		Description: "Clicks pairs with cliclick",
		Executable:  "cliclick-plugin",
		Actions:     []string{ActionClickPairs},
		Platforms:   []string{"darwin"},
	})

	manager := NewManagerFor(tmpDir, "darwin")
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, plugin.Path)
	}
	if plugin.Executable != filepath.Join(pluginDir, "cliclick-plugin") {
		t.Errorf("unexpected executable %q", plugin.Executable)
	}
	if got, err := manager.Select("cliclick"); err != nil || got != plugin {
		t.Errorf("Select(cliclick) = %v, %v", got, err)
	}
	if len(manager.Rejected()) != 0 {
		t.Errorf("Rejected() = %v, want none", manager.Rejected())
	}
}

func TestManager_Discover_Rejects(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "xdotool", Executable: "x", Actions: []string{ActionClickPairs}, Platforms: []string{"linux"}})

	tests := []struct {
		dir      string
		manifest string
		reason   string
	}{
		{"garbled", "not valid json", "invalid manifest"},
		{"nameless", `{"executable":"run","actions":["click_pairs"]}`, "no name"},
		{"noexec", `{"name":"noexec","actions":["click_pairs"]}`, "no executable"},
		{"escape", `{"name":"escape","executable":"../../bin/sh","actions":["click_pairs"]}`, "outside the plugin directory"},
		{"keyboard", `{"name":"keyboard","executable":"k","actions":["keystroke"]}`, "does not declare click_pairs"},
		{"cliclick", `{"name":"cliclick","executable":"c","actions":["click_pairs"],"platforms":["darwin"]}`, "does not run on linux"},
		{"xdotool-copy", `{"name":"xdotool","executable":"x","actions":["click_pairs"]}`, "already used"},
	}
	for _, tt := range tests {
		writeRawManifest(t, tmpDir, tt.dir, tt.manifest)
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, "no-manifest"), 0755); err != nil {
		t.Fatal(err)
	}

	manager := NewManagerFor(tmpDir, "linux")
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed unexpectedly: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 || plugins[0].Manifest.Name != "xdotool" || plugins[0].Path != filepath.Join(tmpDir, "xdotool") {
		t.Fatalf("List() = %v, want only xdotool", plugins)
	}

	rejected := manager.Rejected()
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			if !strings.Contains(rejected[tt.dir], tt.reason) {
				t.Errorf("rejected[%s] = %q, want it to contain %q", tt.dir, rejected[tt.dir], tt.reason)
			}
		})
	}
	if _, ok := rejected["no-manifest"]; ok {
		t.Error("a directory without a manifest is not a plugin and should not be reported")
	}
}

func TestManager_Discover_Rescan(t *testing.T) {
	tmpDir := t.TempDir()
	dir := writeManifest(t, tmpDir, Manifest{Name: "xdotool", Executable: "x", Actions: []string{ActionClickPairs}})

	manager := NewManagerFor(tmpDir, "linux")
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}
	if len(manager.List()) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(manager.List()))
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}
	if len(manager.List()) != 0 {
		t.Errorf("removed plugin still listed: %v", manager.List())
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager("/path/that/does/not/exist")
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Select(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "xdotool", Executable: "x", Actions: []string{ActionClickPairs}, Platforms: []string{"linux"}})
	writeManifest(t, tmpDir, Manifest{Name: "cliclick", Executable: "c", Actions: []string{ActionClickPairs}, Platforms: []string{"darwin"}})
	writeManifest(t, tmpDir, Manifest{Name: "anywhere", Executable: "a", Actions: []string{ActionClickPairs}})

	tests := []struct {
		name    string
		goos    string
		plugin  string
		want    string
		wantErr string
	}{
		{name: "first by name on linux", goos: "linux", want: "anywhere"},
		{name: "explicit linux plugin", goos: "linux", plugin: "xdotool", want: "xdotool"},
		{name: "explicit darwin plugin", goos: "darwin", plugin: "cliclick", want: "cliclick"},
		{name: "plugin for another platform", goos: "linux", plugin: "cliclick", wantErr: "does not run on linux"},
		{name: "unknown plugin", goos: "linux", plugin: "robot", wantErr: "robot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManagerFor(tmpDir, tt.goos)
			if err := manager.Discover(); err != nil {
				t.Fatalf("Discover() failed: %v", err)
			}

			got, err := manager.Select(tt.plugin)
			if tt.wantErr != "" {
				if !errors.Is(err, ErrPluginNotFound) || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Select() error = %v, want ErrPluginNotFound mentioning %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if got.Manifest.Name != tt.want {
				t.Errorf("Select() = %q, want %q", got.Manifest.Name, tt.want)
			}
		})
	}

	empty := NewManagerFor(t.TempDir(), "windows")
	if _, err := empty.Select(""); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Select() on empty manager error = %v, want ErrPluginNotFound", err)
	}
}

func TestPlugin_Supports(t *testing.T) {
	tests := []struct {
		name      string
		platforms []string
		actions   []string
		goos      string
		want      bool
	}{
		{name: "any platform", actions: []string{ActionClickPairs}, goos: "linux", want: true},
		{name: "listed platform", platforms: []string{"darwin"}, actions: []string{ActionClickPairs}, goos: "darwin", want: true},
		{name: "unlisted platform", platforms: []string{"darwin"}, actions: []string{ActionClickPairs}, goos: "linux", want: false},
		{name: "missing action", actions: []string{"keystroke"}, goos: "linux", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Plugin{Manifest: Manifest{Platforms: tt.platforms, Actions: tt.actions}}
			if got := p.Supports(tt.goos, ActionClickPairs); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManager_Accessors(t *testing.T) {
	manager := NewManagerFor("/path/to/plugins", "darwin")
	if manager.PluginDir() != "/path/to/plugins" {
		t.Errorf("PluginDir() = %q", manager.PluginDir())
	}
	if manager.GOOS() != "darwin" {
		t.Errorf("GOOS() = %q, want darwin", manager.GOOS())
	}
}
