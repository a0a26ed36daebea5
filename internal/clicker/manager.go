package clicker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// ErrPluginNotFound is returned when no usable click plugin matches a request.
var ErrPluginNotFound = errors.New("plugin not found")

// ManifestFile is the manifest each plugin directory carries.
const ManifestFile = "plugin.json"

// Manager finds the click plugins usable on one platform. Discovery keeps a
// plugin only if its manifest declares click_pairs and lists the platform
// (or no platforms); everything else is recorded with the reason it was
// passed over.
type Manager struct {
	pluginDir string
	goos      string

	mu       sync.RWMutex
	clickers []*Plugin
	rejected map[string]string
}

// NewManager creates a Manager for the running platform.
func NewManager(pluginDir string) *Manager {
	return NewManagerFor(pluginDir, runtime.GOOS)
}

// NewManagerFor creates a Manager that selects plugins for goos.
func NewManagerFor(pluginDir, goos string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		goos:      goos,
		rejected:  make(map[string]string),
	}
}

// Discover rescans the plugin directory. Each subdirectory holding a
// plugin.json is a candidate. A missing directory yields no plugins.
func (m *Manager) Discover() error {
	clickers, rejected, err := m.scan()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.clickers = clickers
	m.rejected = rejected
	m.mu.Unlock()

	for dir, reason := range rejected {
		log.Printf("Skipping plugin %s: %s", dir, reason)
	}
	return nil
}

func (m *Manager) scan() ([]*Plugin, map[string]string, error) {
	rejected := make(map[string]string)

	entries, err := os.ReadDir(m.pluginDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, rejected, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading plugin dir: %w", err)
	}

	byName := make(map[string]*Plugin)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.pluginDir, entry.Name())
		p, err := loadPlugin(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			rejected[entry.Name()] = err.Error()
			continue
		}
		if !p.Supports(m.goos, ActionClickPairs) {
			rejected[entry.Name()] = fmt.Sprintf("does not run on %s (platforms %s)",
				m.goos, strings.Join(p.Manifest.Platforms, ", "))
			continue
		}
		if prev, ok := byName[p.Manifest.Name]; ok {
			rejected[entry.Name()] = fmt.Sprintf("name %q already used by %s", p.Manifest.Name, prev.Path)
			continue
		}
		byName[p.Manifest.Name] = p
	}

	clickers := make([]*Plugin, 0, len(byName))
	for _, p := range byName {
		clickers = append(clickers, p)
	}
	sort.Slice(clickers, func(i, j int) bool { return clickers[i].Manifest.Name < clickers[j].Manifest.Name })
	return clickers, rejected, nil
}

// loadPlugin reads and checks the manifest in dir. A directory without a
// manifest returns an os.ErrNotExist error.
func loadPlugin(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %v", err)
	}
	if manifest.Name == "" {
		return nil, errors.New("manifest has no name")
	}
	if manifest.Executable == "" {
		return nil, errors.New("manifest has no executable")
	}
	exe := filepath.Join(dir, manifest.Executable)
	if rel, err := filepath.Rel(dir, exe); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("executable %q is outside the plugin directory", manifest.Executable)
	}
	if !declares(manifest.Actions, ActionClickPairs) {
		return nil, fmt.Errorf("does not declare %s", ActionClickPairs)
	}

	return &Plugin{Manifest: manifest, Path: dir, Executable: exe}, nil
}

func declares(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// Select returns the plugin called name, or the first usable plugin by name
// when name is empty. Asking for a plugin that discovery passed over reports
// why.
func (m *Manager) Select(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		if len(m.clickers) == 0 {
			return nil, ErrPluginNotFound
		}
		return m.clickers[0], nil
	}

	for _, p := range m.clickers {
		if p.Manifest.Name == name {
			return p, nil
		}
	}
	if reason, ok := m.rejected[name]; ok {
		return nil, fmt.Errorf("%w: %s: %s", ErrPluginNotFound, name, reason)
	}
	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// List returns the usable plugins ordered by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Plugin, len(m.clickers))
	copy(out, m.clickers)
	return out
}

// Rejected returns the plugin directories discovery skipped, with reasons.
func (m *Manager) Rejected() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.rejected))
	for k, v := range m.rejected {
		out[k] = v
	}
	return out
}

// GOOS returns the platform plugins are selected for.
func (m *Manager) GOOS() string { return m.goos }

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
