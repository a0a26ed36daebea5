// Package clicker hands solved pairs to an external click plugin. Plugins
// are separate executables speaking JSON over stdin and stdout, so the
// solver never injects OS input itself.
package clicker

import (
	"encoding/json"

	"github.com/ayusman/pairclick/internal/coords"
)

// ActionClickPairs is the plugin action that clicks each pair in order.
const ActionClickPairs = "click_pairs"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	Platforms    []string        `json:"platforms,omitempty"` // GOOS values; empty means any
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Pair is one pair of logical screen points to click, A first.
type Pair struct {
	A coords.Point `json:"a"`
	B coords.Point `json:"b"`
}

// Delays are the pauses a plugin waits, in milliseconds.
type Delays struct {
	// ClickMs is the pause between the two clicks of a pair.
	ClickMs int `json:"click_ms" yaml:"click_ms"`
	// PairMs is the pause after each pair, giving the game time to flip
	// cards back or remove them.
	PairMs int `json:"pair_ms" yaml:"pair_ms"`
}

// DefaultDelays returns the pacing used by the reference game.
func DefaultDelays() Delays {
	return Delays{ClickMs: 100, PairMs: 500}
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action string          `json:"action"`
	Pairs  []Pair          `json:"pairs"`
	Delays Delays          `json:"delays"`
	DryRun bool            `json:"dry_run"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the plugin runs on goos and implements action.
func (p *Plugin) Supports(goos, action string) bool {
	if len(p.Manifest.Platforms) > 0 && !declares(p.Manifest.Platforms, goos) {
		return false
	}
	return declares(p.Manifest.Actions, action)
}
