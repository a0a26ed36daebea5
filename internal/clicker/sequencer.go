package clicker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/pairclick/internal/engine"
)

// DefaultTimeoutMs is the plugin timeout before the click delays are added.
const DefaultTimeoutMs = 5000

// Sequencer turns a solve result into one click_pairs request and runs it
// on the selected plugin. The engine's output is forwarded unchanged;
// DryRun is passed to the plugin and never alters the pairs.
type Sequencer struct {
	manager   *Manager
	plugin    string
	baseMs    int
	delays    Delays
	mu        sync.RWMutex
	dryRun    bool
	lastCount int
}

// NewSequencer creates a Sequencer. plugin names a specific plugin; empty
// picks the first one manager found for its platform.
func NewSequencer(manager *Manager, plugin string, delays Delays, dryRun bool) *Sequencer {
	return &Sequencer{
		manager: manager,
		plugin:  plugin,
		baseMs:  DefaultTimeoutMs,
		delays:  delays,
		dryRun:  dryRun,
	}
}

// SetDryRun toggles dry-run mode.
func (s *Sequencer) SetDryRun(dryRun bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dryRun = dryRun
}

// DryRun reports whether dry-run mode is on.
func (s *Sequencer) DryRun() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dryRun
}

// BuildRequest converts clicks into a plugin request, preserving order.
func (s *Sequencer) BuildRequest(clicks []engine.Click) *Request {
	pairs := make([]Pair, len(clicks))
	for i, c := range clicks {
		pairs[i] = Pair{A: c.A, B: c.B}
	}
	return &Request{
		Action: ActionClickPairs,
		Pairs:  pairs,
		Delays: s.delays,
		DryRun: s.DryRun(),
	}
}

// timeoutFor allows the base timeout plus every delay the plugin will sleep.
func (s *Sequencer) timeoutFor(n int) int {
	return s.baseMs + n*(s.delays.ClickMs+s.delays.PairMs)
}

// Run sends clicks to the plugin. With no plugin available, a dry run logs
// the intended clicks and succeeds; a live run returns ErrPluginNotFound.
func (s *Sequencer) Run(ctx context.Context, clicks []engine.Click) (*Response, error) {
	if len(clicks) == 0 {
		return &Response{Success: true}, nil
	}

	req := s.BuildRequest(clicks)

	plugin, err := s.manager.Select(s.plugin)
	if errors.Is(err, ErrPluginNotFound) {
		for i, p := range req.Pairs {
			log.Printf("Pair %d: click %s then %s", i+1, p.A, p.B)
		}
		if req.DryRun {
			return &Response{Success: true}, nil
		}
		return nil, fmt.Errorf("no click plugin for %s: %w", s.manager.GOOS(), err)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("Sending %d pairs to %s (dry run: %v)", len(req.Pairs), plugin.Manifest.Name, req.DryRun)
	resp, err := NewExecutor(s.timeoutFor(len(req.Pairs))).ExecuteContext(ctx, plugin, req)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return resp, fmt.Errorf("plugin %s: %s", plugin.Manifest.Name, resp.Error)
	}

	s.mu.Lock()
	s.lastCount = len(req.Pairs)
	s.mu.Unlock()
	return resp, nil
}

// LastCount returns how many pairs the last successful run sent.
func (s *Sequencer) LastCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCount
}
