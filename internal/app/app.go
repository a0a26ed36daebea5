// Package app ties screenshot capture, the matching engine, solve history
// and the click plugins together into one running application.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/pairclick/internal/capture"
	"github.com/ayusman/pairclick/internal/clicker"
	"github.com/ayusman/pairclick/internal/config"
	"github.com/ayusman/pairclick/internal/engine"
	"github.com/ayusman/pairclick/internal/store"
)

// ErrNoSource is returned by SolveNow when no capture source is configured.
var ErrNoSource = errors.New("no capture source configured")

// Outcome is one solve as seen by the application: the engine result plus
// what happened when the clicks were handed to a plugin.
type Outcome struct {
	ID          string         `json:"id"`
	Result      *engine.Result `json:"result"`
	Fingerprint string         `json:"fingerprint"`
	Cached      bool           `json:"cached"`
	DryRun      bool           `json:"dry_run"`
	Clicked     int            `json:"clicked"`
	ClickError  string         `json:"click_error,omitempty"`
	At          time.Time      `json:"at"`
}

// App is the main application. It is safe for concurrent use.
type App struct {
	config    config.Config
	store     *store.Store
	source    capture.Source
	change    *capture.ChangeDetector
	plugins   *clicker.Manager
	sequencer *clicker.Sequencer

	mu        sync.RWMutex
	built     *built
	session   *engine.Session
	enabled   bool
	stopCh    chan struct{}
	last      *Outcome
	listeners []func(*Outcome)

	// solveMu serialises solves so clicks from two boards never interleave.
	solveMu sync.Mutex
}

// New creates an App. st and src may be nil; without a store nothing is
// persisted and without a source only SolveScene and SolveBytes work.
func New(cfg config.Config, st *store.Store, src capture.Source) *App {
	plugins := clicker.NewManager(cfg.Clicker.PluginDir)
	return &App{
		config:    cfg,
		store:     st,
		source:    src,
		change:    capture.NewChangeDetector(cfg.Capture.MaxDistance),
		plugins:   plugins,
		sequencer: clicker.NewSequencer(plugins, cfg.Clicker.Plugin, cfg.Clicker.Delays, cfg.Clicker.DryRun),
	}
}

// Init discovers plugins and builds the engine.
func (a *App) Init() error {
	if err := a.plugins.Discover(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	}
	for _, p := range a.plugins.List() {
		log.Printf("Found click plugin %s %s", p.Manifest.Name, p.Manifest.Version)
	}
	if a.store != nil && a.config.Store.KeepDays > 0 {
		n, err := a.store.Prune(time.Duration(a.config.Store.KeepDays) * 24 * time.Hour)
		if err != nil {
			log.Printf("Pruning solve history failed: %v", err)
		} else if n > 0 {
			log.Printf("Pruned %d old solves", n)
		}
	}
	return a.Reload()
}

// Reload rebuilds the engine from the config, the active profile and the
// template library, and starts a fresh solve session.
func (a *App) Reload() error {
	a.loadDryRun()

	b, err := a.build()
	if err != nil {
		return err
	}

	a.mu.Lock()
	old := a.built
	a.built = b
	a.session = engine.NewSession(b.engine)
	a.mu.Unlock()

	a.change.Reset()
	if old != nil {
		old.Close()
	}
	log.Printf("Engine ready: %s mode, threshold %.2f", b.engine.Strategy().Mode(), b.threshold)
	return nil
}

// Engine returns the current engine, or nil before Init.
func (a *App) Engine() *engine.Engine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.built == nil {
		return nil
	}
	return a.built.engine
}

// Profile returns the name of the coordinate profile in use, if any.
func (a *App) Profile() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.built == nil || a.built.profile == nil {
		return ""
	}
	return a.built.profile.Name
}

// Source returns the capture source, which may be nil.
func (a *App) Source() capture.Source { return a.source }

// Plugins returns the click plugin manager.
func (a *App) Plugins() *clicker.Manager { return a.plugins }

// SolveNow reads the current screenshot from the source and solves it.
func (a *App) SolveNow(ctx context.Context) (*Outcome, error) {
	if a.source == nil {
		return nil, ErrNoSource
	}
	if !a.source.IsOpen() {
		if err := a.source.Open(); err != nil {
			return nil, err
		}
	}

	frame, err := a.source.ReadFrame()
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	return a.SolveScene(ctx, frame)
}

// SolveBytes decodes an encoded screenshot and solves it.
func (a *App) SolveBytes(ctx context.Context, data []byte) (*Outcome, error) {
	scene, err := capture.Decode(data)
	if err != nil {
		return nil, err
	}
	defer scene.Close()

	return a.SolveScene(ctx, scene)
}

// SolveScene solves scene, records it, and sends the clicks to the plugin.
// A click failure is reported on the Outcome; the solve itself stands.
func (a *App) SolveScene(ctx context.Context, scene *gocv.Mat) (*Outcome, error) {
	a.mu.RLock()
	session := a.session
	a.mu.RUnlock()
	if session == nil {
		return nil, errors.New("engine not initialised")
	}

	a.solveMu.Lock()
	defer a.solveMu.Unlock()

	res, cached, err := session.Solve(scene)
	if err != nil {
		return nil, err
	}

	// The perceptual fingerprint labels history entries; it never keys the cache.
	fp, _ := capture.Fingerprint(scene)

	out := &Outcome{
		ID:          uuid.New().String(),
		Result:      res,
		Fingerprint: fp,
		Cached:      cached,
		DryRun:      a.sequencer.DryRun(),
		At:          time.Now(),
	}

	resp, err := a.sequencer.Run(ctx, res.Clicks)
	if err != nil {
		out.ClickError = err.Error()
		log.Printf("Click plugin failed: %v", err)
	} else if resp != nil && resp.Success {
		out.Clicked = len(res.Clicks)
	}

	a.record(out)

	a.mu.Lock()
	a.last = out
	listeners := make([]func(*Outcome), len(a.listeners))
	copy(listeners, a.listeners)
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(out)
	}
	return out, nil
}

// record stores out in the solve history. Storage failures are logged.
func (a *App) record(out *Outcome) {
	if a.store == nil {
		return
	}

	res := out.Result
	unmatched, _ := json.Marshal(res.Summary.UnmatchedIDs)
	pairs, _ := json.Marshal(res.Clicks)
	warnings, _ := json.Marshal(res.Warnings)

	s := &store.Solve{
		ID:            out.ID,
		Mode:          string(res.Mode),
		Fingerprint:   out.Fingerprint,
		ExpectedPairs: res.Summary.ExpectedPairs,
		FoundPairs:    res.Summary.FoundPairs,
		Unmatched:     unmatched,
		Pairs:         pairs,
		Warnings:      warnings,
		DryRun:        out.DryRun,
		CreatedAt:     out.At,
	}

	a.mu.RLock()
	if a.built != nil && a.built.profile != nil {
		s.ProfileID = a.built.profile.ID
	}
	a.mu.RUnlock()

	if err := a.store.Solves().Create(s); err != nil {
		log.Printf("Failed to record solve %s: %v", out.ID, err)
	}
}

// OnSolve registers fn to be called after every successful solve.
func (a *App) OnSolve(fn func(*Outcome)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Last returns the most recent outcome, or nil.
func (a *App) Last() *Outcome {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

// SetDryRun toggles dry-run mode and persists it when a store is present.
func (a *App) SetDryRun(dryRun bool) {
	a.sequencer.SetDryRun(dryRun)
	if a.store != nil {
		if err := a.store.Settings().Set(store.SettingDryRun, strconv.FormatBool(dryRun)); err != nil {
			log.Printf("Failed to save dry-run setting: %v", err)
		}
	}
}

// OverrideDryRun sets dry-run mode for this process only.
func (a *App) OverrideDryRun(dryRun bool) {
	a.sequencer.SetDryRun(dryRun)
}

// DryRun reports whether clicks are simulated.
func (a *App) DryRun() bool {
	return a.sequencer.DryRun()
}

// loadDryRun applies the stored dry-run setting over the config value.
func (a *App) loadDryRun() {
	if a.store == nil {
		return
	}
	v, err := a.store.Settings().GetOr(store.SettingDryRun, "")
	if err != nil || v == "" {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		a.sequencer.SetDryRun(b)
	}
}

// Close stops the watch loop and releases the engine.
func (a *App) Close() error {
	a.Stop()

	a.mu.Lock()
	b := a.built
	a.built = nil
	a.session = nil
	a.mu.Unlock()

	if b != nil {
		b.Close()
	}
	if a.source != nil && a.source.IsOpen() {
		if err := a.source.Close(); err != nil {
			return fmt.Errorf("close source: %w", err)
		}
	}
	return nil
}
