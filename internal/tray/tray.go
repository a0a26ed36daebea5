// Package tray provides a system tray interface for the pairclick solver.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/pairclick/internal/app"
)

// Tray represents the system tray application.
type Tray struct {
	onWatch    func(enabled bool)
	onSolve    func()
	onDryRun   func(dryRun bool)
	onSettings func()
	onQuit     func()
	watching   bool
	dryRun     bool
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuWatch  *systray.MenuItem
	menuDryRun *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a new Tray. Watching starts off; dryRun is the initial
// state of the dry-run checkbox.
func New(dryRun bool) *Tray {
	return &Tray{dryRun: dryRun}
}

// OnWatch sets the callback for the watch toggle.
func (t *Tray) OnWatch(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onWatch = fn
}

// OnSolve sets the callback for "Solve now".
func (t *Tray) OnSolve(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSolve = fn
}

// OnDryRun sets the callback for the dry-run checkbox.
func (t *Tray) OnDryRun(fn func(dryRun bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDryRun = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle("Pairclick")
	systray.SetTooltip("Pairclick card matcher")

	t.mu.Lock()
	t.menuWatch = systray.AddMenuItem(watchTitle(t.watching), "Solve whenever the board changes")
	menuSolve := systray.AddMenuItem("Solve now", "Capture and solve the board once")
	t.menuDryRun = systray.AddMenuItemCheckbox("Dry run", "Log the planned clicks without clicking", t.dryRun)
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem("Last: none", "Last solve")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Pairclick")

	go func() {
		for {
			select {
			case <-t.menuWatch.ClickedCh:
				t.handleWatch()
			case <-menuSolve.ClickedCh:
				t.handleSolve()
			case <-t.menuDryRun.ClickedCh:
				t.handleDryRun()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func watchTitle(watching bool) string {
	if watching {
		return "● Watching"
	}
	return "○ Paused"
}

func (t *Tray) handleSolve() {
	t.mu.RLock()
	callback := t.onSolve
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

func (t *Tray) handleWatch() {
	t.mu.Lock()
	t.watching = !t.watching
	watching := t.watching
	t.menuWatch.SetTitle(watchTitle(watching))
	callback := t.onWatch
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(watching)
	}
}

func (t *Tray) handleDryRun() {
	t.mu.Lock()
	t.dryRun = !t.dryRun
	dryRun := t.dryRun
	if dryRun {
		t.menuDryRun.Check()
	} else {
		t.menuDryRun.Uncheck()
	}
	callback := t.onDryRun
	t.mu.Unlock()

	if callback != nil {
		callback(dryRun)
	}
}

// SetLast updates the last-solve line in the menu.
func (t *Tray) SetLast(text string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLast != nil {
		if text == "" {
			t.menuLast.SetTitle("Last: none")
		} else {
			t.menuLast.SetTitle("Last: " + text)
		}
	}
}

// SetWatching sets the watch state without calling OnWatch.
func (t *Tray) SetWatching(watching bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.watching = watching
	if t.menuWatch != nil {
		t.menuWatch.SetTitle(watchTitle(watching))
	}
}

// IsWatching returns the current watch state.
func (t *Tray) IsWatching() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.watching
}

// Describe renders an outcome as a one-line menu label.
func Describe(o *app.Outcome) string {
	if o == nil || o.Result == nil {
		return ""
	}
	s := o.Result.Summary
	text := fmt.Sprintf("%d/%d pairs", s.FoundPairs, s.ExpectedPairs)
	switch {
	case o.ClickError != "":
		text += ", click failed"
	case o.DryRun:
		text += ", dry run"
	default:
		text += fmt.Sprintf(", %d clicked", o.Clicked)
	}
	if o.Cached {
		text += " (cached)"
	}
	return text + " at " + o.At.Format("15:04:05")
}
