package app

import (
	"context"
	"log"
	"time"
)

// DefaultInterval is the capture polling interval when none is configured.
const DefaultInterval = time.Second

// SetEnabled turns automatic solving on or off. While disabled the watch
// loop keeps running but ignores frames.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled reports whether automatic solving is on.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start opens the source and begins watching it for new boards.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if a.source == nil {
		return ErrNoSource
	}
	if !a.source.IsOpen() {
		if err := a.source.Open(); err != nil {
			return err
		}
	}

	interval := time.Duration(a.config.Capture.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = DefaultInterval
	}

	a.stopCh = make(chan struct{})
	go a.watch(a.stopCh, interval)

	log.Println("Watching for new boards")
	return nil
}

// Stop halts the watch loop.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
		log.Println("Stopped watching")
	}
}

// watch polls the source and solves each screenshot whose perceptual hash
// differs from the last one seen. An unchanged board is skipped, so cards
// still face up from the previous round are not clicked twice.
func (a *App) watch(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}
			a.step(ctx)
		}
	}
}

// step handles one polling tick and reports whether a solve ran.
func (a *App) step(ctx context.Context) bool {
	frame, err := a.source.ReadFrame()
	if err != nil {
		log.Printf("Error reading screenshot: %v", err)
		return false
	}
	defer frame.Close()

	changed, dist, err := a.change.Detect(frame)
	if err != nil {
		log.Printf("Error hashing screenshot: %v", err)
		return false
	}
	if !changed {
		return false
	}

	log.Printf("Board changed (distance %d), solving", dist)
	if _, err := a.SolveScene(ctx, frame); err != nil {
		log.Printf("Solve failed: %v", err)
		return false
	}
	return true
}
