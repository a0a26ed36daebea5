package api

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/pairclick/internal/app"
	"github.com/ayusman/pairclick/internal/engine"
	"github.com/ayusman/pairclick/internal/report"
	"github.com/ayusman/pairclick/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "pairclick-api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// fakeSolver records calls and returns a canned outcome or error.
type fakeSolver struct {
	mu       sync.Mutex
	outcome  *app.Outcome
	err      error
	last     *app.Outcome
	dryRun   bool
	reloads  int
	uploaded []byte
	nowCalls int
}

func newFakeSolver() *fakeSolver {
	return &fakeSolver{
		outcome: &app.Outcome{
			ID: "solve-1",
			Result: &engine.Result{
				Mode:    engine.ModeGrid,
				Summary: report.Summary{ExpectedPairs: 2, FoundPairs: 2},
			},
			At: time.Now(),
		},
	}
}

func (f *fakeSolver) SolveBytes(ctx context.Context, data []byte) (*app.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = data
	if f.err != nil {
		return nil, f.err
	}
	f.last = f.outcome
	return f.outcome, nil
}

func (f *fakeSolver) SolveNow(ctx context.Context) (*app.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nowCalls++
	if f.err != nil {
		return nil, f.err
	}
	f.last = f.outcome
	return f.outcome, nil
}

func (f *fakeSolver) Last() *app.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeSolver) DryRun() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dryRun
}

func (f *fakeSolver) SetDryRun(dryRun bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dryRun = dryRun
}

func (f *fakeSolver) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return nil
}

func (f *fakeSolver) Reloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads
}
