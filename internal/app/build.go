package app

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ayusman/pairclick/internal/coords"
	"github.com/ayusman/pairclick/internal/detector"
	"github.com/ayusman/pairclick/internal/engine"
	"github.com/ayusman/pairclick/internal/grid"
	"github.com/ayusman/pairclick/internal/report"
	"github.com/ayusman/pairclick/internal/store"
	"github.com/ayusman/pairclick/internal/vision"
)

// built is one engine configuration and the resources it owns.
type built struct {
	engine    *engine.Engine
	mapper    *coords.Mapper
	detector  detector.Detector
	profile   *store.Profile
	threshold float64
}

// Close releases the detector's templates.
func (b *built) Close() {
	if b.detector != nil {
		if err := b.detector.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}
}

// build assembles an engine. Values from the active profile override the
// config file.
func (a *App) build() (*built, error) {
	cfg := a.config
	profile, err := a.activeProfile()
	if err != nil {
		return nil, err
	}

	mode := engine.Mode(cfg.Engine.Mode)
	rows, cols := cfg.Grid.Rows, cfg.Grid.Cols
	threshold := cfg.Threshold()
	anchor := cfg.Coords.Anchor
	spacing := cfg.Coords.Spacing

	if cfg.Coords.OffsetsFile != "" {
		if anchor, err = offsetsAnchor(cfg.Coords.OffsetsFile, cfg.Coords.AnchorScreen, anchor.Scale); err != nil {
			return nil, err
		}
	}

	if profile != nil {
		mode = engine.Mode(profile.Mode)
		if profile.Rows > 0 && profile.Cols > 0 {
			rows, cols = profile.Rows, profile.Cols
		}
		anchor = coords.Anchor{Reference: coords.Point{X: profile.AnchorX, Y: profile.AnchorY}, Scale: profile.Scale}
		spacing = coords.Spacing{Horizontal: profile.HSpacing, Vertical: profile.VSpacing}
		if profile.Threshold > 0 {
			threshold = profile.Threshold
		}
	}

	mapper, err := coords.NewMapper(anchor, spacing)
	if err != nil {
		return nil, err
	}

	b := &built{mapper: mapper, profile: profile, threshold: threshold}
	var strategy engine.Strategy

	switch mode {
	case engine.ModeGrid:
		s := engine.NewGridStrategy(rows, cols)
		s.Extractor = vision.NewExtractor(cfg.Vision())
		strategy = s

	case engine.ModeTemplate:
		templates, err := a.loadTemplates()
		if err != nil {
			return nil, err
		}
		d, err := detector.NewTemplateDetector(cfg.Detector(), templates)
		if err != nil {
			detector.CloseAll(templates)
			return nil, err
		}
		b.detector = d

		s := engine.NewTemplateStrategy(d)
		s.Resolver = grid.NewResolver(cfg.Template.RowTolerance)
		s.Resolver.ExpectedRows = cfg.Template.ExpectedRows
		s.Resolver.ExpectedCols = cfg.Template.ExpectedCols
		strategy = s

	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	opts := cfg.EngineOptions()
	opts.Threshold = threshold
	b.engine = engine.New(strategy, mapper, opts)
	return b, nil
}

// activeProfile returns the profile named by the active_profile setting,
// looked up by id and then by name. No store or no setting means none.
func (a *App) activeProfile() (*store.Profile, error) {
	if a.store == nil {
		return nil, nil
	}
	key, err := a.store.Settings().GetOr(store.SettingActiveProfile, "")
	if err != nil || key == "" {
		return nil, err
	}

	p, err := a.store.Profiles().GetByID(key)
	if errors.Is(err, store.ErrNotFound) {
		p, err = a.store.Profiles().GetByName(key)
	}
	if err != nil {
		return nil, fmt.Errorf("active profile %q: %w", key, err)
	}
	return p, nil
}

// loadTemplates reads the template library from the store, falling back to
// the configured directory when the store holds none.
func (a *App) loadTemplates() ([]*detector.Template, error) {
	if a.store != nil {
		stored, err := a.store.Templates().List(true)
		if err != nil {
			return nil, err
		}
		var templates []*detector.Template
		for _, st := range stored {
			t, err := detector.DecodeTemplate(len(templates), st.Label, st.Image)
			if err != nil {
				log.Printf("Skipping stored template %s: %v", st.Label, err)
				continue
			}
			templates = append(templates, t)
		}
		if len(templates) > 0 {
			log.Printf("Loaded %d card templates from the store", len(templates))
			return templates, nil
		}
	}

	if a.config.Template.Dir == "" {
		return nil, report.NewLoadError("template library", detector.ErrNoTemplates)
	}
	return detector.LoadDir(a.config.Template.Dir)
}

// offsetsAnchor derives the grid anchor from an offsets file and the
// physical screen position of the anchor element.
func offsetsAnchor(path string, anchorScreen coords.Point, scale float64) (coords.Anchor, error) {
	f, err := os.Open(path)
	if err != nil {
		return coords.Anchor{}, fmt.Errorf("offsets: %w", err)
	}
	defer f.Close()

	offsets, err := coords.ParseOffsets(f)
	if err != nil {
		return coords.Anchor{}, fmt.Errorf("offsets %s: %w", path, err)
	}
	session, err := coords.NewSession(anchorScreen, scale, offsets)
	if err != nil {
		return coords.Anchor{}, err
	}
	return session.GridAnchor(coords.GridTopLeftName)
}
