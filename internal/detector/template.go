package detector

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/pairclick/internal/report"
)

// ErrNoTemplates is wrapped in a LoadError when a template library is empty.
var ErrNoTemplates = errors.New("no templates")

// templateExts lists the file extensions recognised as template images.
var templateExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Template is a reference image of a single card face. It is read-only
// once loaded; Close releases the image.
type Template struct {
	ID     int
	Label  string
	Image  gocv.Mat
	Width  int
	Height int
}

// NewTemplate wraps img as a template. The template takes ownership of img.
func NewTemplate(id int, label string, img gocv.Mat) (*Template, error) {
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("template %s: empty image", label)
	}
	return &Template{
		ID:     id,
		Label:  label,
		Image:  img,
		Width:  img.Cols(),
		Height: img.Rows(),
	}, nil
}

// DecodeTemplate builds a template from encoded PNG or JPEG bytes.
func DecodeTemplate(id int, label string, data []byte) (*Template, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode template %s: %w", label, err)
	}
	return NewTemplate(id, label, img)
}

// Close releases the template image.
func (t *Template) Close() error {
	return t.Image.Close()
}

// LoadDir loads every PNG/JPEG in dir as a template. Files are taken in name
// order and numbered from 0, so ids are stable across runs. Unreadable files
// are skipped; an empty result is a LoadError.
func LoadDir(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, report.NewLoadError(dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !templateExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var templates []*Template
	for _, name := range names {
		img := gocv.IMRead(filepath.Join(dir, name), gocv.IMReadColor)
		t, err := NewTemplate(len(templates), name, img)
		if err != nil {
			log.Printf("Skipping template %s: %v", name, err)
			continue
		}
		templates = append(templates, t)
	}

	if len(templates) == 0 {
		return nil, report.NewLoadError(dir, ErrNoTemplates)
	}

	log.Printf("Loaded %d card templates from %s", len(templates), dir)
	return templates, nil
}

// CloseAll releases every template in ts.
func CloseAll(ts []*Template) {
	for _, t := range ts {
		if t != nil {
			t.Close()
		}
	}
}
