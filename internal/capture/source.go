// Package capture provides screenshots of the game board using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/pairclick/internal/report"
)

var (
	// ErrSourceNotOpen is returned when reading from a source that is not open.
	ErrSourceNotOpen = errors.New("source is not open")
	// ErrNoScreenshot is returned when a directory holds no screenshot yet.
	ErrNoScreenshot = errors.New("no screenshot available")
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Source defines the interface for screenshot providers.
type Source interface {
	Open() error
	Close() error
	// ReadFrame returns the current screenshot as a BGR Mat.
	// The caller is responsible for closing it.
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool
}

// Load reads an image file into a BGR Mat. An unreadable file is a LoadError.
func Load(path string) (*gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, report.NewLoadError(path, err)
	}
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, report.NewLoadError(path, fmt.Errorf("not a decodable image"))
	}
	return &mat, nil
}

// Decode decodes PNG or JPEG bytes into a BGR Mat. Undecodable data is a
// LoadError.
func Decode(data []byte) (*gocv.Mat, error) {
	if len(data) == 0 {
		return nil, report.NewLoadError("upload", fmt.Errorf("no image data"))
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, report.NewLoadError("upload", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, report.NewLoadError("upload", fmt.Errorf("not a decodable image"))
	}
	return &mat, nil
}

// Newest returns the most recently modified image in dir. Ties go to the
// lexically greater name.
func Newest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var best string
	var bestInfo os.FileInfo
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if bestInfo == nil ||
			info.ModTime().After(bestInfo.ModTime()) ||
			(info.ModTime().Equal(bestInfo.ModTime()) && e.Name() > best) {
			best, bestInfo = e.Name(), info
		}
	}

	if bestInfo == nil {
		return "", fmt.Errorf("%w in %s", ErrNoScreenshot, dir)
	}
	return filepath.Join(dir, best), nil
}

// fileSource serves the same image file on every read. The file is re-read
// each time so an external tool can overwrite it.
type fileSource struct {
	path    string
	mu      sync.Mutex
	running bool
}

// NewFileSource creates a Source backed by a single image file.
func NewFileSource(path string) Source {
	return &fileSource{path: path}
}

func (s *fileSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	return nil
}

func (s *fileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *fileSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrSourceNotOpen
	}
	return Load(s.path)
}

func (s *fileSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// dirSource serves the newest screenshot in a directory, which is where
// OS screenshot tools drop their files.
type dirSource struct {
	dir     string
	mu      sync.Mutex
	running bool
}

// NewDirSource creates a Source that reads the newest image in dir.
func NewDirSource(dir string) Source {
	return &dirSource{dir: dir}
}

func (s *dirSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	s.running = true
	return nil
}

func (s *dirSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *dirSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrSourceNotOpen
	}

	path, err := Newest(s.dir)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

func (s *dirSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
