package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"

	"gocv.io/x/gocv"
)

// Session memoises solve results for the lifetime of one play session,
// keyed by the exact pixel content of the screenshot. It replaces
// process-wide caches: each session owns its own and drops it when
// discarded.
type Session struct {
	engine *Engine

	mu      sync.Mutex
	results map[string]*Result
	hits    int
}

// NewSession creates a Session over engine.
func NewSession(engine *Engine) *Session {
	return &Session{
		engine:  engine,
		results: make(map[string]*Result),
	}
}

// Digest returns a SHA-256 of scene's size, type and pixel bytes. Two
// scenes share a digest only if they are pixel-identical. An empty scene
// yields "".
func Digest(scene *gocv.Mat) string {
	if scene == nil || scene.Empty() {
		return ""
	}
	m := *scene
	if !m.IsContinuous() {
		m = scene.Clone()
		defer m.Close()
	}

	h := sha256.New()
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(m.Rows()))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(m.Cols()))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(m.Type()))
	h.Write(hdr[:])
	h.Write(m.ToBytes())
	return hex.EncodeToString(h.Sum(nil))
}

// Solve returns the cached result for scene's content, or solves scene and
// caches the result. The bool reports a cache hit. Failed solves are not
// cached.
func (s *Session) Solve(scene *gocv.Mat) (*Result, bool, error) {
	key := Digest(scene)
	if key != "" {
		s.mu.Lock()
		if res, ok := s.results[key]; ok {
			s.hits++
			s.mu.Unlock()
			return res, true, nil
		}
		s.mu.Unlock()
	}

	res, err := s.engine.Solve(scene)
	if err != nil {
		return nil, false, err
	}

	if key != "" {
		s.mu.Lock()
		s.results[key] = res
		s.mu.Unlock()
	}
	return res, false, nil
}

// Hits returns how many solves were served from the cache.
func (s *Session) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

// Reset drops every cached result.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]*Result)
	s.hits = 0
}
