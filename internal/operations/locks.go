package operations

import (
	"path/filepath"
	"strings"
	"sync"
)

// StemLocks serializes runs whose documents share a file stem, since the
// pipeline writes one processed text file per stem.
type StemLocks struct {
	mu    sync.Mutex
	locks map[string]*stemLock
}

type stemLock struct {
	mu   sync.Mutex
	refs int
}

// NewStemLocks returns an empty lock set.
func NewStemLocks() *StemLocks {
	return &StemLocks{locks: make(map[string]*stemLock)}
}

// Lock blocks until no other run holds the stem of name and returns the
// function that releases it.
func (s *StemLocks) Lock(name string) func() {
	key := stem(name)

	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &stemLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
