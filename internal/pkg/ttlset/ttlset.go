// Package ttlset es un set de claves que expiran solas (evicción perezosa).
package ttlset

import (
	"sync"
	"time"
)

type Set struct {
	mu    sync.Mutex
	until map[string]time.Time
	win   time.Duration
	now   func() time.Time

	lastSweep time.Time
}

func New(window time.Duration) *Set {
	return &Set{until: map[string]time.Time{}, win: window, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (s *Set) WithClock(now func() time.Time) *Set {
	s.now = now
	return s
}

// Add mete la clave por una ventana completa desde ahora.
func (s *Set) Add(key string) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
	s.until[key] = now.Add(s.win)
}

func (s *Set) Contains(key string) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.until[key]
	if !ok {
		return false
	}
	if !now.Before(until) {
		delete(s.until, key)
		return false
	}
	return true
}

// Allow devuelve false si la clave sigue vigente; si no, la registra y devuelve true.
func (s *Set) Allow(key string) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if until, ok := s.until[key]; ok && now.Before(until) {
		return false
	}
	s.sweepLocked(now)
	s.until[key] = now.Add(s.win)
	return true
}

func (s *Set) Remove(key string) {
	s.mu.Lock()
	delete(s.until, key)
	s.mu.Unlock()
}

func (s *Set) Len() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
	return len(s.until)
}

// barrido como mucho una vez por ventana, así el map no crece sin límite
func (s *Set) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.win {
		return
	}
	for k, until := range s.until {
		if !now.Before(until) {
			delete(s.until, k)
		}
	}
	s.lastSweep = now
}
