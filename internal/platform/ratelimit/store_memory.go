package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemory implements Limiter with a per-key sliding window. It is not
// shared between processes; use Redis when more than one instance runs.
//
// Keys whose newest hit has left its window are swept at most once per
// window, so idle clients do not accumulate.
type InMemory struct {
	mu        sync.Mutex
	windows   map[string]*hitLog
	nextSweep time.Time
	now       func() time.Time
}

type hitLog struct {
	hits   []time.Time
	window time.Duration
}

func NewInMemory() *InMemory {
	return &InMemory{windows: make(map[string]*hitLog), now: time.Now}
}

func (s *InMemory) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now, window)

	log, ok := s.windows[key]
	if !ok {
		log = &hitLog{}
		s.windows[key] = log
	}
	log.window = window

	cutoff := now.Add(-window)
	kept := log.hits[:0]
	for _, t := range log.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	resetAt := now.Add(window)
	if len(kept) > 0 {
		resetAt = kept[0].Add(window)
	}

	if len(kept) >= limit {
		log.hits = kept
		return &Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}, nil
	}

	log.hits = append(kept, now)
	return &Result{Allowed: true, Limit: limit, Remaining: limit - len(log.hits), ResetAt: resetAt}, nil
}

// sweep drops keys with no hit inside their window. Caller holds mu.
func (s *InMemory) sweep(now time.Time, window time.Duration) {
	if now.Before(s.nextSweep) {
		return
	}
	s.nextSweep = now.Add(window)
	for key, log := range s.windows {
		if len(log.hits) == 0 || !log.hits[len(log.hits)-1].After(now.Add(-log.window)) {
			delete(s.windows, key)
		}
	}
}

// Len reports how many keys are tracked.
func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
