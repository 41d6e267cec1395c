package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps timestamps in a process-local map. It is only suitable
// for single-instance deployments; multi-instance setups should use the
// Redis store.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string][]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string][]time.Time)}
}

func (s *MemoryStore) Get(_ context.Context, key string, cutoff time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	times := filterTimes(s.requests[key], cutoff)
	if len(times) == 0 {
		delete(s.requests, key)
	} else {
		s.requests[key] = times
	}

	out := make([]time.Time, len(times))
	copy(out, times)
	return out, nil
}

func (s *MemoryStore) Add(_ context.Context, key string, ts time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[key] = append(s.requests[key], ts)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, times := range s.requests {
		filtered := filterTimes(times, cutoff)
		if len(filtered) == 0 {
			delete(s.requests, key)
		} else {
			s.requests[key] = filtered
		}
	}
	return nil
}

func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	result := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}
