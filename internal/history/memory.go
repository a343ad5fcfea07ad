package history

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-memory ring buffer.
// This is the default backend and the fallback when SQLite is unavailable.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts []Attempt
	byID     map[string]int // ID -> index in attempts
	maxRows  int
	head     int // next write position
	count    int // actual count (may be less than len(attempts) initially)
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(maxRows int) *MemoryStore {
	return &MemoryStore{
		attempts: make([]Attempt, maxRows),
		byID:     make(map[string]int),
		maxRows:  maxRows,
	}
}

// Insert adds a new attempt to the store.
func (s *MemoryStore) Insert(a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// If we're overwriting, remove the old ID from the map
	if s.count == s.maxRows {
		oldID := s.attempts[s.head].ID
		delete(s.byID, oldID)
	}

	s.attempts[s.head] = *a
	s.byID[a.ID] = s.head

	s.head = (s.head + 1) % s.maxRows
	if s.count < s.maxRows {
		s.count++
	}

	return nil
}

// Update modifies an existing attempt.
func (s *MemoryStore) Update(id string, upd AttemptUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return nil // not found is not an error
	}

	a := &s.attempts[idx]

	if upd.TSEnd != nil {
		a.TSEnd = upd.TSEnd
	}
	if upd.Status != nil {
		a.Status = *upd.Status
	}
	if upd.DurationMs != nil {
		a.DurationMs = *upd.DurationMs
	}
	if upd.ContractNumber != nil {
		a.ContractNumber = *upd.ContractNumber
	}
	if upd.EngineerCount != nil {
		a.EngineerCount = *upd.EngineerCount
	}
	if upd.GrandTotalUSD != nil {
		a.GrandTotalUSD = *upd.GrandTotalUSD
	}
	if upd.ErrorClass != nil {
		a.ErrorClass = *upd.ErrorClass
	}
	if upd.Error != nil {
		a.Error = *upd.Error
	}

	return nil
}

// GetByID retrieves a single attempt.
func (s *MemoryStore) GetByID(id string) (*Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return nil, nil
	}

	a := s.attempts[idx]
	return &a, nil
}

// List returns attempts matching the filter options, newest first.
func (s *MemoryStore) List(opts ListOptions) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.collectOrdered()

	var filtered []Attempt
	cutoff := int64(0)
	if opts.Window > 0 {
		cutoff = time.Now().UnixMilli() - opts.Window.Milliseconds()
	}

	for _, a := range all {
		if opts.Status != nil && a.Status != *opts.Status {
			continue
		}
		if cutoff > 0 && a.TSStart < cutoff {
			continue
		}
		filtered = append(filtered, a)
	}

	if opts.Offset >= len(filtered) {
		return nil, nil
	}
	filtered = filtered[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(filtered) {
		filtered = filtered[:opts.Limit]
	}

	return filtered, nil
}

// Overview returns aggregate statistics.
func (s *MemoryStore) Overview(window time.Duration) (*Overview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UnixMilli() - window.Milliseconds()
	all := s.collectOrdered()

	var o Overview
	var durations []int

	for _, a := range all {
		if a.TSStart < cutoff {
			continue
		}

		o.TotalAttempts++
		switch a.Status {
		case StatusOK:
			o.OKCount++
			o.TotalInvoicedUSD += a.GrandTotalUSD
		case StatusFailed:
			o.FailedCount++
		case StatusError:
			o.ErrorCount++
		}

		if a.Status != StatusInFlight && a.DurationMs > 0 {
			durations = append(durations, a.DurationMs)
		}

		o.TotalUploadBytes += a.UploadBytes
	}

	if o.TotalAttempts > 0 {
		o.SuccessRate = float64(o.OKCount) / float64(o.TotalAttempts)
	}

	if len(durations) > 0 {
		sort.Ints(durations)
		sum := 0
		for _, d := range durations {
			sum += d
		}
		o.AvgDurationMs = sum / len(durations)

		p95Idx := int(float64(len(durations)) * 0.95)
		if p95Idx >= len(durations) {
			p95Idx = len(durations) - 1
		}
		o.P95DurationMs = durations[p95Idx]
	}

	return &o, nil
}

// InFlightCount returns the number of in-flight attempts.
func (s *MemoryStore) InFlightCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for i := 0; i < s.count; i++ {
		idx := (s.head - 1 - i + s.maxRows) % s.maxRows
		if s.attempts[idx].Status == StatusInFlight {
			count++
		}
	}
	return count, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// collectOrdered returns all attempts sorted by ts_start descending (newest first).
func (s *MemoryStore) collectOrdered() []Attempt {
	if s.count == 0 {
		return nil
	}

	result := make([]Attempt, 0, s.count)
	for i := 0; i < s.count; i++ {
		// Start from head-1 (most recent) and go backward
		idx := (s.head - 1 - i + s.maxRows) % s.maxRows
		result = append(result, s.attempts[idx])
	}
	return result
}
