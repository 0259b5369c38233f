package guard

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the single-instance Store. Entries live for one window
// from their first failure and are swept periodically.
type MemoryStore struct {
	window  time.Duration
	entries map[string]*memoryEntry
	mu      sync.RWMutex
	stop    chan struct{}
	once    sync.Once
}

type memoryEntry struct {
	mu      sync.Mutex
	rec     Record
	tenants map[string]struct{}
}

// NewMemoryStore starts a sweeper when sweepEvery > 0; call Close to stop it.
func NewMemoryStore(window, sweepEvery time.Duration) *MemoryStore {
	s := &MemoryStore{
		window:  window,
		entries: make(map[string]*memoryEntry),
		stop:    make(chan struct{}),
	}
	if sweepEvery > 0 {
		go s.sweepLoop(sweepEvery)
	}
	return s
}

func (s *MemoryStore) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			_, _ = s.Sweep(context.Background(), now)
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStore) expired(rec Record, now time.Time) bool {
	return rec.Failures == 0 || now.Sub(rec.FirstAt) >= s.window
}

func (s *MemoryStore) Get(_ context.Context, key string, now time.Time) (Record, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Record{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(e.rec, now) {
		return Record{}, nil
	}
	return e.rec, nil
}

func (s *MemoryStore) Increment(_ context.Context, key, tenant string, now time.Time) (Record, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		// Double-check after acquiring write lock
		if e, ok = s.entries[key]; !ok {
			e = &memoryEntry{tenants: make(map[string]struct{})}
			s.entries[key] = e
		}
		s.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if s.expired(e.rec, now) {
		e.rec = Record{FirstAt: now}
		e.tenants = make(map[string]struct{})
	}

	e.rec.Failures++
	e.rec.PreviousAt = e.rec.LastAt
	e.rec.LastAt = now
	if tenant != "" {
		e.tenants[tenant] = struct{}{}
	}
	e.rec.TenantCount = len(e.tenants)

	return e.rec, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		e.mu.Lock()
		if s.expired(e.rec, now) {
			delete(s.entries, key)
			removed++
		}
		e.mu.Unlock()
	}
	return removed, nil
}

// Len is the number of tracked addresses.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
