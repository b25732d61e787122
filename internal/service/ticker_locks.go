package service

import "sync"

// TickerLocks serializes read-modify-write sequences on a single cache
// record. The refresh pipeline's write phase and the strategy lock
// transitions share one instance, so neither can overwrite a row the
// other just committed.
type TickerLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// NewTickerLocks creates an empty lock set.
func NewTickerLocks() *TickerLocks {
	return &TickerLocks{m: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for a ticker, creating it on first use, and
// returns the matching unlock. The tracked ticker set is small and
// stable, so entries are never evicted.
func (l *TickerLocks) Lock(ticker string) func() {
	l.mu.Lock()
	m, ok := l.m[ticker]
	if !ok {
		m = &sync.Mutex{}
		l.m[ticker] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
