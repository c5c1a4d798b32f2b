package cache

import (
	"log/slog"
	"time"
)

// Cache is the read/write surface handlers depend on.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries in bulk.
type Cleaner interface {
	CleanExpired() int
}

// Manager owns the periodic cleanup of registered caches so the server
// runs a single sweeper goroutine instead of one per cache.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the cleanup sweep. Not safe to call after
// StartCleanup.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup launches the background sweeper ticking at interval.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := 0
			for _, c := range m.caches {
				removed += c.CleanExpired()
			}
			if removed > 0 {
				slog.Debug("Cache cleanup removed expired entries", "removed", removed)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the sweeper and waits for it to exit. Safe to call once.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
