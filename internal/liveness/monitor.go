// Package liveness evicts game servers that stopped sending heartbeats.
package liveness

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/beacon/internal/models"
)

// DefaultWindow is how long a server stays listed without a heartbeat.
const DefaultWindow = 30 * time.Second

// Evicter is the part of the registry the monitor needs.
type Evicter interface {
	Evict(maxAge time.Duration) []models.ServerRecord
}

// Monitor periodically evicts records older than the liveness window.
type Monitor struct {
	store    Evicter
	shutdown chan struct{}
	window   time.Duration
	interval time.Duration
	wg       sync.WaitGroup
	once     sync.Once
}

// New creates a Monitor. A non-positive window falls back to DefaultWindow;
// a non-positive interval sweeps once per window.
func New(store Evicter, window, interval time.Duration) *Monitor {
	if window <= 0 {
		window = DefaultWindow
	}
	if interval <= 0 {
		interval = window
	}

	return &Monitor{
		store:    store,
		window:   window,
		interval: interval,
		shutdown: make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.run()

	log.Debug().
		Dur("window", m.window).
		Dur("interval", m.interval).
		Msg("Liveness monitor started")
}

// Stop ends the sweep loop and waits for it. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.shutdown) })
	m.wg.Wait()
}

// Sweep runs one eviction pass and returns how many servers were removed.
func (m *Monitor) Sweep() int {
	evicted := m.store.Evict(m.window)
	for _, rec := range evicted {
		log.Info().
			Str("id", rec.ID).
			Str("ip", rec.IP).
			Int("port", rec.Port).
			Str("name", rec.Name).
			Dur("silent", time.Since(rec.LastHeartbeat)).
			Msg("Server evicted, heartbeat timed out")
	}

	return len(evicted)
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
