// Package server implements the HTTP surface of the master list: game server
// registration routes, the public listing and the admin API.
package server

import (
	"net/http"

	"github.com/woozymasta/beacon/internal/config"
	"github.com/woozymasta/beacon/internal/directory"
	"github.com/woozymasta/beacon/internal/storage"
)

// New creates a Server. journal may be nil to disable the sighting journal.
func New(dir *directory.Service, journal *storage.Repository, cfg *config.Config) *Server {
	queueSize := cfg.Registry.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	return &Server{
		directory:      dir,
		journal:        journal,
		authToken:      cfg.Server.AuthToken,
		maxBody:        cfg.Server.MaxBodySize,
		trustProxy:     cfg.Server.TrustProxy,
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,
		workers:        cfg.Registry.Workers,

		queue:    make(chan sightingJob, queueSize),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers starts the journal writers. Without a journal it does nothing.
func (s *Server) StartWorkers() {
	if s.journal == nil {
		return
	}

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// StopWorkers stops background goroutines and waits until sightings queued
// so far are written. The queue is never closed, so a registration finishing
// after this call only loses its journal entry.
func (s *Server) StopWorkers() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
	})
	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	// game server protocol, paths as used by the game; one limiter for all of them
	gameMux := http.NewServeMux()
	gameMux.HandleFunc("POST /server/add_server", s.handleAddServer)
	gameMux.HandleFunc("POST /server/heartbeat", s.handleHeartbeat)
	gameMux.HandleFunc("POST /server/update_values", s.handleUpdateValues)
	gameMux.HandleFunc("DELETE /server/remove_server", s.handleRemoveServer)
	mux.Handle("/server/", s.RateLimitMiddleware(gameMux))

	// clients
	mux.Handle("GET /client/servers", http.HandlerFunc(s.handleListServers))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))

	// admin
	mux.Handle("GET /api/servers", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleAdminServers)))
	mux.Handle("GET /api/sightings", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleSightings)))
	mux.Handle("DELETE /api/sighting", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleDeleteSighting)))

	return s.LoggingMiddleware(mux)
}
