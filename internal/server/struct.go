package server

import (
	"sync"
	"time"

	"github.com/woozymasta/beacon/internal/directory"
	"github.com/woozymasta/beacon/internal/models"
	"github.com/woozymasta/beacon/internal/storage"
)

// Server holds the dependencies, configuration, and runtime state required
// to serve the game server and client endpoints.
type Server struct {
	// directory runs the registration and mutation protocol against the registry.
	directory *directory.Service

	// journal records every successful registration. It is nil when the
	// sighting journal is disabled; admin journal endpoints then answer 503.
	journal *storage.Repository

	// queue passes sightings from registration handlers to journal writers,
	// keeping SQLite latency out of the request path.
	queue chan sightingJob

	// shutdown is closed to stop background goroutines (writers, limiter GC).
	shutdown chan struct{}

	// authToken is the bearer token guarding the /api admin endpoints.
	authToken string

	wg           sync.WaitGroup
	shutdownOnce sync.Once

	// maxBody caps the registration body, which carries the mod info upload.
	maxBody int64

	// hardLimitCount requests per hardLimitWin are allowed per IP on /server routes.
	hardLimitCount int
	hardLimitWin   time.Duration

	// workers is the number of journal writers.
	workers int

	// trustProxy makes GetRealIP honour CF-Connecting-IP and X-Forwarded-For.
	// Ownership checks then rely on the proxy, so enable it only behind one.
	trustProxy bool
}

// sightingJob is one journal write produced by a successful registration.
type sightingJob struct {
	Sighting models.Sighting
}
