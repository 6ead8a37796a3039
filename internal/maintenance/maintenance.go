// Package maintenance provides one-shot tasks for cleaning the sighting journal.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/beacon/internal/config"
	"github.com/woozymasta/beacon/internal/models"
)

// workers is the size of the re-verification pool.
const workers = 10

// Journal is the part of the sighting journal maintenance works on.
type Journal interface {
	Sightings(ctx context.Context) ([]models.Sighting, error)
	DeleteSighting(ctx context.Context, ip string, port int) error
	PruneSeenBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Verifier repeats the registration handshake against a journal entry.
type Verifier interface {
	Verify(ctx context.Context, ip string, authPort int) error
}

// Run checks if any maintenance flags are set and executes the corresponding task.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg config.Storage, journal Journal, verifier Verifier) bool {
	switch {
	case cfg.PruneOlder > 0:
		cutoff := time.Now().Add(-cfg.PruneOlder)
		log.Info().Time("cutoff", cutoff).Msg("Pruning stale sightings...")

		count, err := journal.PruneSeenBefore(ctx, cutoff)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune sightings")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}

		return true

	case cfg.CheckAll:
		sightings, err := journal.Sightings(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to fetch sightings")
			return true
		}

		if len(sightings) == 0 {
			log.Info().Msg("No sightings found for maintenance")
			return true
		}

		log.Info().Int("count", len(sightings)).Int("workers", workers).Msg("Re-verifying sightings...")
		deleted := runWorkerPool(ctx, sightings, journal, verifier)
		log.Info().Int("deleted", deleted).Msg("Maintenance task completed")

		return true
	}

	return false
}

func runWorkerPool(ctx context.Context, sightings []models.Sighting, journal Journal, verifier Verifier) int {
	jobs := make(chan models.Sighting, len(sightings))
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		deleted int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				if processSighting(ctx, s, journal, verifier) {
					mu.Lock()
					deleted++
					mu.Unlock()
				}
			}
		}()
	}

	for _, s := range sightings {
		jobs <- s
	}
	close(jobs)

	wg.Wait()

	return deleted
}

// processSighting deletes the row when the endpoint no longer passes the
// handshake and reports whether it did.
func processSighting(ctx context.Context, s models.Sighting, journal Journal, verifier Verifier) bool {
	logCtx := log.With().
		Str("ip", s.IP).
		Int("port", s.Port).
		Int("auth_port", s.AuthPort).
		Logger()

	err := verifier.Verify(ctx, s.IP, s.AuthPort)
	if err == nil {
		logCtx.Trace().Msg("Sighting still verifies")
		return false
	}

	logCtx.Debug().Err(err).Msg("Verification failed, deleting sighting")
	if err := journal.DeleteSighting(ctx, s.IP, s.Port); err != nil {
		logCtx.Error().Err(err).Msg("Failed to delete sighting")
		return false
	}

	return true
}
