// main is the entry point of the Beacon master server.
// It initializes the configuration, logger, sighting journal, GeoIP provider,
// the live registry and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/beacon/internal/config"
	"github.com/woozymasta/beacon/internal/directory"
	"github.com/woozymasta/beacon/internal/fake"
	"github.com/woozymasta/beacon/internal/geoip"
	"github.com/woozymasta/beacon/internal/liveness"
	"github.com/woozymasta/beacon/internal/logger"
	"github.com/woozymasta/beacon/internal/maintenance"
	"github.com/woozymasta/beacon/internal/registry"
	"github.com/woozymasta/beacon/internal/sanitize"
	"github.com/woozymasta/beacon/internal/server"
	"github.com/woozymasta/beacon/internal/storage"
	"github.com/woozymasta/beacon/internal/verify"
	"github.com/woozymasta/beacon/internal/vars"
)

func main() {
	cfg := config.Parse()

	logOutput := logger.Setup(cfg.Logger)
	if closer, ok := logOutput.(io.Closer); ok && logOutput != os.Stderr && logOutput != os.Stdout {
		defer func() { _ = closer.Close() }()
	}
	log.Info().Str("version", vars.Version).Str("commit", vars.CommitShort()).Msg("Starting beacon service...")

	ctx := context.Background()
	verifier := verify.New(cfg.Verify)

	// Sighting journal
	journal, err := storage.New(ctx, cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := journal.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	// data generation or journal maintenance
	if cfg.Storage.GenerateCount > 0 {
		failed := fake.GenerateData(ctx, journal, cfg.Storage.GenerateCount)
		log.Info().Int("count", cfg.Storage.GenerateCount).Int("failed", failed).Msg("Fake data generated")
		return
	} else if maintenance.Run(ctx, cfg.Storage, journal, verifier) {
		return
	}

	// GeoIP
	log.Info().Msg("Checking GeoIP database...")
	if err := geoip.EnsureDB(ctx, cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	geoProvider, err := geoip.Open(cfg.GeoIP.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		geoProvider = nil
	}
	defer func() {
		if err := geoProvider.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing GeoIP provider")
		}
	}()

	// Sanitizer
	var extraWords []string
	if cfg.Filter.WordsFile != "" {
		extraWords, err = sanitize.LoadWords(cfg.Filter.WordsFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Filter.WordsFile).Msg("Failed to load words file")
		}
	}
	filter, err := sanitize.New(extraWords, cfg.Filter.Placeholder)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize text filter")
	}
	log.Debug().Int("words", filter.Len()).Msg("Text filter ready")

	// Registry and liveness
	store := registry.New()
	dir := directory.New(store, verifier, filter, directory.WithCountryResolver(geoProvider))

	monitor := liveness.New(store, cfg.Registry.Liveness, cfg.Registry.SweepInterval)
	monitor.Start()

	// Init server
	srvHandler := server.New(dir, journal, cfg)
	srvHandler.StartWorkers()

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srvHandler.Run(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Verify.Timeout + 10*time.Second, // registration waits for the callback
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	monitor.Stop()

	// Stop workers (wait queue done)
	srvHandler.StopWorkers()

	log.Info().Int("servers", store.Len()).Msg("Server exited")
}
