package maintenance

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/woozymasta/beacon/internal/config"
	"github.com/woozymasta/beacon/internal/models"
	"github.com/woozymasta/beacon/internal/storage"
)

// aliveVerifier passes only the listed addresses.
type aliveVerifier map[string]bool

func (v aliveVerifier) Verify(_ context.Context, ip string, _ int) error {
	if v[ip] {
		return nil
	}
	return errors.New("unreachable")
}

func seedJournal(t *testing.T, seen map[string]time.Time) *storage.Repository {
	t.Helper()

	ctx := context.Background()
	repo, err := storage.New(ctx, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	for ip, at := range seen {
		s := models.Sighting{IP: ip, Port: 37015, AuthPort: 8081, FirstSeen: at, LastSeen: at}
		if err := repo.UpsertSighting(ctx, s); err != nil {
			t.Fatalf("UpsertSighting: %v", err)
		}
	}

	return repo
}

func TestRunNothingToDo(t *testing.T) {
	repo := seedJournal(t, nil)
	if Run(context.Background(), config.Storage{}, repo, aliveVerifier{}) {
		t.Fatal("Run = true without maintenance flags")
	}
}

func TestRunPrune(t *testing.T) {
	now := time.Now()
	repo := seedJournal(t, map[string]time.Time{
		"1.1.1.1": now.Add(-48 * time.Hour),
		"2.2.2.2": now.Add(-time.Hour),
	})

	if !Run(context.Background(), config.Storage{PruneOlder: 24 * time.Hour}, repo, aliveVerifier{}) {
		t.Fatal("Run = false, want true")
	}

	list, err := repo.Sightings(context.Background())
	if err != nil {
		t.Fatalf("Sightings: %v", err)
	}
	if len(list) != 1 || list[0].IP != "2.2.2.2" {
		t.Fatalf("Sightings = %+v, want only 2.2.2.2", list)
	}
}

func TestRunCheckAll(t *testing.T) {
	now := time.Now()
	repo := seedJournal(t, map[string]time.Time{
		"1.1.1.1": now,
		"2.2.2.2": now,
		"3.3.3.3": now,
	})

	verifier := aliveVerifier{"2.2.2.2": true}
	if !Run(context.Background(), config.Storage{CheckAll: true}, repo, verifier) {
		t.Fatal("Run = false, want true")
	}

	list, err := repo.Sightings(context.Background())
	if err != nil {
		t.Fatalf("Sightings: %v", err)
	}
	if len(list) != 1 || list[0].IP != "2.2.2.2" {
		t.Fatalf("Sightings = %+v, want only the verifying endpoint", list)
	}
}
