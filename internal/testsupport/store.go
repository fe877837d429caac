package testsupport

import (
	"testing"

	"github.com/scrolland/cuestionario-videos/internal/config"
	"github.com/scrolland/cuestionario-videos/internal/participants"
	"github.com/scrolland/cuestionario-videos/internal/runs"
)

// MustOpenRuns opens a runs.Store for tests and registers cleanup.
func MustOpenRuns(t testing.TB, cfg *config.Config) *runs.Store {
	t.Helper()

	store, err := runs.Open(cfg)
	if err != nil {
		t.Fatalf("runs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenParticipants opens a participant store rooted in the config's
// data directory.
func MustOpenParticipants(t testing.TB, cfg *config.Config) *participants.Store {
	t.Helper()

	store, err := participants.NewStore(cfg.ParticipantsDir(), nil)
	if err != nil {
		t.Fatalf("participants.NewStore: %v", err)
	}
	return store
}
