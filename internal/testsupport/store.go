package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"castscribe/internal/config"
	"castscribe/internal/store"
	"castscribe/internal/transcript"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewEpisode registers an episode in library "lib-1" whose audio path sits
// under the config base directory.
func NewEpisode(t testing.TB, st *store.Store, id string) *store.Episode {
	t.Helper()

	episode, err := st.UpsertEpisode(context.Background(), &store.Episode{
		ID:            id,
		LibraryItemID: "item-" + id,
		LibraryID:     "lib-1",
		PodcastID:     "pod-1",
		Title:         fmt.Sprintf("Episode %s", id),
		PodcastTitle:  "Test Podcast",
		AudioPath:     filepath.Join(filepath.Dir(st.Path()), "audio", id+".mp3"),
	})
	if err != nil {
		t.Fatalf("store.UpsertEpisode: %v", err)
	}
	return episode
}

// NewTranscribedEpisode registers an episode carrying the given segment texts,
// each spanning sixty seconds.
func NewTranscribedEpisode(t testing.TB, st *store.Store, id string, texts ...string) *store.Episode {
	t.Helper()

	NewEpisode(t, st, id)
	segments := make([]transcript.Segment, 0, len(texts))
	for i, text := range texts {
		segments = append(segments, transcript.Segment{
			Text:  text,
			Start: float64(i * 60),
			End:   float64((i + 1) * 60),
		})
	}
	if err := st.SaveTranscript(context.Background(), id, transcript.FromSegments(segments)); err != nil {
		t.Fatalf("store.SaveTranscript: %v", err)
	}
	episode, err := st.GetEpisode(context.Background(), id)
	if err != nil {
		t.Fatalf("store.GetEpisode: %v", err)
	}
	return episode
}
