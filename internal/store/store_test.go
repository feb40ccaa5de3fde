package store_test

import (
	"context"
	"errors"
	"testing"

	"castscribe/internal/services"
	"castscribe/internal/store"
	"castscribe/internal/testsupport"
	"castscribe/internal/transcript"
)

func TestUpsertEpisodeRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	episode := testsupport.NewEpisode(t, st, "ep-1")
	if episode == nil || episode.Title != "Episode ep-1" {
		t.Fatalf("unexpected episode: %#v", episode)
	}
	if episode.LibraryID != "lib-1" || episode.PodcastTitle != "Test Podcast" {
		t.Fatalf("metadata not persisted: %#v", episode)
	}
	if episode.CreatedAt.IsZero() || episode.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
	if episode.HasTranscript() {
		t.Fatal("new episode should not have a transcript")
	}

	missing, err := st.GetEpisode(ctx, "nope")
	if err != nil {
		t.Fatalf("GetEpisode missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing episode, got %#v", missing)
	}
}

func TestUpsertEpisodeKeepsTranscriptAndOperation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewTranscribedEpisode(t, st, "ep-1", "hello there", "general kenobi")
	if err := st.SetTranscriptionOperation(ctx, "ep-1", "whisper-transcription-1-item-ep-1-ep-1"); err != nil {
		t.Fatalf("SetTranscriptionOperation: %v", err)
	}

	updated, err := st.UpsertEpisode(ctx, &store.Episode{
		ID:            "ep-1",
		LibraryItemID: "item-ep-1",
		LibraryID:     "lib-1",
		Title:         "Renamed",
	})
	if err != nil {
		t.Fatalf("UpsertEpisode: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("expected title update, got %q", updated.Title)
	}
	if got := updated.Transcript.Text(); got != "hello there general kenobi" {
		t.Fatalf("transcript lost on upsert: %q", got)
	}
	if updated.TranscriptionOperation == "" {
		t.Fatal("operation token lost on upsert")
	}
}

func TestUpsertEpisodeValidatesIdentifiers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	_, err := st.UpsertEpisode(context.Background(), &store.Episode{ID: "ep-1"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveTranscriptPersistsSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewEpisode(t, st, "ep-1")
	tr := transcript.FromSegments([]transcript.Segment{
		{Text: "first", Start: 0, End: 12.5},
		{Text: "second", Start: 12.5, End: 30},
	})
	if err := st.SaveTranscript(ctx, "ep-1", tr); err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}

	fetched, err := st.GetEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	segments := fetched.Transcript.TimedSegments()
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[1].Start != 12.5 || segments[1].End != 30 {
		t.Fatalf("unexpected segment timing: %#v", segments[1])
	}

	err = st.SaveTranscript(ctx, "missing", tr)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestTranscriptionOperationLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewEpisode(t, st, "ep-1")
	testsupport.NewEpisode(t, st, "ep-2")

	if err := st.SetTranscriptionOperation(ctx, "ep-1", "token-a"); err != nil {
		t.Fatalf("SetTranscriptionOperation: %v", err)
	}
	if err := st.SetTranscriptionOperation(ctx, "ep-1", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty token, got %v", err)
	}

	pending, err := st.ListWithTranscriptionOperation(ctx)
	if err != nil {
		t.Fatalf("ListWithTranscriptionOperation: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "ep-1" {
		t.Fatalf("unexpected pending list: %#v", pending)
	}

	cleared, err := st.ClearTranscriptionOperationIfMatch(ctx, "ep-1", "token-b")
	if err != nil {
		t.Fatalf("ClearTranscriptionOperationIfMatch: %v", err)
	}
	if cleared {
		t.Fatal("mismatched token should not clear")
	}
	cleared, err = st.ClearTranscriptionOperationIfMatch(ctx, "ep-1", "token-a")
	if err != nil {
		t.Fatalf("ClearTranscriptionOperationIfMatch: %v", err)
	}
	if !cleared {
		t.Fatal("matching token should clear")
	}

	if err := st.SetTranscriptionOperation(ctx, "ep-2", "token-c"); err != nil {
		t.Fatalf("SetTranscriptionOperation: %v", err)
	}
	if err := st.ClearTranscriptionOperation(ctx, "ep-2"); err != nil {
		t.Fatalf("ClearTranscriptionOperation: %v", err)
	}
	pending, err = st.ListWithTranscriptionOperation(ctx)
	if err != nil {
		t.Fatalf("ListWithTranscriptionOperation: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending operations, got %d", len(pending))
	}
}

func TestListEpisodesFiltersByLibrary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewEpisode(t, st, "ep-1")
	testsupport.NewEpisode(t, st, "ep-2")
	if _, err := st.UpsertEpisode(ctx, &store.Episode{
		ID:            "ep-3",
		LibraryItemID: "item-3",
		LibraryID:     "lib-2",
		Title:         "Other",
	}); err != nil {
		t.Fatalf("UpsertEpisode: %v", err)
	}

	all, err := st.ListEpisodes(ctx, "")
	if err != nil {
		t.Fatalf("ListEpisodes: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(all))
	}
	lib1, err := st.ListEpisodes(ctx, "lib-1")
	if err != nil {
		t.Fatalf("ListEpisodes lib-1: %v", err)
	}
	if len(lib1) != 2 {
		t.Fatalf("expected 2 episodes in lib-1, got %d", len(lib1))
	}

	some, err := st.GetEpisodes(ctx, "ep-3", "missing", "ep-1")
	if err != nil {
		t.Fatalf("GetEpisodes: %v", err)
	}
	if len(some) != 2 {
		t.Fatalf("expected 2 known episodes, got %d", len(some))
	}
}

func TestSaveSummaryOverwritesByEpisode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewEpisode(t, st, "ep-1")

	pending, err := st.SaveSummary(ctx, &store.Summary{EpisodeID: "ep-1", Status: store.SummaryPending})
	if err != nil {
		t.Fatalf("SaveSummary pending: %v", err)
	}
	if pending.ID == "" || pending.Format != store.DefaultSummaryFormat {
		t.Fatalf("unexpected pending summary: %#v", pending)
	}

	completed, err := st.SaveSummary(ctx, &store.Summary{
		EpisodeID: "ep-1",
		Summary:   "A tidy summary.",
		Status:    store.SummaryCompleted,
		VectorIDs: []string{"ep-1_chunk_0", " ", "ep-1_chunk_1"},
	})
	if err != nil {
		t.Fatalf("SaveSummary completed: %v", err)
	}
	if completed.ID != pending.ID {
		t.Fatalf("expected id %s to be preserved, got %s", pending.ID, completed.ID)
	}
	if completed.Summary != "A tidy summary." || completed.Status != store.SummaryCompleted {
		t.Fatalf("unexpected summary: %#v", completed)
	}
	if len(completed.VectorIDs) != 2 || completed.VectorIDs[1] != "ep-1_chunk_1" {
		t.Fatalf("unexpected vector ids: %#v", completed.VectorIDs)
	}

	stats, err := st.SummaryStats(ctx)
	if err != nil {
		t.Fatalf("SummaryStats: %v", err)
	}
	if stats[store.SummaryCompleted] != 1 || stats[store.SummaryPending] != 0 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestSaveSummaryRejectsUnknownStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.NewEpisode(t, st, "ep-1")
	_, err := st.SaveSummary(context.Background(), &store.Summary{EpisodeID: "ep-1", Status: "weird"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewEpisode(t, st, "ep-1")
	if _, err := st.SaveSummary(ctx, &store.Summary{EpisodeID: "ep-1", Status: store.SummaryError, Error: "boom"}); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	fetched, err := st.GetSummary(ctx, "ep-1")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if fetched == nil || fetched.Error != "boom" {
		t.Fatalf("unexpected summary: %#v", fetched)
	}

	deleted, err := st.DeleteSummary(ctx, "ep-1")
	if err != nil || !deleted {
		t.Fatalf("DeleteSummary = %v, %v", deleted, err)
	}
	deleted, err = st.DeleteSummary(ctx, "ep-1")
	if err != nil || deleted {
		t.Fatalf("second DeleteSummary = %v, %v", deleted, err)
	}
	gone, err := st.GetSummary(ctx, "ep-1")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if gone != nil {
		t.Fatalf("expected summary to be gone, got %#v", gone)
	}
}

func TestCheckHealthReportsSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || health.SchemaVersion != 1 {
		t.Fatalf("unexpected health: %#v", health)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.ForceSchemaVersion(context.Background(), 99); err != nil {
		t.Fatalf("ForceSchemaVersion: %v", err)
	}
	st.Close()

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
