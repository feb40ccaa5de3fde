package qa

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterSourcesDedupsSortsAndDropsOverlap(t *testing.T) {
	sources := []Source{
		{EpisodeID: "e1", Timestamp: "[00:10]", TranscriptContent: "the quick brown fox jumps over the lazy dog"},
		{EpisodeID: "e1", Timestamp: "[00:02]", TranscriptContent: "completely different words about space travel"},
		{EpisodeID: "e1", Timestamp: "[00:10]", TranscriptContent: "duplicate of the first entry by key"},
		{EpisodeID: "e2", Timestamp: "[00:11]", TranscriptContent: "the quick brown fox jumps over the lazy cat"},
		{EpisodeID: "e3", Timestamp: "soon", TranscriptContent: "an unparsable timestamp lands at the end"},
	}

	got := FilterSources(sources, DefaultSimilarityThreshold)
	require.Len(t, got, 3)
	require.Equal(t, "[00:02]", got[0].Timestamp)
	require.Equal(t, "[00:10]", got[1].Timestamp)
	require.Equal(t, "e1", got[1].EpisodeID)
	require.Equal(t, "soon", got[2].Timestamp)
}

func TestFilterSourcesIdempotent(t *testing.T) {
	sources := []Source{
		{EpisodeID: "a", Timestamp: "[01:00]", TranscriptContent: "alpha beta gamma"},
		{EpisodeID: "b", Timestamp: "[00:30]", TranscriptContent: "alpha beta gamma delta"},
		{EpisodeID: "c", Timestamp: "[02:00]", TranscriptContent: "unrelated text here"},
	}
	once := FilterSources(sources, 0.5)
	require.Equal(t, once, FilterSources(once, 0.5))
}

func TestFilterSourcesEmpty(t *testing.T) {
	require.Empty(t, FilterSources(nil, 0.5))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"[00:00]", 0, true},
		{"[01:30]", 5400, true},
		{"[00:01:05]", 65, true},
		{" [02:00] ", 7200, true},
		{"[aa:bb]", 0, false},
		{"[5]", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseTimestamp(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseTimestamp(%q) = %d,%v want %d,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "[00:00]"},
		{59, "[00:00]"},
		{61, "[00:01]"},
		{3725, "[01:02]"},
		{36000, "[10:00]"},
		{-4, "[00:00]"},
		{math.NaN(), "[00:00]"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.in); got != tt.want {
			t.Fatalf("FormatTimestamp(%v) = %q want %q", tt.in, got, tt.want)
		}
	}
}
