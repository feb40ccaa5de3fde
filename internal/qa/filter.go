package qa

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"castscribe/internal/textutil"
)

// DefaultSimilarityThreshold is the Jaccard score above which two sources are
// considered overlapping.
const DefaultSimilarityThreshold = 0.5

// Source is one transcript passage cited by an answer.
type Source struct {
	EpisodeID         string `json:"episodeId,omitempty"`
	PodcastID         string `json:"podcastId,omitempty"`
	Timestamp         string `json:"timestamp"`
	EpisodeTitle      string `json:"episodeTitle"`
	PodcastTitle      string `json:"podcastTitle"`
	TranscriptContent string `json:"transcriptContent,omitempty"`
}

// FilterSources drops exact (episode, timestamp) duplicates, orders the rest
// chronologically, and greedily discards any source whose text overlaps an
// already kept one by more than threshold. Unparsable timestamps sort last.
func FilterSources(sources []Source, threshold float64) []Source {
	if len(sources) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(sources))
	unique := make([]Source, 0, len(sources))
	for _, src := range sources {
		key := src.EpisodeID + "\x00" + src.Timestamp
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, src)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return timestampSortKey(unique[i].Timestamp) < timestampSortKey(unique[j].Timestamp)
	})

	kept := make([]Source, 0, len(unique))
	keptSets := make([]map[string]struct{}, 0, len(unique))
	for _, candidate := range unique {
		set := textutil.WordSet(candidate.TranscriptContent)
		overlapping := false
		for _, existing := range keptSets {
			if textutil.JaccardSets(set, existing) > threshold {
				overlapping = true
				break
			}
		}
		if overlapping {
			continue
		}
		kept = append(kept, candidate)
		keptSets = append(keptSets, set)
	}
	return kept
}

func timestampSortKey(ts string) int {
	if seconds, ok := ParseTimestamp(ts); ok {
		return seconds
	}
	return math.MaxInt
}

// ParseTimestamp converts "[HH:MM]" or "[HH:MM:SS]" into seconds.
func ParseTimestamp(ts string) (int, bool) {
	ts = strings.TrimSpace(ts)
	ts = strings.TrimSuffix(strings.TrimPrefix(ts, "["), "]")
	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	multipliers := []int{3600, 60, 1}
	total := 0
	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil || value < 0 {
			return 0, false
		}
		total += value * multipliers[i]
	}
	return total, true
}

// FormatTimestamp renders seconds as "[HH:MM]". Invalid input renders as
// "[00:00]".
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	return "[" + pad2(hours) + ":" + pad2(minutes) + "]"
}

func pad2(value int) string {
	if value < 10 {
		return "0" + strconv.Itoa(value)
	}
	return strconv.Itoa(value)
}
