package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"castscribe/internal/transcript"
)

const episodeColumns = "id, library_item_id, library_id, podcast_id, title, podcast_title, audio_path, transcript_json, transcription_operation, created_at, updated_at"

const summaryColumns = "id, episode_id, summary, format, status, error_message, vector_ids, created_at, updated_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanEpisode(scanner rowScanner) (*Episode, error) {
	var (
		id             string
		libraryItemID  string
		libraryID      string
		podcastID      sql.NullString
		title          string
		podcastTitle   sql.NullString
		audioPath      sql.NullString
		transcriptJSON sql.NullString
		operation      sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&libraryItemID,
		&libraryID,
		&podcastID,
		&title,
		&podcastTitle,
		&audioPath,
		&transcriptJSON,
		&operation,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	episode := &Episode{
		ID:                     id,
		LibraryItemID:          libraryItemID,
		LibraryID:              libraryID,
		PodcastID:              podcastID.String,
		Title:                  title,
		PodcastTitle:           podcastTitle.String,
		AudioPath:              audioPath.String,
		TranscriptionOperation: operation.String,
	}
	if transcriptJSON.Valid {
		parsed, err := transcript.Parse([]byte(transcriptJSON.String))
		if err != nil {
			return nil, fmt.Errorf("episode %s transcript: %w", id, err)
		}
		episode.Transcript = parsed
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		episode.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		episode.UpdatedAt = updated
	}
	return episode, nil
}

func scanSummary(scanner rowScanner) (*Summary, error) {
	var (
		id         string
		episodeID  string
		text       sql.NullString
		format     string
		status     string
		errMessage sql.NullString
		vectorIDs  sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&episodeID,
		&text,
		&format,
		&status,
		&errMessage,
		&vectorIDs,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	summary := &Summary{
		ID:        id,
		EpisodeID: episodeID,
		Summary:   text.String,
		Format:    format,
		Status:    SummaryStatus(status),
		Error:     errMessage.String,
		VectorIDs: splitIDs(vectorIDs.String),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		summary.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		summary.UpdatedAt = updated
	}
	return summary, nil
}

func encodeTranscript(t *transcript.Transcript) (any, error) {
	if t == nil {
		return nil, nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript: %w", err)
	}
	return string(data), nil
}

func joinIDs(ids []string) any {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return strings.Join(cleaned, ",")
}

func splitIDs(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
