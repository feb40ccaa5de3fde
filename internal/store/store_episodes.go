package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"castscribe/internal/services"
	"castscribe/internal/transcript"
)

// UpsertEpisode registers an episode or refreshes its metadata. An existing
// transcript is kept unless episode carries a new one. The operation token is
// never changed here.
func (s *Store) UpsertEpisode(ctx context.Context, episode *Episode) (*Episode, error) {
	if episode == nil {
		return nil, errors.New("episode is nil")
	}
	if strings.TrimSpace(episode.ID) == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "upsert episode", "episode id is required", nil)
	}
	if strings.TrimSpace(episode.LibraryItemID) == "" || strings.TrimSpace(episode.LibraryID) == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "upsert episode", "library item id and library id are required", nil)
	}
	transcriptValue, err := encodeTranscript(episode.Transcript)
	if err != nil {
		return nil, err
	}
	timestamp := formatTime(s.now())
	_, err = s.execWithRetry(ctx,
		`INSERT INTO episodes (
            id, library_item_id, library_id, podcast_id, title, podcast_title,
            audio_path, transcript_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            library_item_id = excluded.library_item_id,
            library_id = excluded.library_id,
            podcast_id = excluded.podcast_id,
            title = excluded.title,
            podcast_title = excluded.podcast_title,
            audio_path = excluded.audio_path,
            transcript_json = COALESCE(excluded.transcript_json, episodes.transcript_json),
            updated_at = excluded.updated_at`,
		episode.ID,
		episode.LibraryItemID,
		episode.LibraryID,
		nullableString(episode.PodcastID),
		episode.Title,
		nullableString(episode.PodcastTitle),
		nullableString(episode.AudioPath),
		transcriptValue,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert episode: %w", err)
	}
	return s.GetEpisode(ctx, episode.ID)
}

// GetEpisode fetches an episode by identifier. It returns nil when absent.
func (s *Store) GetEpisode(ctx context.Context, id string) (*Episode, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return episode, nil
}

// ListEpisodes returns episodes ordered by creation time, optionally limited to
// one library.
func (s *Store) ListEpisodes(ctx context.Context, libraryID string) ([]*Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes`
	var args []any
	if libraryID != "" {
		query += ` WHERE library_id = ?`
		args = append(args, libraryID)
	}
	query += ` ORDER BY created_at, id`
	return s.queryEpisodes(ctx, query, args...)
}

// GetEpisodes fetches the episodes matching ids, skipping unknown ones.
func (s *Store) GetEpisodes(ctx context.Context, ids ...string) ([]*Episode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE id IN (` + makePlaceholders(len(ids)) + `) ORDER BY created_at, id`
	return s.queryEpisodes(ctx, query, args...)
}

// ListWithTranscriptionOperation returns every episode with an outstanding
// transcription operation token.
func (s *Store) ListWithTranscriptionOperation(ctx context.Context) ([]*Episode, error) {
	return s.queryEpisodes(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE transcription_operation IS NOT NULL ORDER BY created_at, id`)
}

// SetTranscriptionOperation records the outstanding operation token.
func (s *Store) SetTranscriptionOperation(ctx context.Context, id, token string) error {
	if strings.TrimSpace(token) == "" {
		return services.Wrap(services.ErrValidation, "store", "set operation", "token is required", nil)
	}
	return s.updateEpisode(ctx, "set operation",
		`UPDATE episodes SET transcription_operation = ?, updated_at = ? WHERE id = ?`,
		token, formatTime(s.now()), id)
}

// ClearTranscriptionOperation removes any outstanding operation token.
func (s *Store) ClearTranscriptionOperation(ctx context.Context, id string) error {
	return s.updateEpisode(ctx, "clear operation",
		`UPDATE episodes SET transcription_operation = NULL, updated_at = ? WHERE id = ?`,
		formatTime(s.now()), id)
}

// ClearTranscriptionOperationIfMatch clears the token only when it still equals
// token, so a sweep never erases a newer operation. It reports whether a row
// changed.
func (s *Store) ClearTranscriptionOperationIfMatch(ctx context.Context, id, token string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE episodes SET transcription_operation = NULL, updated_at = ? WHERE id = ? AND transcription_operation = ?`,
		formatTime(s.now()), id, token)
	if err != nil {
		return false, fmt.Errorf("clear operation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear operation rows affected: %w", err)
	}
	return affected > 0, nil
}

// SaveTranscript persists the episode transcript.
func (s *Store) SaveTranscript(ctx context.Context, id string, t *transcript.Transcript) error {
	value, err := encodeTranscript(t)
	if err != nil {
		return err
	}
	return s.updateEpisode(ctx, "save transcript",
		`UPDATE episodes SET transcript_json = ?, updated_at = ? WHERE id = ?`,
		value, formatTime(s.now()), id)
}

func (s *Store) updateEpisode(ctx context.Context, operation, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", operation, "episode not found", nil)
	}
	return nil
}

func (s *Store) queryEpisodes(ctx context.Context, query string, args ...any) ([]*Episode, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, episode)
	}
	return episodes, rows.Err()
}
