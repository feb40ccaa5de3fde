package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"castscribe/internal/services"
)

// SaveSummary creates or overwrites the summary for summary.EpisodeID. The
// record id is preserved across overwrites.
func (s *Store) SaveSummary(ctx context.Context, summary *Summary) (*Summary, error) {
	if summary == nil {
		return nil, errors.New("summary is nil")
	}
	if strings.TrimSpace(summary.EpisodeID) == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "save summary", "episode id is required", nil)
	}
	switch summary.Status {
	case SummaryPending, SummaryCompleted, SummaryError:
	default:
		return nil, services.Wrap(services.ErrValidation, "store", "save summary", fmt.Sprintf("unknown status %q", summary.Status), nil)
	}
	id := summary.ID
	if id == "" {
		id = uuid.NewString()
	}
	format := summary.Format
	if format == "" {
		format = DefaultSummaryFormat
	}
	timestamp := formatTime(s.now())
	_, err := s.execWithRetry(ctx,
		`INSERT INTO episode_summaries (
            id, episode_id, summary, format, status, error_message, vector_ids, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(episode_id) DO UPDATE SET
            summary = excluded.summary,
            format = excluded.format,
            status = excluded.status,
            error_message = excluded.error_message,
            vector_ids = excluded.vector_ids,
            updated_at = excluded.updated_at`,
		id,
		summary.EpisodeID,
		nullableString(summary.Summary),
		format,
		string(summary.Status),
		nullableString(summary.Error),
		joinIDs(summary.VectorIDs),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	return s.GetSummary(ctx, summary.EpisodeID)
}

// GetSummary returns the summary for an episode, or nil when none exists.
func (s *Store) GetSummary(ctx context.Context, episodeID string) (*Summary, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+summaryColumns+` FROM episode_summaries WHERE episode_id = ?`, episodeID)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return summary, nil
}

// DeleteSummary removes the summary for an episode and reports whether one existed.
func (s *Store) DeleteSummary(ctx context.Context, episodeID string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM episode_summaries WHERE episode_id = ?`, episodeID)
	if err != nil {
		return false, fmt.Errorf("delete summary: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete summary rows affected: %w", err)
	}
	return affected > 0, nil
}

// SummaryStats returns a count of summaries grouped by status.
func (s *Store) SummaryStats(ctx context.Context) (map[SummaryStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM episode_summaries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("summary stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[SummaryStatus]int)
	for rows.Next() {
		var status SummaryStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
