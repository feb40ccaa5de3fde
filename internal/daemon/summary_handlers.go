package daemon

import (
	"net/http"
	"strconv"
	"strings"

	"castscribe/internal/api"
	"castscribe/internal/jobs"
	"castscribe/internal/logging"
)

func (s *apiServer) handleSummarize(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, s.daemon.deps.Summaries, jobs.Request{
		EpisodeID: r.PathValue("id"),
		Force:     parseFlag(r.URL.Query().Get("force")),
	})
}

func (s *apiServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.daemon.deps.Store.GetSummary(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, "get summary", err)
		return
	}
	if summary == nil {
		s.writeError(w, http.StatusNotFound, "summary not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.SummaryResponse{Summary: api.FromSummary(summary)})
}

func (s *apiServer) handleSummaryStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	summary, err := s.daemon.deps.Store.GetSummary(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "summary status", err)
		return
	}
	loc := s.daemon.deps.Summaries.Locate(id)
	s.writeJSON(w, http.StatusOK, api.NewSummaryStatus(summary, loc))
}

// handleDeleteSummary removes the stored summary and its chunk vectors. A
// summary that is queued or running cannot be deleted.
func (s *apiServer) handleDeleteSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if loc := s.daemon.deps.Summaries.Locate(id); loc.Running || loc.Position > 0 {
		s.writeError(w, http.StatusConflict, "summary is being generated")
		return
	}
	summary, err := s.daemon.deps.Store.GetSummary(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "delete summary", err)
		return
	}
	if summary == nil {
		s.writeError(w, http.StatusNotFound, "summary not found")
		return
	}

	resp := api.DeleteSummaryResponse{}
	if len(summary.VectorIDs) > 0 && s.daemon.deps.SummaryVectors != nil {
		if err := s.daemon.deps.SummaryVectors.DeleteIDs(r.Context(), summary.VectorIDs); err != nil {
			logging.WarnWithContext(s.logger, "summary vectors not deleted", "summary_vectors_delete_failed",
				logging.String(logging.FieldEpisodeID, id),
				logging.Int("vector_count", len(summary.VectorIDs)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check vector store connectivity"),
				logging.String(logging.FieldImpact, "orphaned chunk vectors remain until the next summary of this episode"),
			)
		} else {
			resp.VectorsDeleted = len(summary.VectorIDs)
		}
	}

	deleted, err := s.daemon.deps.Store.DeleteSummary(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "delete summary", err)
		return
	}
	resp.Deleted = deleted
	s.writeJSON(w, http.StatusOK, resp)
}

func parseFlag(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}
