package daemon

import (
	"net/http"
	"strings"

	"castscribe/internal/api"
	"castscribe/internal/jobs"
	"castscribe/internal/logging"
	"castscribe/internal/services"
	"castscribe/internal/store"
)

func (s *apiServer) handleUpsertEpisode(w http.ResponseWriter, r *http.Request) {
	var req api.EpisodeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	episode, err := s.daemon.deps.Store.UpsertEpisode(r.Context(), api.ToEpisode(req))
	if err != nil {
		s.writeServiceError(w, r, "upsert episode", err)
		return
	}
	s.logger.Info("episode registered",
		logging.String(logging.FieldEpisodeID, episode.ID),
		logging.String(logging.FieldLibraryID, episode.LibraryID),
	)
	s.writeJSON(w, http.StatusOK, api.EpisodeResponse{Episode: api.FromEpisode(episode)})
}

func (s *apiServer) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	episode, ok := s.loadEpisode(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.EpisodeResponse{Episode: api.FromEpisode(episode)})
}

func (s *apiServer) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	episode, ok := s.loadEpisode(w, r)
	if !ok {
		return
	}
	if !episode.HasTranscript() {
		s.writeError(w, http.StatusNotFound, "episode has no transcript")
		return
	}
	s.writeJSON(w, http.StatusOK, api.Transcript{EpisodeID: episode.ID, Text: episode.Transcript.Text()})
}

func (s *apiServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, s.daemon.deps.Transcriptions, jobs.Request{EpisodeID: r.PathValue("id")})
}

func (s *apiServer) handleVectorize(w http.ResponseWriter, r *http.Request) {
	if s.daemon.deps.QA == nil {
		s.writeError(w, http.StatusServiceUnavailable, "transcript Q&A is not configured")
		return
	}
	episode, ok := s.loadEpisode(w, r)
	if !ok {
		return
	}
	chunks, err := s.daemon.deps.QA.Vectorize(r.Context(), episode, episode.PodcastTitle, episode.LibraryID)
	if err != nil {
		s.writeServiceError(w, r, "vectorize", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VectorizeResponse{EpisodeID: episode.ID, Chunks: chunks})
}

func (s *apiServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.daemon.deps.QA == nil {
		s.writeError(w, http.StatusServiceUnavailable, "transcript Q&A is not configured")
		return
	}
	var req api.QueryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	answer, err := s.daemon.deps.QA.Query(r.Context(), req.Query, req.LibraryIDs)
	if err != nil {
		s.writeServiceError(w, r, "query transcripts", err)
		return
	}
	s.writeJSON(w, http.StatusOK, answer)
}

// submit hands req to q. Started and queued requests answer 202; rejected
// and duplicate requests answer 200 with the outcome in the body.
func (s *apiServer) submit(w http.ResponseWriter, r *http.Request, q JobQueue, req jobs.Request) {
	if strings.TrimSpace(req.EpisodeID) == "" {
		s.writeError(w, http.StatusBadRequest, "episode id is required")
		return
	}
	ctx := services.WithRequestID(r.Context(), r.Header.Get("X-Request-ID"))
	result, err := q.Submit(ctx, req)
	if err != nil {
		s.writeServiceError(w, r, "submit "+string(q.Kind()), err)
		return
	}
	status := http.StatusOK
	if result.Outcome == jobs.OutcomeStarted || result.Outcome == jobs.OutcomeQueued {
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, result)
}

func (s *apiServer) queueView(q JobQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, q.Query(r.PathValue("id")))
	}
}

func (s *apiServer) clearQueue(q JobQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed := q.Clear(strings.TrimSpace(r.URL.Query().Get("library")))
		s.writeJSON(w, http.StatusOK, api.ClearQueueResponse{Cleared: removed})
	}
}

func (s *apiServer) loadEpisode(w http.ResponseWriter, r *http.Request) (*store.Episode, bool) {
	id := r.PathValue("id")
	episode, err := s.daemon.deps.Store.GetEpisode(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "get episode", err)
		return nil, false
	}
	if episode == nil {
		s.writeError(w, http.StatusNotFound, "episode not found")
		return nil, false
	}
	return episode, true
}
