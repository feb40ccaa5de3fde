package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"castscribe/internal/api"
	"castscribe/internal/config"
	"castscribe/internal/events"
	"castscribe/internal/logging"
	"castscribe/internal/services"
	"castscribe/internal/tasks"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Q&A requests wait on the chat model and event sockets stay open, so
		// writes are bounded per handler rather than per server.
		IdleTimeout: 60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)

	mux.HandleFunc("POST /api/episodes", s.handleUpsertEpisode)
	mux.HandleFunc("GET /api/episodes/{id}", s.handleGetEpisode)
	mux.HandleFunc("GET /api/episodes/{id}/transcript", s.handleGetTranscript)
	mux.HandleFunc("POST /api/episodes/{id}/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /api/episodes/{id}/vectorize", s.handleVectorize)
	mux.HandleFunc("GET /api/libraries/{id}/transcriptions", s.queueView(s.daemon.deps.Transcriptions))
	mux.HandleFunc("DELETE /api/transcriptions/queue", s.clearQueue(s.daemon.deps.Transcriptions))

	mux.HandleFunc("POST /api/episodes/{id}/summary", s.handleSummarize)
	mux.HandleFunc("GET /api/episodes/{id}/summary", s.handleGetSummary)
	mux.HandleFunc("GET /api/episodes/{id}/summary/status", s.handleSummaryStatus)
	mux.HandleFunc("DELETE /api/episodes/{id}/summary", s.handleDeleteSummary)
	mux.HandleFunc("GET /api/libraries/{id}/summaries", s.queueView(s.daemon.deps.Summaries))
	mux.HandleFunc("DELETE /api/summaries/queue", s.clearQueue(s.daemon.deps.Summaries))

	mux.HandleFunc("POST /api/transcripts/query", s.handleQuery)

	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.Handle("GET /api/events/ws", events.NewHub(s.daemon.deps.Bus, s.logger))
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
	mux.HandleFunc("POST /api/notifications/test", s.handleTestNotification)

	root := http.NewServeMux()
	root.HandleFunc("GET /api/health", s.handleHealth)
	root.Handle("/", authMiddleware(token, mux))
	return root
}

func (s *apiServer) listen() (net.Listener, error) {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return nil, fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return listener, nil
}

func (s *apiServer) addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// serve blocks until ctx is cancelled, then shuts the server down.
func (s *apiServer) serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
		_ = s.server.Close()
	}
	return nil
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		since = parsed
	}
	bus := s.daemon.deps.Bus
	evts := bus.Since(since)
	if evts == nil {
		evts = []events.Event{}
	}
	s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: evts, Next: bus.LastSeq()})
}

func (s *apiServer) handleTasks(w http.ResponseWriter, _ *http.Request) {
	list := s.daemon.deps.Tasks.List()
	if list == nil {
		list = []tasks.Task{}
	}
	s.writeJSON(w, http.StatusOK, api.TasksResponse{Tasks: list})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	notifier := s.daemon.deps.Notifier
	if notifier == nil || strings.TrimSpace(s.daemon.cfg.Notifications.NtfyTopic) == "" {
		s.writeError(w, http.StatusConflict, "ntfy topic not configured")
		return
	}
	if err := notifier.TestNotification(r.Context()); err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to send notification: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{Message: "test notification sent"})
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrPrecondition):
		status = http.StatusConflict
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusServiceUnavailable
	default:
		switch services.Classify(err) {
		case services.CategoryTimeout:
			status = http.StatusGatewayTimeout
		case services.CategoryProvider:
			status = http.StatusBadGateway
		}
	}
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "api request failed", "api_request_failed",
			logging.String("operation", operation),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
