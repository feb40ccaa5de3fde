package qa

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"castscribe/internal/logging"
	"castscribe/internal/services"
	"castscribe/internal/services/chroma"
	"castscribe/internal/services/llm"
	"castscribe/internal/store"
	"castscribe/internal/transcript"
)

const (
	DefaultTopK     = 3
	DefaultCacheTTL = 5 * time.Minute

	stageName = "qa"
)

// VectorStore is the subset of the Chroma client used for transcript passages.
type VectorStore interface {
	Upsert(ctx context.Context, docs []chroma.Document) error
	Query(ctx context.Context, text string, filter chroma.Filter, topK int) ([]chroma.QueryResult, error)
	DeleteWhere(ctx context.Context, filter chroma.Filter) error
}

// Completer produces a JSON chat completion.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Passage is a transcript chunk returned by the vector store.
type Passage struct {
	Content      string
	EpisodeID    string
	PodcastID    string
	EpisodeTitle string
	PodcastTitle string
	StartTime    *float64
	LibraryID    string
	Distance     float64
}

// Answer is the response to a transcript question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Service vectorizes transcripts and answers questions over them.
type Service struct {
	vectors   VectorStore
	completer Completer
	logger    *slog.Logger
	cache     *gocache.Cache
	topK      int
	threshold float64
	chunking  transcript.ChunkOptions
}

// Option customizes a Service.
type Option func(*Service)

// WithTopK sets the number of passages retrieved per question.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithSimilarityThreshold sets the Jaccard cut-off used by FilterSources.
func WithSimilarityThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold > 0 && threshold <= 1 {
			s.threshold = threshold
		}
	}
}

// WithCacheTTL sets how long answers are cached. Zero or negative disables
// caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl <= 0 {
			s.cache = nil
			return
		}
		s.cache = gocache.New(ttl, 2*ttl)
	}
}

// WithChunkOptions sets the transcript chunking used by Vectorize.
func WithChunkOptions(opts transcript.ChunkOptions) Option {
	return func(s *Service) {
		s.chunking = opts
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a Q&A service.
func NewService(vectors VectorStore, completer Completer, opts ...Option) *Service {
	s := &Service{
		vectors:   vectors,
		completer: completer,
		logger:    logging.NewNop(),
		cache:     gocache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
		topK:      DefaultTopK,
		threshold: DefaultSimilarityThreshold,
		chunking:  transcript.DefaultChunkOptions(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = logging.NewComponentLogger(s.logger, "qa")
	return s
}

// Vectorize replaces the stored passages for an episode and returns the
// number of passages written. Empty podcastTitle and libraryID fall back to
// the episode's own values.
func (s *Service) Vectorize(ctx context.Context, episode *store.Episode, podcastTitle, libraryID string) (int, error) {
	if episode == nil || strings.TrimSpace(episode.ID) == "" {
		return 0, services.Wrap(services.ErrValidation, stageName, "vectorize", "episode is required", nil)
	}
	tr := transcript.Normalize(episode.Transcript)
	if tr.Empty() {
		return 0, services.Wrap(services.ErrPrecondition, stageName, "vectorize", "episode has no transcript", nil)
	}
	if strings.TrimSpace(podcastTitle) == "" {
		podcastTitle = episode.PodcastTitle
	}
	if strings.TrimSpace(libraryID) == "" {
		libraryID = episode.LibraryID
	}

	if err := s.vectors.DeleteWhere(ctx, chroma.Eq("episodeId", episode.ID)); err != nil {
		return 0, fmt.Errorf("delete existing passages: %w", err)
	}

	chunks := transcript.ProcessIntoChunks(tr.TimedSegments(), s.chunking)
	if len(chunks) == 0 {
		return 0, nil
	}
	docs := make([]chroma.Document, 0, len(chunks))
	for i, chunk := range chunks {
		meta := map[string]any{
			"episodeId":    episode.ID,
			"podcastId":    episode.PodcastID,
			"episodeTitle": episode.Title,
			"podcastTitle": podcastTitle,
			"libraryId":    libraryID,
		}
		if chunk.StartTime != nil {
			meta["startTime"] = *chunk.StartTime
		}
		if chunk.EndTime != nil {
			meta["endTime"] = *chunk.EndTime
		}
		docs = append(docs, chroma.Document{
			ID:       episode.ID + "_" + strconv.Itoa(i),
			Text:     chunk.Text,
			Metadata: meta,
		})
	}
	if err := s.vectors.Upsert(ctx, docs); err != nil {
		return 0, fmt.Errorf("upsert passages: %w", err)
	}
	if s.cache != nil {
		s.cache.Flush()
	}
	s.logger.Info("episode vectorized",
		logging.String(logging.FieldEpisodeID, episode.ID),
		logging.String(logging.FieldLibraryID, libraryID),
		logging.Int("passages", len(docs)),
	)
	return len(docs), nil
}

// Query answers question from passages in the given libraries.
func (s *Service) Query(ctx context.Context, question string, libraryIDs []string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, services.Wrap(services.ErrValidation, stageName, "query", "question is required", nil)
	}
	ids := normalizeIDs(libraryIDs)
	if len(ids) == 0 {
		return Answer{}, services.Wrap(services.ErrValidation, stageName, "query", "at least one library id is required", nil)
	}

	key := cacheKey(question, ids)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			if answer, ok := cached.(Answer); ok {
				return answer, nil
			}
		}
	}

	passages, err := s.search(ctx, question, ids)
	if err != nil {
		return Answer{}, err
	}
	if len(passages) == 0 {
		answer := Answer{Answer: NotFoundAnswer, Sources: []Source{}}
		s.store(key, answer)
		return answer, nil
	}

	content, err := s.completer.CompleteJSON(ctx, systemPrompt, buildUserPrompt(question, passages))
	if err != nil {
		return Answer{}, fmt.Errorf("answer question: %w", err)
	}
	var response llmResponse
	if err := llm.DecodeJSON(content, &response); err != nil {
		s.logger.Warn("answer payload could not be decoded",
			logging.Error(err),
			logging.String(logging.FieldEventType, "qa_decode_failed"),
			logging.String(logging.FieldErrorHint, "the chat model returned malformed JSON"),
		)
		return Answer{}, services.Wrap(services.ErrExternalTool, stageName, "decode answer", "invalid answer payload", err)
	}

	answer := Answer{
		Answer:  strings.TrimSpace(response.Answer),
		Sources: FilterSources(mapSources(response.RelevantSegments, passages), s.threshold),
	}
	if answer.Sources == nil {
		answer.Sources = []Source{}
	}
	s.store(key, answer)
	return answer, nil
}

func (s *Service) search(ctx context.Context, question string, libraryIDs []string) ([]Passage, error) {
	results, err := s.vectors.Query(ctx, question, chroma.In("libraryId", libraryIDs), s.topK)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", err)
	}
	passages := make([]Passage, 0, len(results))
	for _, result := range results {
		passage := Passage{
			Content:      result.Text,
			EpisodeID:    chroma.MetaString(result.Metadata, "episodeId"),
			PodcastID:    chroma.MetaString(result.Metadata, "podcastId"),
			EpisodeTitle: chroma.MetaString(result.Metadata, "episodeTitle"),
			PodcastTitle: chroma.MetaString(result.Metadata, "podcastTitle"),
			LibraryID:    chroma.MetaString(result.Metadata, "libraryId"),
			Distance:     result.Distance,
		}
		if start, ok := chroma.MetaFloat(result.Metadata, "startTime"); ok {
			passage.StartTime = &start
		}
		passages = append(passages, passage)
	}
	slices.SortStableFunc(passages, func(a, b Passage) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})
	return passages, nil
}

func (s *Service) store(key string, answer Answer) {
	if s.cache != nil {
		s.cache.SetDefault(key, answer)
	}
}

type llmResponse struct {
	Answer           string       `json:"answer"`
	RelevantSegments []llmSegment `json:"relevantSegments"`
}

type llmSegment struct {
	Timestamp    string `json:"timestamp"`
	Context      string `json:"context"`
	EpisodeTitle string `json:"episodeTitle"`
	PodcastTitle string `json:"podcastTitle"`
}

func buildUserPrompt(question string, passages []Passage) string {
	lines := make([]string, 0, len(passages))
	for _, p := range passages {
		lines = append(lines, fmt.Sprintf("[Episode: %s, Podcast: %s, Timestamp: %s] %s",
			p.EpisodeTitle, p.PodcastTitle, passageTimestamp(p), p.Content))
	}
	return "Context:\n" + strings.Join(lines, "\n\n") + "\n\nQuestion: " + question
}

func passageTimestamp(p Passage) string {
	if p.StartTime == nil {
		return FormatTimestamp(0)
	}
	return FormatTimestamp(*p.StartTime)
}

func mapSources(segments []llmSegment, passages []Passage) []Source {
	if len(segments) > maxRelevantSegments {
		segments = segments[:maxRelevantSegments]
	}
	sources := make([]Source, 0, len(segments))
	for _, seg := range segments {
		src := Source{
			Timestamp:         seg.Timestamp,
			EpisodeTitle:      seg.EpisodeTitle,
			PodcastTitle:      seg.PodcastTitle,
			TranscriptContent: seg.Context,
		}
		match, found := matchPassage(seg, passages)
		if found {
			src.EpisodeID = match.EpisodeID
			src.PodcastID = match.PodcastID
		}
		if _, ok := ParseTimestamp(seg.Timestamp); !ok {
			if found {
				src.Timestamp = passageTimestamp(match)
			} else {
				src.Timestamp = FormatTimestamp(math.NaN())
			}
		}
		sources = append(sources, src)
	}
	return sources
}

func matchPassage(seg llmSegment, passages []Passage) (Passage, bool) {
	for _, p := range passages {
		if p.EpisodeTitle == seg.EpisodeTitle && p.PodcastTitle == seg.PodcastTitle {
			return p, true
		}
	}
	return Passage{}, false
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func cacheKey(question string, libraryIDs []string) string {
	return strings.ToLower(question) + "\x00" + strings.Join(libraryIDs, ",")
}
