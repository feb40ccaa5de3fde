package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"castscribe/internal/events"
	"castscribe/internal/jobs"
	"castscribe/internal/logging"
	"castscribe/internal/store"
)

const (
	DefaultInterval       = 60 * time.Second
	DefaultStallThreshold = time.Hour

	// TimeoutMessage is reported for every reaped operation.
	TimeoutMessage = "Transcription operation timed out"
)

// Store is the episode persistence the reaper needs.
type Store interface {
	ListWithTranscriptionOperation(ctx context.Context) ([]*store.Episode, error)
	ClearTranscriptionOperationIfMatch(ctx context.Context, id, token string) (bool, error)
}

// Queue is the queue surface used to release a stalled running job.
type Queue interface {
	Current() (jobs.Job, bool)
	Abandon(targetID, reason string) bool
}

// Target ties a queue to the token prefix its operations carry.
type Target struct {
	Queue       Queue
	TokenPrefix string
	EventPrefix string
}

// Report summarizes one sweep.
type Report struct {
	Checked   int
	Stalled   int
	Cleared   int
	Abandoned int
	Skipped   int
}

// Publisher receives timeout events.
type Publisher interface {
	Publish(event events.Event) events.Event
}

// Reaper periodically clears stalled operations.
type Reaper struct {
	store     Store
	targets   []Target
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	interval  time.Duration
	threshold time.Duration

	mu   sync.Mutex
	cron *cron.Cron
}

// Option customizes a Reaper.
type Option func(*Reaper)

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(r *Reaper) {
		if p != nil {
			r.publisher = p
		}
	}
}

// WithLogger sets the reaper logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reaper) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reaper) {
		if now != nil {
			r.now = now
		}
	}
}

// WithInterval sets the sweep interval.
func WithInterval(d time.Duration) Option {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithStallThreshold sets the age after which an operation counts as stalled.
func WithStallThreshold(d time.Duration) Option {
	return func(r *Reaper) {
		if d > 0 {
			r.threshold = d
		}
	}
}

// New constructs a reaper over st for the given queue targets.
func New(st Store, targets []Target, opts ...Option) *Reaper {
	r := &Reaper{
		store:     st,
		targets:   targets,
		logger:    logging.NewNop(),
		now:       time.Now,
		interval:  DefaultInterval,
		threshold: DefaultStallThreshold,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = logging.NewComponentLogger(r.logger, "reaper")
	return r
}

// Sweep clears every operation older than the stall threshold.
func (r *Reaper) Sweep(ctx context.Context) (Report, error) {
	var report Report
	episodes, err := r.store.ListWithTranscriptionOperation(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending operations: %w", err)
	}
	report.Checked = len(episodes)
	if len(episodes) > 0 {
		r.logger.Info("checking pending operations", logging.Int("count", len(episodes)))
	}

	now := r.now()
	var errs []error
	for _, episode := range episodes {
		token := episode.TranscriptionOperation
		started, err := jobs.ParseOperationToken(token)
		if err != nil {
			report.Skipped++
			logging.WarnWithContext(r.logger, "unparsable operation token", "operation_token_invalid",
				logging.String(logging.FieldEpisodeID, episode.ID),
				logging.String("token", token),
				logging.Error(err),
				logging.String(logging.FieldImpact, "operation left in place"),
			)
			continue
		}
		age := now.Sub(started)
		if age <= r.threshold {
			continue
		}
		report.Stalled++
		logging.WarnWithContext(r.logger, "stalled operation detected", "operation_stalled",
			logging.String(logging.FieldEpisodeID, episode.ID),
			logging.String("token", token),
			logging.Duration("age", age),
			logging.String(logging.FieldImpact, "operation cleared and reported as timed out"),
		)

		cleared, err := r.store.ClearTranscriptionOperationIfMatch(ctx, episode.ID, token)
		if err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", episode.ID, err))
			continue
		}
		if !cleared {
			continue
		}
		report.Cleared++

		target := r.targetFor(token)
		if target != nil && target.Queue != nil {
			if current, ok := target.Queue.Current(); ok && current.TargetID == episode.ID {
				if target.Queue.Abandon(episode.ID, TimeoutMessage) {
					report.Abandoned++
					continue
				}
			}
		}
		r.publishTimeout(target, episode)
	}
	return report, errors.Join(errs...)
}

func (r *Reaper) targetFor(token string) *Target {
	for i := range r.targets {
		if strings.HasPrefix(token, r.targets[i].TokenPrefix) {
			return &r.targets[i]
		}
	}
	return nil
}

func (r *Reaper) publishTimeout(target *Target, episode *store.Episode) {
	if r.publisher == nil {
		return
	}
	prefix := jobs.KindTranscription.EventPrefix()
	if target != nil && target.EventPrefix != "" {
		prefix = target.EventPrefix
	}
	r.publisher.Publish(events.Event{
		Type:      prefix + "_error",
		Scope:     episode.LibraryID,
		EpisodeID: episode.ID,
		Message:   TimeoutMessage,
		Data: map[string]any{
			"libraryItemId": episode.LibraryItemID,
			"episodeId":     episode.ID,
			"error":         TimeoutMessage,
		},
	})
}

// Start schedules sweeps every interval until Stop or ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return errors.New("reaper already running")
	}
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{logger: r.logger})))
	schedule := fmt.Sprintf("@every %s", r.interval)
	if _, err := c.AddFunc(schedule, func() { r.runSweep(ctx) }); err != nil {
		return fmt.Errorf("schedule reaper: %w", err)
	}
	c.Start()
	r.cron = c
	r.logger.Info("reaper scheduled",
		logging.Duration("interval", r.interval),
		logging.Duration("stall_threshold", r.threshold),
	)
	return nil
}

// Stop halts scheduling and waits for a running sweep to return.
func (r *Reaper) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

func (r *Reaper) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := r.Sweep(ctx)
	if err != nil {
		r.logger.Error("stall sweep failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "reaper_sweep_failed"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
		return
	}
	if report.Cleared > 0 {
		r.logger.Info("stall sweep cleared operations",
			logging.Int("cleared", report.Cleared),
			logging.Int("abandoned", report.Abandoned),
		)
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{logging.Error(err), logging.String(logging.FieldEventType, "reaper_panic")}, keysAndValues...)
	l.logger.Error(msg, args...)
}
