package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"castscribe/internal/api"
	"castscribe/internal/config"
	"castscribe/internal/deps"
	"castscribe/internal/events"
	"castscribe/internal/jobs"
	"castscribe/internal/logging"
	"castscribe/internal/preflight"
	"castscribe/internal/qa"
	"castscribe/internal/store"
	"castscribe/internal/tasks"
)

// EpisodeStore is the persistence surface the API needs.
type EpisodeStore interface {
	UpsertEpisode(ctx context.Context, episode *store.Episode) (*store.Episode, error)
	GetEpisode(ctx context.Context, id string) (*store.Episode, error)
	GetSummary(ctx context.Context, episodeID string) (*store.Summary, error)
	DeleteSummary(ctx context.Context, episodeID string) (bool, error)
	SummaryStats(ctx context.Context) (map[store.SummaryStatus]int, error)
	Path() string
}

// JobQueue is the queue surface shared by transcriptions and summaries.
type JobQueue interface {
	Kind() jobs.Kind
	Submit(ctx context.Context, req jobs.Request) (jobs.SubmitResult, error)
	Query(containerID string) jobs.QueueView
	Current() (jobs.Job, bool)
	Locate(targetID string) jobs.Location
	Len() int
	Clear(containerID string) int
	Start(ctx context.Context) error
	Stop()
}

// QA answers transcript questions and indexes transcripts.
type QA interface {
	Query(ctx context.Context, question string, libraryIDs []string) (qa.Answer, error)
	Vectorize(ctx context.Context, episode *store.Episode, podcastTitle, libraryID string) (int, error)
}

// VectorDeleter removes summary chunk vectors by id.
type VectorDeleter interface {
	DeleteIDs(ctx context.Context, ids []string) error
}

// TaskLister exposes tracked tasks.
type TaskLister interface {
	List() []tasks.Task
}

// Notifier sends a test notification.
type Notifier interface {
	TestNotification(ctx context.Context) error
}

// Background is a long-lived loop started and stopped with the daemon.
type Background interface {
	Start(ctx context.Context) error
	Stop()
}

// Deps bundles the collaborators the daemon coordinates.
type Deps struct {
	Store          EpisodeStore
	Transcriptions JobQueue
	Summaries      JobQueue
	QA             QA
	SummaryVectors VectorDeleter
	Bus            *events.Bus
	Tasks          TaskLister
	Notifier       Notifier
	Reaper         Background
	// Preflight runs once at startup; nil skips it.
	Preflight func(ctx context.Context) []preflight.Result
	// Dependencies is evaluated on each status request; nil skips it.
	Dependencies func() []deps.Status
}

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	group     *errgroup.Group
	done      <-chan struct{}

	checksMu sync.RWMutex
	checks   []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, d Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || d.Store == nil || d.Transcriptions == nil || d.Summaries == nil || d.Bus == nil {
		return nil, errors.New("daemon requires config, store, both queues, and event bus")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if d.Tasks == nil {
		d.Tasks = tasks.NewTracker(nil)
	}

	lockPath := cfg.LockPath()
	daemon := &Daemon{
		cfg:      cfg,
		deps:     d,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	daemon.api = newAPIServer(cfg, daemon, logger)
	return daemon, nil
}

// Start acquires the daemon lock and launches the queues, the reaper and the
// API server under one errgroup.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another castscribe daemon instance is already running")
	}

	var listener net.Listener
	if d.api != nil {
		listener, err = d.api.listen()
		if err != nil {
			_ = d.lock.Unlock()
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	for _, component := range d.components() {
		group.Go(func() error { return runComponent(groupCtx, component) })
	}
	if listener != nil {
		group.Go(func() error { return d.api.serve(groupCtx, listener) })
	}
	if d.deps.Preflight != nil {
		group.Go(func() error {
			d.runPreflight(groupCtx)
			return nil
		})
	}

	d.cancel = cancel
	d.group = group
	d.done = groupCtx.Done()
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("castscribe daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api_bind", d.cfg.Paths.APIBind),
	)
	return nil
}

// Run starts the daemon and blocks until ctx is cancelled or a component
// fails, then stops it.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-d.done
	return d.Stop()
}

// Stop stops background processing and releases the daemon lock. It returns
// the first component failure, if any.
func (d *Daemon) Stop() error {
	if !d.running.Load() {
		return nil
	}

	d.cancel()
	err := d.group.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("castscribe daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	return err
}

// Addr returns the bound API address, or nil before Start.
func (d *Daemon) Addr() net.Addr {
	if d.api == nil {
		return nil
	}
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		DatabasePath:     d.deps.Store.Path(),
		LockFilePath:     d.lockPath,
		EventSubscribers: d.deps.Bus.Subscribers(),
	}
	if status.Running {
		status.StartedAt = d.startedAt.UTC().Format(time.RFC3339)
	}
	for _, q := range []JobQueue{d.deps.Transcriptions, d.deps.Summaries} {
		current, running := q.Current()
		status.Queues = append(status.Queues, api.SummarizeQueue(q.Kind(), q.Len(), current, running))
	}
	if stats, err := d.deps.Store.SummaryStats(ctx); err != nil {
		d.logger.Warn("summary stats unavailable", logging.Error(err))
	} else if len(stats) > 0 {
		status.SummaryStats = make(map[string]int, len(stats))
		for state, count := range stats {
			status.SummaryStats[string(state)] = count
		}
	}
	d.checksMu.RLock()
	status.Checks = api.FromPreflight(d.checks)
	d.checksMu.RUnlock()
	if d.deps.Dependencies != nil {
		status.Dependencies = api.FromDependencies(d.deps.Dependencies())
	}
	return status
}

func (d *Daemon) components() []Background {
	components := []Background{d.deps.Transcriptions, d.deps.Summaries}
	if d.deps.Reaper != nil {
		components = append(components, d.deps.Reaper)
	}
	return components
}

func (d *Daemon) runPreflight(ctx context.Context) {
	results := d.deps.Preflight(ctx)
	d.checksMu.Lock()
	d.checks = results
	d.checksMu.Unlock()
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldErrorHint, "verify configuration and service availability"),
			logging.String(logging.FieldImpact, "dependent operations will fail until resolved"),
		)
	}
}

func runComponent(ctx context.Context, component Background) error {
	if err := component.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	component.Stop()
	return nil
}
