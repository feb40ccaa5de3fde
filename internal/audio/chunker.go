package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"castscribe/internal/logging"
	"castscribe/internal/media/ffprobe"
	"castscribe/internal/services"
	"castscribe/internal/textutil"
)

const (
	// DefaultMaxFileSize is the provider's hard upload ceiling.
	DefaultMaxFileSize int64 = 25 * 1024 * 1024
	// DefaultTargetSize is the per-segment size the codec-copy pass aims for.
	DefaultTargetSize int64 = 20 * 1024 * 1024
	// DefaultSplitTimeout bounds each ffmpeg invocation.
	DefaultSplitTimeout = 10 * time.Minute

	MinSegmentSeconds      = 60
	MaxSegmentSeconds      = 1800
	DefaultSegmentSeconds  = 600
	FallbackSegmentSeconds = 300
	FallbackBitrate        = "64k"
)

// ErrChunkTooLarge is returned when even the compression fallback yields a
// segment above the ceiling.
var ErrChunkTooLarge = errors.New("audio chunk exceeds maximum file size")

// Prober reports container metadata for an audio file.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

type (
	commandRunner func(ctx context.Context, name string, args ...string) error
	fileStatter   func(path string) (os.FileInfo, error)
	fileRemover   func(path string) error
	dirReader     func(path string) ([]os.DirEntry, error)
)

// Chunker decides whether audio needs splitting and performs the split.
type Chunker struct {
	ffmpeg      string
	probe       Prober
	maxFileSize int64
	targetSize  int64
	timeout     time.Duration
	logger      *slog.Logger

	run     commandRunner
	stat    fileStatter
	remove  fileRemover
	readDir dirReader
}

// ChunkerOption customizes a Chunker.
type ChunkerOption func(*Chunker)

// WithMaxFileSize overrides the hard per-file ceiling.
func WithMaxFileSize(size int64) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.maxFileSize = size
		}
	}
}

// WithTargetSize overrides the size the codec-copy pass aims for.
func WithTargetSize(size int64) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.targetSize = size
		}
	}
}

// WithSplitTimeout overrides the per-invocation ffmpeg timeout.
func WithSplitTimeout(timeout time.Duration) ChunkerOption {
	return func(c *Chunker) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) ChunkerOption {
	return func(c *Chunker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) ChunkerOption {
	return func(c *Chunker) {
		if runner != nil {
			c.run = runner
		}
	}
}

// NewChunker constructs a Chunker that shells out to ffmpegPath.
func NewChunker(ffmpegPath string, probe Prober, opts ...ChunkerOption) *Chunker {
	ffmpegPath = strings.TrimSpace(ffmpegPath)
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	c := &Chunker{
		ffmpeg:      ffmpegPath,
		probe:       probe,
		maxFileSize: DefaultMaxFileSize,
		targetSize:  DefaultTargetSize,
		timeout:     DefaultSplitTimeout,
		logger:      logging.NewNop(),
		run:         runCommand,
		stat:        os.Stat,
		remove:      os.Remove,
		readDir:     os.ReadDir,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxFileSize reports the configured ceiling.
func (c *Chunker) MaxFileSize() int64 {
	return c.maxFileSize
}

// NeedsSplit reports whether path exceeds the ceiling, along with its size.
func (c *Chunker) NeedsSplit(path string) (bool, int64, error) {
	info, err := c.stat(path)
	if err != nil {
		return false, 0, fmt.Errorf("stat audio: %w", err)
	}
	return info.Size() > c.maxFileSize, info.Size(), nil
}

// SegmentSeconds computes the segment duration that keeps a codec-copy segment
// near targetBytes at the given bitrate (bits per second).
func SegmentSeconds(bitRate int64, targetBytes int64) int {
	if bitRate <= 0 || targetBytes <= 0 {
		return DefaultSegmentSeconds
	}
	bytesPerSecond := float64(bitRate) / 8
	seconds := int(float64(targetBytes) / bytesPerSecond)
	if seconds < MinSegmentSeconds {
		return MinSegmentSeconds
	}
	if seconds > MaxSegmentSeconds {
		return MaxSegmentSeconds
	}
	return seconds
}

// Split writes ordered segments of path into outputDir and returns their paths.
// Every returned file is at or below the ceiling. On failure all produced files
// are removed and no paths are returned.
func (c *Chunker) Split(ctx context.Context, path, outputDir string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, services.Wrap(services.ErrValidation, "audio", "split", "empty source path", nil)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk directory: %w", err)
	}

	base := chunkBaseName(path)
	seconds := c.segmentSecondsFor(ctx, path)
	c.logger.Info("splitting audio",
		logging.String("source", path),
		logging.Int("segment_seconds", seconds),
		logging.Int64("max_file_size", c.maxFileSize),
	)

	pattern := filepath.Join(outputDir, base+"_%03d"+filepath.Ext(path))
	copyArgs := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-f", "segment",
		"-segment_time", strconv.Itoa(seconds),
		"-c", "copy",
		"-reset_timestamps", "1",
		pattern,
	}
	chunks, err := c.runPass(ctx, "copy", copyArgs, outputDir, base)
	if err != nil {
		return nil, err
	}
	oversized, err := c.firstOversized(chunks)
	if err != nil {
		c.Cleanup(chunks)
		return nil, err
	}
	if oversized == "" {
		return chunks, nil
	}

	logging.WarnWithContext(c.logger, "codec-copy segment exceeds ceiling; re-encoding", "audio_split_fallback",
		logging.String("segment", oversized),
		logging.String(logging.FieldImpact, "segments re-encoded to mono 64k mp3"),
	)
	c.Cleanup(chunks)

	fallbackPattern := filepath.Join(outputDir, base+"_%03d.mp3")
	fallbackArgs := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-f", "segment",
		"-segment_time", strconv.Itoa(FallbackSegmentSeconds),
		"-ab", FallbackBitrate,
		"-ac", "1",
		fallbackPattern,
	}
	chunks, err = c.runPass(ctx, "compress", fallbackArgs, outputDir, base)
	if err != nil {
		return nil, err
	}
	oversized, err = c.firstOversized(chunks)
	if err != nil {
		c.Cleanup(chunks)
		return nil, err
	}
	if oversized != "" {
		c.Cleanup(chunks)
		return nil, fmt.Errorf("%w: %s", ErrChunkTooLarge, filepath.Base(oversized))
	}
	return chunks, nil
}

// Cleanup removes every path, ignoring files that are already gone.
func (c *Chunker) Cleanup(paths []string) {
	for _, p := range paths {
		if err := c.remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("remove chunk failed", logging.String("path", p), logging.Error(err))
		}
	}
}

func (c *Chunker) segmentSecondsFor(ctx context.Context, path string) int {
	if c.probe == nil {
		return DefaultSegmentSeconds
	}
	result, err := c.probe.Inspect(ctx, path)
	if err != nil {
		logging.WarnWithContext(c.logger, "ffprobe failed; using default segment length", "audio_probe_failed",
			logging.String("source", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify ffprobe is installed and the file is readable"),
		)
		return DefaultSegmentSeconds
	}
	return SegmentSeconds(result.AudioBitRate(), c.targetSize)
}

func (c *Chunker) runPass(ctx context.Context, pass string, args []string, outputDir, base string) ([]string, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	runErr := c.run(runCtx, c.ffmpeg, args...)
	chunks, listErr := c.listChunks(outputDir, base)
	if runErr != nil {
		c.Cleanup(chunks)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "audio", "ffmpeg "+pass, fmt.Sprintf("exceeded %s", c.timeout), runErr)
		}
		return nil, services.Wrap(services.ErrExternalTool, "audio", "ffmpeg "+pass, "split failed", runErr)
	}
	if listErr != nil {
		c.Cleanup(chunks)
		return nil, fmt.Errorf("list chunks: %w", listErr)
	}
	if len(chunks) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "audio", "ffmpeg "+pass, "no segments produced", nil)
	}
	return chunks, nil
}

func (c *Chunker) firstOversized(chunks []string) (string, error) {
	for _, chunk := range chunks {
		info, err := c.stat(chunk)
		if err != nil {
			return "", fmt.Errorf("stat chunk: %w", err)
		}
		if info.Size() > c.maxFileSize {
			return chunk, nil
		}
	}
	return "", nil
}

// listChunks returns <base>_NNN files in outputDir ordered by segment index.
func (c *Chunker) listChunks(outputDir, base string) ([]string, error) {
	entries, err := c.readDir(outputDir)
	if err != nil {
		return nil, err
	}
	prefix := base + "_"
	type indexed struct {
		path  string
		index int
	}
	var found []indexed
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		digits := strings.TrimSuffix(strings.TrimPrefix(name, prefix), filepath.Ext(name))
		index, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		found = append(found, indexed{path: filepath.Join(outputDir, name), index: index})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })
	paths := make([]string, 0, len(found))
	for _, item := range found {
		paths = append(paths, item.path)
	}
	return paths, nil
}

func chunkBaseName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = textutil.SanitizeFileName(name)
	if name == "" {
		return "chunk"
	}
	return name
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
