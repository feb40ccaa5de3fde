package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"castscribe/internal/daemon"
	"castscribe/internal/jobs"
	"castscribe/internal/logging"
	"castscribe/internal/testsupport"
)

func TestWireBuildsStartableDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transcription.Enabled = true
	cfg.Transcription.AutoSummarize = true
	st := testsupport.MustOpenStore(t, cfg)

	deps := Wire(cfg, st, logging.NewNop())
	if deps.Transcriptions == nil || deps.Summaries == nil || deps.QA == nil || deps.Reaper == nil {
		t.Fatalf("expected all components wired, got %+v", deps)
	}
	if kind := deps.Transcriptions.Kind(); kind != jobs.KindTranscription {
		t.Fatalf("transcription queue kind = %q", kind)
	}
	if kind := deps.Summaries.Kind(); kind != jobs.KindSummary {
		t.Fatalf("summary queue kind = %q", kind)
	}
	if got := len(deps.Dependencies()); got != 2 {
		t.Fatalf("expected ffmpeg and ffprobe statuses, got %d", got)
	}

	d, err := daemon.New(cfg, deps, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if d.Addr() == nil {
		t.Fatal("expected bound api address")
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestChunkOptionsOverridesDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Summary.TargetChunkChars = 800
	cfg.Summary.MinChunkChars = 400
	cfg.Summary.OverlapSentences = 0

	opts := chunkOptions(cfg)
	if opts.TargetChars != 800 || opts.MinChars != 400 || opts.OverlapSentences != 0 {
		t.Fatalf("unexpected chunk options %+v", opts)
	}
}

func TestRetryPolicyFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transcription.MaxRetries = 4
	cfg.Transcription.RetryDelayMS = 250
	cfg.Transcription.RetryMultiplier = 3
	cfg.Transcription.RetryMaxDelayMS = 2000

	policy := retryPolicy(cfg)
	if policy.MaxRetries != 4 || policy.InitialDelay != 250*time.Millisecond ||
		policy.Multiplier != 3 || policy.MaxDelay != 2*time.Second {
		t.Fatalf("unexpected policy %+v", policy)
	}
}

func TestEnsureCurrentLogPointerReplacesLink(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "castscribe-1.log")
	second := filepath.Join(dir, "castscribe-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "castscribe.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "castscribe-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "castscribed.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file contains %q", data)
	}
}
