package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"castscribe/internal/config"
	"castscribe/internal/daemon"
	"castscribe/internal/deps"
	"castscribe/internal/language"
	"castscribe/internal/logging"
	"castscribe/internal/preflight"
	"castscribe/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the castscribe daemon and blocks until a signal arrives or a
// component fails.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("castscribe-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update castscribe.log link: %v\n", err)
	}
	pidPath := filepath.Join(cfg.Paths.LogDir, "castscribed.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open episode store", logging.Error(err))
		return err
	}
	defer st.Close()

	d, err := daemon.New(cfg, Wire(cfg, st, logger), logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the api bind address and the daemon lock file"),
		)
		return err
	}
	logger.Info("castscribe daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "castscribe.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []any{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("openai_key_present", strings.TrimSpace(cfg.OpenAI.APIKey) != ""),
		logging.String("chat_model", cfg.OpenAI.ChatModel),
		logging.String("transcription_model", cfg.OpenAI.TranscriptionModel),
		logging.String("transcription_language", language.DisplayName(cfg.Transcription.Language)),
		logging.String("vector_store_url", cfg.VectorStore.URL),
		logging.Bool("transcription_enabled", cfg.Transcription.Enabled),
		logging.Bool("summary_enabled", cfg.Summary.Enabled),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	}
	statuses := preflight.CheckSystemDeps(cfg)
	for _, status := range statuses {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
			logging.String(key+"_path", status.Path),
		)
	}
	logger.Info("dependency snapshot", attrs...)
	if missing := deps.Missing(statuses); len(missing) > 0 {
		logging.WarnWithContext(logger, "audio tools missing", "dependency_missing",
			logging.String("missing", strings.Join(missing, ", ")),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set transcription.ffmpeg_binary"),
			logging.String(logging.FieldImpact, "oversized episodes cannot be split for transcription"),
		)
	}
}
