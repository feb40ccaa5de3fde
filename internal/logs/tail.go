package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	maxLineBytes = 1024 * 1024
	defaultPoll  = 250 * time.Millisecond
)

// Filter reports whether a line should be shown. A nil Filter keeps every line.
type Filter func(line string) bool

// Contains keeps lines that include every non-empty needle.
func Contains(needles ...string) Filter {
	var active []string
	for _, n := range needles {
		if n = strings.TrimSpace(n); n != "" {
			active = append(active, n)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(line string) bool {
		for _, n := range active {
			if !strings.Contains(line, n) {
				return false
			}
		}
		return true
	}
}

// Last returns up to limit trailing lines of path and the offset of its end.
// A missing file yields no lines and offset zero.
func Last(path string, limit int, keep Filter) ([]string, int64, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	err = scanLines(file, keep, func(line string) {
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}

	lines := make([]string, count)
	if count == limit {
		for i := range count {
			lines[i] = ring[(next+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, end, nil
}

// ReadFrom returns the complete lines after offset and the new offset. An
// offset past the end of the file (after truncation) restarts at zero.
func ReadFrom(path string, offset int64, keep Filter) ([]string, int64, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	reader := bufio.NewReader(file)
	for {
		raw, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// A partial trailing line is picked up on the next read.
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(raw))
		line := strings.TrimRight(raw, "\r\n")
		if keep == nil || keep(line) {
			lines = append(lines, line)
		}
	}
	return lines, offset, nil
}

// Follow calls onLine for every line appended after offset, polling every
// poll interval until ctx ends. It returns nil when ctx is cancelled.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, keep Filter, onLine func(string)) error {
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		lines, next, err := ReadFrom(path, offset, keep)
		if err != nil {
			return err
		}
		for _, line := range lines {
			onLine(line)
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func openLog(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

func scanLines(r io.Reader, keep Filter, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if keep == nil || keep(line) {
			fn(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	return nil
}
