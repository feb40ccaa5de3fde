package jobs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OperationTokenPrefix starts every transcription operation token.
const OperationTokenPrefix = "whisper-transcription"

// OperationToken builds the in-flight marker stored on an episode. The
// creation time is embedded as unix milliseconds in the third dash field.
func OperationToken(now time.Time, libraryItemID, episodeID string) string {
	return fmt.Sprintf("%s-%d-%s-%s", OperationTokenPrefix, now.UnixMilli(), libraryItemID, episodeID)
}

// ParseOperationToken extracts the creation time from a token.
func ParseOperationToken(token string) (time.Time, error) {
	parts := strings.Split(token, "-")
	if len(parts) < 3 {
		return time.Time{}, fmt.Errorf("malformed operation token %q", token)
	}
	millis, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || millis <= 0 {
		return time.Time{}, fmt.Errorf("malformed operation token %q: invalid timestamp", token)
	}
	return time.UnixMilli(millis), nil
}
