// Package deps resolves the external audio binaries the transcription
// pipeline shells out to and reports whether they can be run.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// lookPath resolves a command to an executable path.
var lookPath = exec.LookPath

// Tool is one external binary the audio pipeline invokes.
type Tool struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a tool resolved. Path is the resolved executable
// when Available is true.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// AudioTools returns ffmpeg (splitting) and ffprobe (bitrate probing). Blank
// commands resolve the tool from PATH.
func AudioTools(ffmpegCommand, ffprobeCommand string) []Tool {
	return []Tool{
		{
			Name:        "FFmpeg",
			Command:     commandOr(ffmpegCommand, "ffmpeg"),
			Description: "Splits oversized episode audio before transcription",
		},
		{
			Name:        "FFprobe",
			Command:     commandOr(ffprobeCommand, "ffprobe"),
			Description: "Reads episode bitrate to size audio segments",
		},
	}
}

// Check resolves every tool and returns one status per tool, in order.
func Check(tools []Tool) []Status {
	out := make([]Status, 0, len(tools))
	for _, tool := range tools {
		status := Status{
			Name:        tool.Name,
			Command:     strings.TrimSpace(tool.Command),
			Description: strings.TrimSpace(tool.Description),
			Optional:    tool.Optional,
		}
		switch path, err := resolve(status.Command); {
		case status.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		default:
			status.Available = true
			status.Path = path
		}
		out = append(out, status)
	}
	return out
}

// Missing returns the names of required tools that did not resolve.
func Missing(statuses []Status) []string {
	var names []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			names = append(names, status.Name)
		}
	}
	return names
}

func resolve(command string) (string, error) {
	if command == "" {
		return "", exec.ErrNotFound
	}
	return lookPath(command)
}

func commandOr(command, fallback string) string {
	if trimmed := strings.TrimSpace(command); trimmed != "" {
		return trimmed
	}
	return fallback
}
