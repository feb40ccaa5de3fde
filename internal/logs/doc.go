// Package logs reads the daemon log file for the `castscribe logs` command.
//
// Last returns the trailing lines of a file with bounded memory, ReadFrom
// resumes at a byte offset, and Follow polls for appended lines until its
// context ends. Truncated or rotated files restart from the beginning.
package logs
