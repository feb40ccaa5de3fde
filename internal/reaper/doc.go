// Package reaper clears transcription operations that have been in flight for
// longer than the stall threshold.
//
// Every sweep lists episodes carrying an operation token, reads the creation
// time embedded in the token, and clears tokens older than the threshold.
// When the stalled episode is the running job of a registered queue, the job
// is abandoned so the queue advances. Sweeps run on a robfig/cron schedule.
package reaper
