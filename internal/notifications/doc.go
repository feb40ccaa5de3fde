// Package notifications pushes job outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// job code can call it unconditionally. Delivery errors are returned to the
// caller, which logs them; a failed push never fails a job.
package notifications
