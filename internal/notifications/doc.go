// Package notifications sends ntfy push notifications for run completion and
// halting errors.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check configuration before publishing.
package notifications
