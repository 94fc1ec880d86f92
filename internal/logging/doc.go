// Package logging constructs the slog loggers used across cinecast and
// provides thin attribute helpers so call sites do not import log/slog
// directly for common field types.
package logging
