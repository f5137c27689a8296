// Package logging assembles structured slog loggers used across alfalfa.
//
// It owns the console and JSON handlers, fans records out to an optional log
// file, tags records with a per-invocation session ID, and samples per-frame
// progress so long streams do not flood the output. A no-op logger is
// provided for tests and library defaults.
package logging
