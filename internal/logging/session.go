package logging

import "log/slog"

// FieldSessionID identifies one command invocation across all of its records.
const FieldSessionID = "session_id"

// WithSession returns a logger whose records carry sessionID. The ID is bound
// before any group is opened, so it stays a top-level key in every sink.
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if sessionID == "" {
		return logger
	}
	return logger.With(slog.String(FieldSessionID, sessionID))
}
