// Package platform provides the board-specific console used for diagnostics.
package platform

import "log/slog"

// NewLogger writes text records to the board console.
func NewLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(Console(), &slog.HandlerOptions{Level: level}))
}
