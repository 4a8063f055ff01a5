// Package logging assembles structured slog loggers and formatting helpers
// used across the linebridge adapters.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so adapter code tags log lines
// consistently with components, subscriptions, and error hints. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so both adapter
// processes emit data with the same shape.
package logging
