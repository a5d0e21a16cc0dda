// Package log defines the structured event logging interface for the SAPI
// layer.
//
// Components emit Event records through the Logger interface instead of
// writing to a concrete backend, so applications choose where events go:
// NoopLogger discards them, SlogAdapter forwards them to log/slog, and
// MultiLogger fans them out to several destinations at once.
package log
