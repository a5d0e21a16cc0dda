package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes SAPI events to an slog.Logger.
// Useful for development when you want to see sensor events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Error events go to Error level,
// everything else to Debug.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("category", event.Category.String()),
	}

	if event.SensorID != nil {
		attrs = append(attrs, slog.Uint64("sensor_id", uint64(*event.SensorID)))
	}
	if event.DeviceType != "" {
		attrs = append(attrs, slog.String("device_type", event.DeviceType))
	}
	if event.Operation != "" {
		attrs = append(attrs, slog.String("operation", event.Operation))
	}
	if event.Status != "" {
		attrs = append(attrs, slog.String("status", event.Status))
	}
	if event.Err != "" {
		attrs = append(attrs, slog.String("error", event.Err))
	}

	level := slog.LevelDebug
	if event.Category == CategoryError {
		level = slog.LevelError
	}

	msg := event.Message
	if msg == "" {
		msg = "sapi"
	}
	a.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
