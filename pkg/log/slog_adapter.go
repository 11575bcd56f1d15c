package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}
	if event.ServiceType != "" {
		attrs = append(attrs, slog.String("service_type", event.ServiceType))
	}

	switch {
	case event.Datagram != nil:
		attrs = append(attrs,
			slog.String("msg_type", event.Datagram.MessageType),
			slog.Int("size", event.Datagram.Size),
		)
		if event.Datagram.USN != "" {
			attrs = append(attrs, slog.String("usn", event.Datagram.USN))
		}
		if event.Datagram.Target != "" {
			attrs = append(attrs, slog.String("target", event.Datagram.Target))
		}
		if event.Datagram.Location != "" {
			attrs = append(attrs, slog.String("location", event.Datagram.Location))
		}
	case event.HTTP != nil:
		attrs = append(attrs,
			slog.String("method", event.HTTP.Method),
			slog.String("url", event.HTTP.URL),
		)
		if event.HTTP.Action != "" {
			attrs = append(attrs, slog.String("action", event.HTTP.Action))
		}
		if event.HTTP.SID != "" {
			attrs = append(attrs, slog.String("sid", event.HTTP.SID))
		}
		if event.HTTP.Status != nil {
			attrs = append(attrs, slog.Int("status", *event.HTTP.Status))
		}
		if event.HTTP.BodySize > 0 {
			attrs = append(attrs, slog.Int("body_size", event.HTTP.BodySize))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	level := slog.LevelDebug
	if event.Category == CategoryError {
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(context.Background(), level, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
