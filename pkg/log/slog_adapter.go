package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger.
// Useful for development when you want to see dispatch traffic in console.
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

	// Add optional identifiers
	if event.BindingID != "" {
		attrs = append(attrs, slog.String("binding_id", event.BindingID))
	}
	if event.Service != "" {
		attrs = append(attrs, slog.String("service", event.Service))
	}

	// Add type-specific attributes
	switch {
	case event.Dispatch != nil:
		attrs = append(attrs,
			slog.Int("cmd", int(event.Dispatch.CmdID)),
			slog.Int("req_size", event.Dispatch.RequestSize),
			slog.Int("reply_size", event.Dispatch.ReplySize),
			slog.String("status", event.Dispatch.Status.String()),
			slog.Duration("duration", event.Dispatch.Duration),
		)
	case event.Notify != nil:
		attrs = append(attrs,
			slog.Uint64("event_id", uint64(event.Notify.EventID)),
			slog.Int("size", event.Notify.Size),
			slog.Int("listeners", event.Notify.Listeners),
		)
		if event.Notify.Failed > 0 {
			attrs = append(attrs, slog.Int("failed", event.Notify.Failed))
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
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.String("error_code", event.Error.Code.String()))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "trace", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
