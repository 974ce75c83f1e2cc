// Package commands implements the sensorlog CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sensorlink/sensorlink-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Service   string
}

// filter converts v into a reader filter.
func (v ViewFilter) filter() log.Filter {
	return log.Filter{
		Layer:     v.Layer,
		Direction: v.Direction,
		Category:  v.Category,
		Service:   v.Service,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [bind:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	bindingID := shortenID(event.BindingID)

	var typeLabel string
	switch {
	case event.Dispatch != nil:
		typeLabel = "Dispatch"
	case event.Notify != nil:
		typeLabel = "Notify"
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [bind:%s] %-3s %s %s", ts, bindingID, event.Direction.String(), event.Layer.String(), typeLabel)
	if event.Service != "" {
		fmt.Fprintf(w, " %s", event.Service)
	}
	fmt.Fprintln(w)

	switch {
	case event.Dispatch != nil:
		formatDispatchDetails(w, event.Dispatch)
	case event.Notify != nil:
		formatNotifyDetails(w, event.Notify)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenID returns the first 8 characters of a binding id.
func shortenID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatDispatchDetails(w io.Writer, d *log.DispatchEvent) {
	fmt.Fprintf(w, "  Cmd: %d\n", d.CmdID)
	fmt.Fprintf(w, "  Request: %d bytes  Reply: %d bytes\n", d.RequestSize, d.ReplySize)
	fmt.Fprintf(w, "  Status: %s (%d)\n", d.Status.String(), int32(d.Status))
	fmt.Fprintf(w, "  Duration: %s\n", formatDuration(d.Duration))
}

func formatNotifyDetails(w io.Writer, n *log.NotifyEvent) {
	fmt.Fprintf(w, "  EventID: 0x%04X\n", n.EventID)
	fmt.Fprintf(w, "  Size: %d bytes\n", n.Size)
	fmt.Fprintf(w, "  Listeners: %d", n.Listeners)
	if n.Failed > 0 {
		fmt.Fprintf(w, " (%d failed)", n.Failed)
	}
	fmt.Fprintln(w)
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %s (%d)\n", err.Code.String(), int32(*err.Code))
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer string (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "dispatch":
		return log.LayerDispatch, nil
	case "event":
		return log.LayerEvent, nil
	case "registry":
		return log.LayerRegistry, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be dispatch, event, or registry)", s)
	}
}

// ParseDirectionFlag parses a direction string (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "dispatch":
		return log.CategoryDispatch, nil
	case "notify":
		return log.CategoryNotify, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be dispatch, notify, state, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.filter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
