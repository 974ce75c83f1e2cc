package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sensorlink/sensorlink-go/pkg/log"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Services          map[string]*ServiceStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ServiceStats holds statistics for a single service.
type ServiceStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Bindings   map[string]bool
	Dispatches int
	Failures   map[wire.Status]int
	TotalTime  time.Duration
	Notifies   int
	Delivered  int
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Services:          make(map[string]*ServiceStats),
	}
}

// add folds one event into the statistics.
func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}
	if event.Error != nil {
		s.Errors++
	}
	if event.Service == "" {
		return
	}

	svc, ok := s.Services[event.Service]
	if !ok {
		svc = &ServiceStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Bindings:  make(map[string]bool),
			Failures:  make(map[wire.Status]int),
		}
		s.Services[event.Service] = svc
	}
	svc.Events++
	if event.Timestamp.After(svc.LastSeen) {
		svc.LastSeen = event.Timestamp
	}
	if event.BindingID != "" {
		svc.Bindings[event.BindingID] = true
	}
	if d := event.Dispatch; d != nil {
		svc.Dispatches++
		svc.TotalTime += d.Duration
		if d.Status != wire.StatusSuccess {
			svc.Failures[d.Status]++
		}
	}
	if n := event.Notify; n != nil {
		svc.Notifies++
		svc.Delivered += n.Listeners - n.Failed
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Sensorlink Trace Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerDispatch, log.LayerEvent, log.LayerRegistry} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryDispatch, log.CategoryNotify, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Services: %d\n", len(stats.Services))
	names := make([]string, 0, len(stats.Services))
	for name := range stats.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := stats.Services[name]
		fmt.Fprintf(w, "  [%s] %d events, %d bindings\n", name, s.Events, len(s.Bindings))
		if s.Dispatches > 0 {
			avg := s.TotalTime / time.Duration(s.Dispatches)
			fmt.Fprintf(w, "           Dispatches: %d (avg %s)\n", s.Dispatches, formatDuration(avg))
		}
		for _, status := range sortedStatuses(s.Failures) {
			fmt.Fprintf(w, "           %s: %d\n", status.String(), s.Failures[status])
		}
		if s.Notifies > 0 {
			fmt.Fprintf(w, "           Notifies: %d (%d deliveries)\n", s.Notifies, s.Delivered)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

func sortedStatuses(m map[wire.Status]int) []wire.Status {
	out := make([]wire.Status, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}
