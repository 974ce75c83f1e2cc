// Command sensorhub runs simulated sensor services behind a sensor manager.
//
// The hub publishes the configured sensor services on an in-process
// driver host, discovers them (locally or over mDNS), builds the sensor
// catalogue and streams converted events.
//
// Usage:
//
//	sensorhub [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-hub string         Hub name used in mDNS records
//	-discovery string   Discovery mode: local, mdns (default "local")
//	-advertise          Advertise services over mDNS
//	-interface string   Restrict mDNS to this network interface
//	-max-sensors int    Maximum catalogue size
//	-trace string       Write a CBOR trace to this file
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-enable string      Comma-separated sensor ids to enable at startup
//	-watch              Print every delivered event
//	-interactive        Start the interactive console
//
// Examples:
//
//	# Start the built-in services with the console
//	sensorhub -interactive
//
//	# Stream ECG samples and capture a trace
//	sensorhub -enable 131 -watch -trace hub.slog
//
//	# Discover the services through mDNS
//	sensorhub -advertise -discovery mdns -config /etc/sensorlink/hub.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sensorlink/sensorlink-go/cmd/sensorhub/interactive"
	"github.com/sensorlink/sensorlink-go/pkg/sensor"
)

// flags holds values that override the config file when set.
type flags struct {
	configFile  string
	hub         string
	discovery   string
	advertise   bool
	iface       string
	maxSensors  int
	trace       string
	logLevel    string
	enable      string
	watch       bool
	interactive bool
}

func parseFlags(args []string) (flags, map[string]bool, error) {
	var f flags
	fs := flag.NewFlagSet("sensorhub", flag.ContinueOnError)
	fs.StringVar(&f.configFile, "config", "", "Configuration file path (YAML)")
	fs.StringVar(&f.hub, "hub", "", "Hub name used in mDNS records")
	fs.StringVar(&f.discovery, "discovery", DiscoveryLocal, "Discovery mode: local, mdns")
	fs.BoolVar(&f.advertise, "advertise", false, "Advertise services over mDNS")
	fs.StringVar(&f.iface, "interface", "", "Restrict mDNS to this network interface")
	fs.IntVar(&f.maxSensors, "max-sensors", 0, "Maximum catalogue size")
	fs.StringVar(&f.trace, "trace", "", "Write a CBOR trace to this file")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&f.enable, "enable", "", "Comma-separated sensor ids to enable at startup")
	fs.BoolVar(&f.watch, "watch", false, "Print every delivered event")
	fs.BoolVar(&f.interactive, "interactive", false, "Start the interactive console")
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// buildConfig loads the config file and applies explicitly set flags.
func buildConfig(f flags, set map[string]bool) (Config, error) {
	cfg := DefaultConfig()
	if f.configFile != "" {
		var err error
		if cfg, err = LoadConfig(f.configFile); err != nil {
			return cfg, err
		}
	}

	if set["hub"] {
		cfg.Hub = f.hub
	}
	if set["discovery"] {
		cfg.Discovery = f.discovery
	}
	if set["advertise"] {
		cfg.Advertise = f.advertise
	}
	if set["interface"] {
		cfg.Interface = f.iface
	}
	if set["max-sensors"] {
		cfg.MaxSensors = f.maxSensors
	}
	if set["trace"] {
		cfg.Trace = f.trace
	}
	if set["log-level"] {
		cfg.LogLevel = f.logLevel
	}
	if set["watch"] {
		cfg.Watch = f.watch
	}
	if set["enable"] {
		ids, err := parseIDs(f.enable)
		if err != nil {
			return cfg, err
		}
		cfg.Enable = ids
	}
	return cfg, cfg.Validate()
}

func parseIDs(s string) ([]int32, error) {
	var ids []int32
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid sensor id %q", part)
		}
		ids = append(ids, int32(id))
	}
	return ids, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, _ := parseLevel(level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func main() {
	f, set, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	cfg, err := buildConfig(f, set)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var console *interactive.Console
	out := io.Writer(os.Stdout)
	if f.interactive {
		// The console is attached once the hub is up; its writer keeps log
		// lines off the prompt.
		console, err = interactive.New(nil, nil, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start console: %v\n", err)
			os.Exit(1)
		}
		out = console.Stdout()
	}
	logger := newLogger(out, cfg.LogLevel)

	logger.Info("starting sensor hub", "hub", cfg.Hub, "class", cfg.Class, "discovery", cfg.Discovery)
	hub, err := NewHub(ctx, cfg, logger)
	if err != nil {
		logger.Error("hub failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := hub.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	if cfg.Watch {
		watch(hub.Controller(), out, logger)
	}

	if console != nil {
		console.Attach(hub.Manager(), hub.Controller(), hub.Sim())
		console.SetPing(hub.Ping)
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case <-ctx.Done():
	}
	logger.Info("shutting down")
}

// watch prints every event of both groups.
func watch(c *sensor.Controller, out io.Writer, logger *slog.Logger) {
	for _, g := range []sensor.GroupType{sensor.GroupTraditional, sensor.GroupMedical} {
		if _, err := c.Register(g, func(ev *sensor.Event) error {
			fmt.Fprintf(out, "[%s] sensor %d t=%d %v\n", g, ev.SensorID, ev.Timestamp, ev.Values)
			return nil
		}); err != nil {
			logger.Warn("watch failed", "group", g, "error", err)
		}
	}
}
