// Package interactive provides the interactive command-line interface
// for the sensor hub.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/sensorlink/sensorlink-go/pkg/sensor"
	"github.com/sensorlink/sensorlink-go/pkg/sensor/simdriver"
)

// Console handles interactive mode for sensorhub.
type Console struct {
	manager *sensor.Manager
	ctrl    *sensor.Controller
	sim     *simdriver.Sim
	rl      *readline.Instance
	out     io.Writer

	// outMu serializes event output with command output.
	outMu    sync.Mutex
	watching map[sensor.GroupType]sensor.CallbackID

	ping PingFunc
}

// PingFunc round-trips a message through a diagnostic service.
type PingFunc func(ctx context.Context, msg string) (time.Duration, error)

// New creates a console reading from the terminal.
func New(m *sensor.Manager, c *sensor.Controller, sim *simdriver.Sim) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hub> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	con := newConsole(m, c, sim, rl.Stdout())
	con.rl = rl
	return con, nil
}

func newConsole(m *sensor.Manager, c *sensor.Controller, sim *simdriver.Sim, out io.Writer) *Console {
	return &Console{
		manager:  m,
		ctrl:     c,
		sim:      sim,
		out:      out,
		watching: make(map[sensor.GroupType]sensor.CallbackID),
	}
}

// Attach binds the console to a running hub. It must be called before Run.
func (c *Console) Attach(m *sensor.Manager, ctrl *sensor.Controller, sim *simdriver.Sim) {
	c.manager = m
	c.ctrl = ctrl
	c.sim = sim
}

// SetPing enables the ping command.
func (c *Console) SetPing(fn PingFunc) {
	c.ping = fn
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use this for log output to avoid interfering with the command line.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			c.printf("Exiting...\n")
			cancel()
			return
		}

		if quit := c.Exec(ctx, line); quit {
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns true when the console should exit.
func (c *Console) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "sensors", "ls":
		c.cmdSensors(ctx)
	case "info":
		c.cmdInfo(args)
	case "services":
		c.cmdServices()
	case "enable":
		c.ok(c.withSensor(args, "enable <id>", func(id int32) error { return c.ctrl.Enable(ctx, id) }))
	case "disable":
		c.ok(c.withSensor(args, "disable <id>", func(id int32) error { return c.ctrl.Disable(ctx, id) }))
	case "batch":
		c.cmdBatch(ctx, args)
	case "mode":
		c.cmdMode(ctx, args)
	case "option":
		c.cmdOption(ctx, args)
	case "read", "r":
		c.cmdRead(ctx, args)
	case "watch", "w":
		c.cmdWatch(args)
	case "unwatch":
		c.cmdUnwatch(args)
	case "inject":
		c.cmdInject(args)
	case "status":
		c.cmdStatus()
	case "ping":
		c.cmdPing(ctx, args)
	case "release":
		c.watching = make(map[sensor.GroupType]sensor.CallbackID)
		c.manager.Release()
		c.printf("Manager released\n")
	case "open":
		c.cmdOpen(ctx)
	case "quit", "exit", "q":
		c.printf("Exiting...\n")
		return true
	default:
		c.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	c.printf(`
Sensor Hub Commands:
  Catalogue:
    sensors              - List all sensors
    info <id>            - Show one sensor
    services             - List bound services and their sensor counts

  Control:
    enable <id>          - Start sampling
    disable <id>         - Stop sampling
    batch <id> <ms> [ms] - Set sampling and report interval
    mode <id> <mode>     - Set reporting mode
    option <id> <hex>    - Set option word
    read <id>            - Read one sample set

  Events:
    watch [group]        - Print events (traditional, medical, all)
    unwatch [group]      - Stop printing events
    inject <svc> <id> <raw...> - Deliver a raw sample set

  Lifecycle:
    status               - Show manager and callback state
    release              - Release the manager
    open                 - Re-open the manager and rebuild the catalogue
    ping [msg]           - Round-trip the diagnostic echo service

  General:
    help                 - Show this help
    quit                 - Exit hub
`)
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) cmdSensors(ctx context.Context) {
	infos, err := c.manager.GetAllSensors(ctx)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("%-6s %-16s %-15s %-12s %-8s %s\n", "ID", "NAME", "TYPE", "SERVICE", "GROUP", "RANGE")
	for _, info := range infos {
		svc := "-"
		if s, ok := c.manager.Lookup(info.SensorID); ok {
			svc = s.Name()
		}
		c.printf("%-6d %-16s %-15s %-12s %-8s %.3f\n",
			info.SensorID, info.Name, info.TypeID, svc, sensor.GroupOf(info.SensorID), info.MaxRange)
	}
}

func (c *Console) cmdInfo(args []string) {
	c.withSensor(args, "info <id>", func(id int32) error {
		info, err := c.manager.GetSensorInfo(id)
		if err != nil {
			return err
		}
		c.printf("Sensor %d\n", info.SensorID)
		c.printf("  Name:     %s\n", info.Name)
		c.printf("  Vendor:   %s\n", info.Vendor)
		c.printf("  Type:     %s\n", info.TypeID)
		c.printf("  Firmware: %s  Hardware: %s\n", info.FirmwareVersion, info.HardwareVersion)
		c.printf("  Range:    %.4f  Accuracy: %.4f  Power: %.3f\n", info.MaxRange, info.Accuracy, info.Power)
		c.printf("  Group:    %s\n", sensor.GroupOf(id))
		return nil
	})
}

func (c *Console) cmdServices() {
	svcs := c.manager.Services()
	counts := c.manager.SensorCounts()
	if len(svcs) == 0 {
		c.printf("No services bound (state: %s)\n", c.manager.State())
		return
	}
	for i, svc := range svcs {
		c.printf("  %-12s binding %s  sensors %d\n", svc.Name(), svc.BindingID(), counts[i])
	}
}

func (c *Console) cmdBatch(ctx context.Context, args []string) {
	if len(args) < 2 {
		c.printf("Usage: batch <id> <sampling-ms> [report-ms]\n")
		return
	}
	sampling, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		c.printf("Invalid sampling interval: %s\n", args[1])
		return
	}
	var report float64
	if len(args) > 2 {
		if report, err = strconv.ParseFloat(args[2], 64); err != nil {
			c.printf("Invalid report interval: %s\n", args[2])
			return
		}
	}
	c.ok(c.withSensor(args[:1], "", func(id int32) error {
		return c.ctrl.SetBatch(ctx, id, msToNs(sampling), msToNs(report))
	}))
}

func msToNs(ms float64) int64 {
	return int64(ms * float64(time.Millisecond))
}

func (c *Console) cmdMode(ctx context.Context, args []string) {
	if len(args) < 2 {
		c.printf("Usage: mode <id> <mode>\n")
		return
	}
	mode, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		c.printf("Invalid mode: %s\n", args[1])
		return
	}
	c.ok(c.withSensor(args[:1], "", func(id int32) error {
		return c.ctrl.SetMode(ctx, id, int32(mode))
	}))
}

func (c *Console) cmdOption(ctx context.Context, args []string) {
	if len(args) < 2 {
		c.printf("Usage: option <id> <hex>\n")
		return
	}
	option, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 32)
	if err != nil {
		c.printf("Invalid option: %s\n", args[1])
		return
	}
	c.ok(c.withSensor(args[:1], "", func(id int32) error {
		return c.ctrl.SetOption(ctx, id, uint32(option))
	}))
}

func (c *Console) cmdRead(ctx context.Context, args []string) {
	c.withSensor(args, "read <id>", func(id int32) error {
		ev, err := c.ctrl.ReadData(ctx, id)
		if err != nil {
			return err
		}
		c.printEvent(ev)
		return nil
	})
}

func (c *Console) cmdWatch(args []string) {
	groups, ok := c.parseGroups(args)
	if !ok {
		return
	}
	for _, g := range groups {
		if _, watching := c.watching[g]; watching {
			continue
		}
		id, err := c.ctrl.Register(g, c.onEvent)
		if err != nil {
			c.printf("Error watching %s: %v\n", g, err)
			continue
		}
		c.watching[g] = id
		c.printf("Watching %s events\n", g)
	}
}

func (c *Console) cmdUnwatch(args []string) {
	groups, ok := c.parseGroups(args)
	if !ok {
		return
	}
	for _, g := range groups {
		id, watching := c.watching[g]
		if !watching {
			continue
		}
		if err := c.ctrl.Unregister(g, id); err != nil {
			c.printf("Error: %v\n", err)
		}
		delete(c.watching, g)
		c.printf("Stopped watching %s events\n", g)
	}
}

func (c *Console) parseGroups(args []string) ([]sensor.GroupType, bool) {
	if len(args) == 0 || args[0] == "all" {
		return []sensor.GroupType{sensor.GroupTraditional, sensor.GroupMedical}, true
	}
	switch strings.ToLower(args[0]) {
	case "traditional", "t":
		return []sensor.GroupType{sensor.GroupTraditional}, true
	case "medical", "m":
		return []sensor.GroupType{sensor.GroupMedical}, true
	default:
		c.printf("Unknown group: %s (traditional, medical, all)\n", args[0])
		return nil, false
	}
}

func (c *Console) cmdInject(args []string) {
	if len(args) < 3 {
		c.printf("Usage: inject <service> <id> <raw...>\n")
		return
	}
	svc, err := c.sim.Service(args[0])
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	id, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		c.printf("Invalid sensor id: %s\n", args[1])
		return
	}
	raw := make([]int32, 0, len(args)-2)
	for _, a := range args[2:] {
		v, err := strconv.ParseInt(a, 10, 32)
		if err != nil {
			c.printf("Invalid sample: %s\n", a)
			return
		}
		raw = append(raw, int32(v))
	}
	n, err := svc.Inject(int32(id), raw)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Delivered to %d listener(s)\n", n)
}

func (c *Console) cmdStatus() {
	c.printf("Manager:  %s\n", c.manager.State())
	c.printf("Services: %d  Sensors: %d\n", len(c.manager.Services()), c.manager.SensorCount())
	c.printf("Group:    %t\n", c.ctrl.HasGroup())
	for _, g := range []sensor.GroupType{sensor.GroupTraditional, sensor.GroupMedical} {
		c.printf("  %-12s registered=%t\n", g, c.ctrl.Registered(g))
	}
}

func (c *Console) cmdPing(ctx context.Context, args []string) {
	if c.ping == nil {
		c.printf("Ping not available\n")
		return
	}
	msg := "ping"
	if len(args) > 0 {
		msg = strings.Join(args, " ")
	}
	rtt, err := c.ping(ctx, msg)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("%s: %s\n", msg, rtt)
}

func (c *Console) cmdOpen(ctx context.Context) {
	if err := c.manager.Open(ctx); err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	infos, err := c.manager.GetAllSensors(ctx)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Manager open, %d sensors\n", len(infos))
}

// withSensor parses args[0] as a sensor id and runs fn. It reports
// whether fn ran and succeeded.
func (c *Console) withSensor(args []string, usage string, fn func(id int32) error) bool {
	if len(args) < 1 {
		c.printf("Usage: %s\n", usage)
		return false
	}
	id, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		c.printf("Invalid sensor id: %s\n", args[0])
		return false
	}
	if err := fn(int32(id)); err != nil {
		c.printf("Error: %v\n", err)
		return false
	}
	return true
}

func (c *Console) ok(done bool) {
	if done {
		c.printf("OK\n")
	}
}

func (c *Console) onEvent(ev *sensor.Event) error {
	c.printEvent(ev)
	return nil
}

func (c *Console) printEvent(ev *sensor.Event) {
	values := make([]string, len(ev.Values))
	for i, v := range ev.Values {
		values[i] = strconv.FormatFloat(float64(v), 'f', 4, 32)
	}
	c.printf("[%s] sensor %d t=%d mode=%d [%s]\n",
		sensor.GroupOf(ev.SensorID), ev.SensorID, ev.Timestamp, ev.Mode, strings.Join(values, " "))
}
