package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sensorlink/sensorlink-go/pkg/discovery"
	"github.com/sensorlink/sensorlink-go/pkg/driver"
	"github.com/sensorlink/sensorlink-go/pkg/log"
	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
	"github.com/sensorlink/sensorlink-go/pkg/sensor"
	"github.com/sensorlink/sensorlink-go/pkg/sensor/simdriver"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// Diagnostic echo service published next to the sensor services.
const (
	DiagService = "diag"
	DiagClass   = "diagnostics"
)

// Hub wires the host, the simulated services, discovery and the sensor
// manager together.
type Hub struct {
	config Config
	logger *slog.Logger

	trace   *log.FileLogger
	host    *driver.Host
	sim     *simdriver.Sim
	adv     *discovery.MDNSAdvertiser
	browser *discovery.MDNSBrowser
	manager *sensor.Manager
	ctrl    *sensor.Controller

	pingSeq atomic.Uint32
}

// NewHub starts every component and builds the sensor catalogue. On error
// the components started so far are shut down again.
func NewHub(ctx context.Context, config Config, logger *slog.Logger) (h *Hub, err error) {
	h = &Hub{config: config, logger: logger}
	defer func() {
		if err != nil {
			h.Close()
			h = nil
		}
	}()

	tracer, err := h.openTrace()
	if err != nil {
		return h, err
	}

	hostCfg := driver.DefaultHostConfig()
	hostCfg.TraceLogger = tracer
	hostCfg.Logger = logger
	h.host = driver.NewHost(hostCfg)

	sim := config.Simulation
	sim.Logger = logger
	if h.sim, err = simdriver.Start(h.host, sim); err != nil {
		return h, fmt.Errorf("start simulation: %w", err)
	}

	if _, err := driver.PublishEcho(h.host, DiagService, DiagClass); err != nil {
		return h, fmt.Errorf("publish diagnostics: %w", err)
	}

	if config.Advertise {
		if err := h.advertise(ctx); err != nil {
			return h, err
		}
	}

	dir, err := h.directory()
	if err != nil {
		return h, err
	}

	mcfg := sensor.DefaultConfig()
	mcfg.Binder = h.host
	mcfg.Directory = dir
	mcfg.Class = config.Class
	mcfg.MaxSensors = config.MaxSensors
	mcfg.TraceLogger = tracer
	mcfg.Logger = logger
	if h.manager, err = sensor.NewManager(ctx, mcfg); err != nil {
		return h, fmt.Errorf("open sensor manager: %w", err)
	}
	h.ctrl = sensor.NewController(h.manager, sensor.DefaultControllerConfig())

	infos, err := h.manager.GetAllSensors(ctx)
	if err != nil {
		return h, fmt.Errorf("build sensor catalogue: %w", err)
	}
	logger.Info("sensor catalogue ready", "sensors", len(infos), "services", len(h.manager.Services()))

	for _, id := range config.Enable {
		if err := h.ctrl.Enable(ctx, id); err != nil {
			return h, fmt.Errorf("enable sensor %d: %w", id, err)
		}
	}
	return h, nil
}

// openTrace builds the trace logger chain. Debug logging mirrors trace
// events to the operational log.
func (h *Hub) openTrace() (log.Logger, error) {
	var loggers []log.Logger
	if h.config.Trace != "" {
		fl, err := log.NewFileLogger(h.config.Trace)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		h.trace = fl
		loggers = append(loggers, fl)
	}
	if h.logger.Enabled(context.Background(), slog.LevelDebug) {
		loggers = append(loggers, log.NewSlogAdapter(h.logger))
	}

	switch len(loggers) {
	case 0:
		return nil, nil
	case 1:
		return loggers[0], nil
	default:
		return log.NewMultiLogger(loggers...), nil
	}
}

func (h *Hub) advertise(ctx context.Context) error {
	acfg := discovery.DefaultAdvertiserConfig()
	acfg.Interface = h.config.Interface
	adv, err := discovery.NewMDNSAdvertiser(acfg)
	if err != nil {
		return fmt.Errorf("create advertiser: %w", err)
	}
	h.adv = adv

	n, err := adv.AdvertiseClass(ctx, h.host, h.config.Hub, h.config.Class)
	if err != nil {
		return fmt.Errorf("advertise %q services: %w", h.config.Class, err)
	}
	h.logger.Info("advertising services", "hub", h.config.Hub, "class", h.config.Class, "count", n)
	return nil
}

// directory returns the class directory the manager discovers through.
func (h *Hub) directory() (driver.Directory, error) {
	if h.config.Discovery != DiscoveryMDNS {
		return h.host, nil
	}

	bcfg := discovery.DefaultBrowserConfig()
	bcfg.Interface = h.config.Interface
	bcfg.BrowseTimeout = h.config.BrowseTimeout
	browser, err := discovery.NewMDNSBrowser(bcfg)
	if err != nil {
		return nil, fmt.Errorf("create browser: %w", err)
	}
	h.browser = browser

	dir := discovery.NewMDNSDirectory(browser, bcfg.BrowseTimeout)
	dir.Hub = h.config.Hub
	return dir, nil
}

// Manager returns the sensor manager.
func (h *Hub) Manager() *sensor.Manager { return h.manager }

// Controller returns the sensor controller.
func (h *Hub) Controller() *sensor.Controller { return h.ctrl }

// Sim returns the simulated services.
func (h *Hub) Sim() *simdriver.Sim { return h.sim }

// Ping round-trips msg through the diagnostic echo service and returns
// the dispatch time.
func (h *Hub) Ping(ctx context.Context, msg string) (time.Duration, error) {
	svc, err := h.host.Bind(DiagService)
	if err != nil {
		return 0, err
	}
	defer svc.Recycle()

	req := pbuf.ObtainDefault()
	defer req.Recycle()
	reply := pbuf.ObtainDefault()
	defer reply.Recycle()

	in := driver.EchoRequest{Seq: h.pingSeq.Add(1), Message: msg}
	if err := req.WriteCBOR(in); err != nil {
		return 0, err
	}

	start := time.Now()
	if err := svc.Dispatch(ctx, driver.CmdEcho, req, reply); err != nil {
		return 0, err
	}
	rtt := time.Since(start)

	var out driver.EchoReply
	if err := reply.ReadCBOR(&out); err != nil {
		return 0, err
	}
	if out.Echo.Seq != in.Seq || out.Echo.Message != in.Message {
		return 0, wire.Errorf(wire.StatusIO, "echo mismatch: seq %d", out.Echo.Seq)
	}
	return rtt, nil
}

// Close shuts every component down in reverse start order.
func (h *Hub) Close() error {
	if h.manager != nil {
		h.manager.Release()
	}
	if h.browser != nil {
		h.browser.Stop()
	}
	if h.adv != nil {
		h.adv.StopAll()
	}
	if h.sim != nil {
		h.sim.Close()
	}

	var errs []error
	if h.host != nil {
		errs = append(errs, h.host.Close())
	}
	if h.trace != nil {
		errs = append(errs, h.trace.Close())
	}
	return errors.Join(errs...)
}
