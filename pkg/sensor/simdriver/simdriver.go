package simdriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sensorlink/sensorlink-go/pkg/driver"
	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
	"github.com/sensorlink/sensorlink-go/pkg/sensor"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// EventID is the event id raised for sample notifications.
const EventID uint32 = 0x5E00

// samplesPerCycle is the waveform period in samples.
const samplesPerCycle = 32

// Sim is a set of published simulated sensor services.
type Sim struct {
	host     *driver.Host
	services []*Service
}

// Start publishes every configured service on h. If any publish fails
// the services published so far are withdrawn.
func Start(h *driver.Host, config Config) (*Sim, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	class := config.Class
	if class == "" {
		class = sensor.DefaultClass
	}

	sim := &Sim{host: h}
	for _, sc := range config.Services {
		svc := newService(sc, config.Logger)
		ep, err := h.Publish(sc.Name, class, svc)
		if err != nil {
			sim.Close()
			return nil, fmt.Errorf("publish %q: %w", sc.Name, err)
		}
		svc.attach(ep)
		sim.services = append(sim.services, svc)
	}
	return sim, nil
}

// Services returns the simulated services in publish order.
func (s *Sim) Services() []*Service {
	out := make([]*Service, len(s.services))
	copy(out, s.services)
	return out
}

// Service returns the named service.
func (s *Sim) Service(name string) (*Service, error) {
	for _, svc := range s.services {
		if svc.name == name {
			return svc, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownService, name)
}

// Close stops sampling and withdraws every service.
func (s *Sim) Close() {
	for _, svc := range s.services {
		svc.stopAll()
		if err := s.host.Unpublish(svc.name); err != nil {
			svc.debugLog("unpublish failed", "error", err)
		}
	}
	s.services = nil
}

// simSensor is the runtime state of one sensor.
type simSensor struct {
	config   SensorConfig
	enabled  bool
	interval time.Duration
	report   time.Duration
	mode     int32
	option   uint32
	seq      uint64
	stop     chan struct{}
}

// Service is one simulated sensor service. It implements driver.Dispatcher.
type Service struct {
	name   string
	logger *slog.Logger

	mu      sync.Mutex
	ep      *driver.Endpoint
	sensors map[int32]*simSensor
	order   []int32

	wg sync.WaitGroup
}

func newService(config ServiceConfig, logger *slog.Logger) *Service {
	s := &Service{
		name:    config.Name,
		logger:  logger,
		sensors: make(map[int32]*simSensor, len(config.Sensors)),
	}
	for _, sc := range config.Sensors {
		s.sensors[sc.ID] = &simSensor{config: sc, interval: sc.Interval}
		s.order = append(s.order, sc.ID)
	}
	return s
}

func (s *Service) attach(ep *driver.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ep = ep
}

// Name returns the service name.
func (s *Service) Name() string {
	return s.name
}

// Dispatch serves GET_INFO_LIST and OPS.
func (s *Service) Dispatch(_ context.Context, _ *driver.Service, cmdID int32, req, reply *pbuf.PBuf) error {
	switch cmdID {
	case sensor.CmdGetInfoList:
		if reply == nil {
			return wire.Errorf(wire.StatusNullPointer, "nil reply")
		}
		if !sensor.WriteInfoList(reply, s.records()) {
			return wire.Errorf(wire.StatusIO, "info list does not fit reply")
		}
		return nil
	case sensor.CmdOps:
		if req == nil {
			return wire.Errorf(wire.StatusNullPointer, "nil request")
		}
		return s.ops(req, reply)
	default:
		return wire.Errorf(wire.StatusNotSupport, "command %d", cmdID)
	}
}

func (s *Service) records() []sensor.InfoRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]sensor.InfoRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sensors[id].config.record())
	}
	return out
}

func (s *Service) ops(req, reply *pbuf.PBuf) error {
	id, ok := req.ReadI32()
	if !ok {
		return wire.Errorf(wire.StatusInvalidParameter, "missing sensor id")
	}
	raw, ok := req.ReadI32()
	if !ok {
		return wire.Errorf(wire.StatusInvalidParameter, "missing sub-command")
	}
	sub := sensor.SubCommand(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.sensors[id]
	if !ok {
		return wire.Errorf(wire.StatusNotFound, "sensor %d on %q", id, s.name)
	}
	s.debugLog("ops", "sensor", id, "sub", sub)

	switch sub {
	case sensor.SubEnable:
		s.enable(ss)
	case sensor.SubDisable:
		s.disable(ss)
	case sensor.SubSetBatch:
		sampling, ok1 := req.ReadI64()
		report, ok2 := req.ReadI64()
		if !ok1 || !ok2 || sampling <= 0 || report < 0 {
			return wire.Errorf(wire.StatusInvalidParameter, "batch for sensor %d", id)
		}
		ss.interval = max(time.Duration(sampling), MinInterval)
		ss.report = time.Duration(report)
		if ss.enabled {
			s.disable(ss)
			s.enable(ss)
		}
	case sensor.SubSetMode:
		mode, ok := req.ReadI32()
		if !ok {
			return wire.Errorf(wire.StatusInvalidParameter, "mode for sensor %d", id)
		}
		ss.mode = mode
	case sensor.SubSetOption:
		option, ok := req.ReadU32()
		if !ok {
			return wire.Errorf(wire.StatusInvalidParameter, "option for sensor %d", id)
		}
		ss.option = option
	case sensor.SubReadData:
		if reply == nil {
			return wire.Errorf(wire.StatusNullPointer, "nil reply")
		}
		h, samples := ss.next()
		if !sensor.WriteEvent(reply, h, samples) {
			return wire.Errorf(wire.StatusIO, "sample does not fit reply")
		}
	default:
		return wire.Errorf(wire.StatusNotSupport, "%s", sub)
	}
	return nil
}

// enable starts the sampling goroutine. Caller holds mu.
func (s *Service) enable(ss *simSensor) {
	if ss.enabled {
		return
	}
	ss.enabled = true
	ss.stop = make(chan struct{})
	s.wg.Add(1)
	go s.sample(ss.config.ID, ss.interval, ss.stop)
}

// disable stops the sampling goroutine. Caller holds mu.
func (s *Service) disable(ss *simSensor) {
	if !ss.enabled {
		return
	}
	ss.enabled = false
	close(ss.stop)
	ss.stop = nil
}

func (s *Service) sample(id int32, interval time.Duration, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.raise(id, stop); err != nil {
				if errors.Is(err, driver.ErrEndpointClosed) {
					return
				}
				s.debugLog("sample dropped", "sensor", id, "error", err)
			}
		}
	}
}

func (s *Service) raise(id int32, stop <-chan struct{}) error {
	s.mu.Lock()
	ss := s.sensors[id]
	if ss.stop != stop {
		s.mu.Unlock()
		return nil
	}
	h, samples := ss.next()
	ep := s.ep
	s.mu.Unlock()

	b := pbuf.ObtainDefault()
	defer b.Recycle()
	if !sensor.WriteEvent(b, h, samples) {
		return wire.Errorf(wire.StatusIO, "encode sample for sensor %d", id)
	}
	return ep.Notify(EventID, b.Bytes())
}

// Inject delivers a caller-supplied sample set to every listener
// synchronously.
func (s *Service) Inject(id int32, raw []int32) (int, error) {
	s.mu.Lock()
	ss, ok := s.sensors[id]
	if !ok {
		s.mu.Unlock()
		return 0, wire.Errorf(wire.StatusNotFound, "sensor %d on %q", id, s.name)
	}
	h := ss.header()
	ep := s.ep
	s.mu.Unlock()

	b := pbuf.ObtainDefault()
	defer b.Recycle()
	if !sensor.WriteEvent(b, h, raw) {
		return 0, wire.Errorf(wire.StatusIO, "encode sample for sensor %d", id)
	}
	return ep.Deliver(EventID, b.Bytes())
}

// Enabled reports whether a sensor is sampling.
func (s *Service) Enabled(id int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.sensors[id]
	return ok && ss.enabled
}

// Interval returns a sensor's sampling interval.
func (s *Service) Interval(id int32) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ss, ok := s.sensors[id]; ok {
		return ss.interval
	}
	return 0
}

// Settings returns a sensor's mode and option word.
func (s *Service) Settings(id int32) (mode int32, option uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ss, ok := s.sensors[id]; ok {
		return ss.mode, ss.option
	}
	return 0, 0
}

// stopAll stops every sampling goroutine and waits for them.
func (s *Service) stopAll() {
	s.mu.Lock()
	for _, ss := range s.sensors {
		s.disable(ss)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (ss *simSensor) header() sensor.EventHeader {
	return sensor.EventHeader{
		SensorID:  ss.config.ID,
		Version:   1,
		Timestamp: time.Now().UnixNano(),
		Option:    ss.option,
		Mode:      ss.mode,
	}
}

// next generates the following sample set. Caller holds the service mu.
func (ss *simSensor) next() (sensor.EventHeader, []int32) {
	ss.seq++
	phase := 2 * math.Pi * float64(ss.seq%samplesPerCycle) / samplesPerCycle
	out := make([]int32, ss.config.Axes)
	for i := range out {
		offset := float64(i) * 2 * math.Pi / float64(len(out))
		out[i] = int32(math.Round(float64(ss.config.Amplitude) * math.Sin(phase+offset)))
	}
	return ss.header(), out
}

func (s *Service) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, append([]any{"service", s.name}, args...)...)
	}
}
