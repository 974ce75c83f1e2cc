package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sensorlink/sensorlink-go/pkg/driver"
	"github.com/sensorlink/sensorlink-go/pkg/log"
	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	// TraceLogger receives callback and group trace records.
	// If nil, the manager's trace logger is used.
	TraceLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, the manager's logger is used.
	Logger *slog.Logger
}

// DefaultControllerConfig returns a ControllerConfig that inherits the
// manager's loggers.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{}
}

type slot struct {
	id CallbackID
	cb Callback
}

// Controller routes sensor operations and delivers converted events.
type Controller struct {
	m      *Manager
	tracer log.Logger
	logger *slog.Logger

	// regMu serializes Register, Unregister and release. It is taken
	// before mu or eventMu, never while either is held.
	regMu    sync.Mutex
	group    *driver.Group
	groupTok driver.Token
	listener *driver.Listener

	// eventMu guards the event path.
	eventMu sync.Mutex
	slots   [groupCount]slot
	coeffs  map[int32]Coefficient
	nextID  CallbackID
}

// NewController creates a controller for m. The controller picks up the
// manager's coefficients whenever its catalogue is built and tears its
// group down when the manager is released.
func NewController(m *Manager, config ControllerConfig) *Controller {
	c := &Controller{
		m:      m,
		tracer: config.TraceLogger,
		logger: config.Logger,
		coeffs: make(map[int32]Coefficient),
	}
	if c.tracer == nil {
		c.tracer = m.tracer
	}
	if c.logger == nil {
		c.logger = m.config.Logger
	}
	c.listener = &driver.Listener{OnReceive: c.onReceive, Priv: c}

	c.setCoefficients(m.Coefficients())
	m.onClassified(c.setCoefficients)
	m.onRelease(c.release)
	return c
}

// Enable starts sampling on a sensor.
func (c *Controller) Enable(ctx context.Context, sensorID int32) error {
	return c.ops(ctx, sensorID, SubEnable, nil, nil)
}

// Disable stops sampling on a sensor.
func (c *Controller) Disable(ctx context.Context, sensorID int32) error {
	return c.ops(ctx, sensorID, SubDisable, nil, nil)
}

// SetBatch sets the sampling and reporting intervals in nanoseconds.
func (c *Controller) SetBatch(ctx context.Context, sensorID int32, samplingNs, reportNs int64) error {
	return c.ops(ctx, sensorID, SubSetBatch, func(b *pbuf.PBuf) bool {
		return b.WriteI64(samplingNs) && b.WriteI64(reportNs)
	}, nil)
}

// SetMode sets the reporting mode.
func (c *Controller) SetMode(ctx context.Context, sensorID int32, mode int32) error {
	return c.ops(ctx, sensorID, SubSetMode, func(b *pbuf.PBuf) bool {
		return b.WriteI32(mode)
	}, nil)
}

// SetOption sets a driver-defined option word.
func (c *Controller) SetOption(ctx context.Context, sensorID int32, option uint32) error {
	return c.ops(ctx, sensorID, SubSetOption, func(b *pbuf.PBuf) bool {
		return b.WriteU32(option)
	}, nil)
}

// ReadData reads one sample set synchronously and converts it.
func (c *Controller) ReadData(ctx context.Context, sensorID int32) (*Event, error) {
	reply := pbuf.ObtainDefault()
	defer reply.Recycle()

	if err := c.ops(ctx, sensorID, SubReadData, nil, reply); err != nil {
		return nil, err
	}
	hdr, samples, err := ReadEvent(reply)
	if err != nil {
		return nil, err
	}
	if hdr.SensorID != sensorID {
		return nil, wire.Errorf(wire.StatusIO, "read data for %d returned sensor %d", sensorID, hdr.SensorID)
	}

	c.eventMu.Lock()
	coeff, ok := c.coeffs[sensorID]
	c.eventMu.Unlock()

	var cp *Coefficient
	if ok {
		cp = &coeff
	}
	return newEvent(hdr, cp.Convert(DecodeSamples(samples.Bytes()))), nil
}

// ops builds and dispatches a CmdOps request. The request buffer is
// recycled on every path.
func (c *Controller) ops(ctx context.Context, sensorID int32, sub SubCommand, args func(*pbuf.PBuf) bool, reply *pbuf.PBuf) error {
	svc, ok := c.m.Lookup(sensorID)
	if !ok {
		return wire.Errorf(wire.StatusNotSupport, "no service routes sensor %d", sensorID)
	}

	req := pbuf.ObtainDefault()
	defer req.Recycle()

	if !req.WriteI32(sensorID) || !req.WriteI32(int32(sub)) || (args != nil && !args(req)) {
		return wire.Errorf(wire.StatusIO, "encode %s for sensor %d", sub, sensorID)
	}
	if err := svc.Dispatch(ctx, CmdOps, req, reply); err != nil {
		return fmt.Errorf("%s sensor %d: %w", sub, sensorID, err)
	}
	return nil
}

// Register installs cb in the group's slot. The first registration builds
// a service group over every manager service and attaches the event
// listener.
func (c *Controller) Register(group GroupType, cb Callback) (CallbackID, error) {
	if !group.Valid() {
		return 0, wire.Errorf(wire.StatusInvalidParameter, "group %s", group)
	}
	if cb == nil {
		return 0, wire.Errorf(wire.StatusInvalidParameter, "nil callback")
	}

	c.regMu.Lock()
	defer c.regMu.Unlock()

	c.eventMu.Lock()
	occupied := c.slots[group].cb != nil
	c.eventMu.Unlock()
	if occupied {
		return 0, wire.Errorf(wire.StatusAlreadyExists, "%s callback already registered", group)
	}

	if c.group == nil {
		if err := c.buildGroup(); err != nil {
			return 0, err
		}
	}

	c.eventMu.Lock()
	c.nextID++
	id := c.nextID
	c.slots[group] = slot{id: id, cb: cb}
	c.eventMu.Unlock()

	c.traceState(log.StateEntityCallback, "", "REGISTERED", group.String())
	return id, nil
}

// Unregister clears the group's slot if it holds id. When both slots are
// empty the listener is detached and the group recycled.
func (c *Controller) Unregister(group GroupType, id CallbackID) error {
	if !group.Valid() {
		return wire.Errorf(wire.StatusInvalidParameter, "group %s", group)
	}

	c.regMu.Lock()
	defer c.regMu.Unlock()

	c.eventMu.Lock()
	if c.slots[group].cb == nil || c.slots[group].id != id {
		c.eventMu.Unlock()
		return wire.Errorf(wire.StatusInvalidParameter, "callback %d is not registered for %s", id, group)
	}
	c.slots[group] = slot{}
	empty := c.slotsEmpty()
	c.eventMu.Unlock()

	c.traceState(log.StateEntityCallback, "REGISTERED", "UNREGISTERED", group.String())
	if empty {
		c.teardownGroup()
	}
	return nil
}

// Registered reports whether the group's slot is occupied.
func (c *Controller) Registered(group GroupType) bool {
	if !group.Valid() {
		return false
	}
	c.eventMu.Lock()
	defer c.eventMu.Unlock()
	return c.slots[group].cb != nil
}

// HasGroup reports whether the shared listener is attached.
func (c *Controller) HasGroup() bool {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	return c.group != nil
}

// buildGroup attaches the listener to every manager service. Caller holds
// regMu.
func (c *Controller) buildGroup() error {
	if c.m.State() != StateReady {
		return ErrNotReady
	}

	g := driver.NewGroup()
	for _, svc := range c.m.Services() {
		if err := g.AddService(svc); err != nil {
			g.Recycle()
			return fmt.Errorf("add %q to group: %w", svc.Name(), err)
		}
	}
	tok, err := g.RegisterListener(c.listener)
	if err != nil {
		g.Recycle()
		return fmt.Errorf("register group listener: %w", err)
	}

	c.group = g
	c.groupTok = tok
	c.traceState(log.StateEntityGroup, "", "CREATED", fmt.Sprintf("%d services", g.ServiceCount()))
	return nil
}

// teardownGroup detaches the listener and recycles the group. Caller
// holds regMu.
func (c *Controller) teardownGroup() {
	if c.group == nil {
		return
	}
	if err := c.group.UnregisterListener(c.groupTok); err != nil {
		c.debugLog("group listener already gone", "error", err)
	}
	c.group.Recycle()
	c.group = nil
	c.groupTok = 0
	c.traceState(log.StateEntityGroup, "CREATED", "RECYCLED", "")
}

// release is the manager's release hook.
func (c *Controller) release() {
	c.regMu.Lock()
	defer c.regMu.Unlock()

	c.eventMu.Lock()
	c.slots = [groupCount]slot{}
	c.coeffs = make(map[int32]Coefficient)
	c.eventMu.Unlock()

	c.teardownGroup()
}

// setCoefficients replaces the conversion table.
func (c *Controller) setCoefficients(coeffs []Coefficient) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.coeffs = make(map[int32]Coefficient, len(coeffs))
	for _, k := range coeffs {
		c.coeffs[k.SensorID] = k
	}
}

// slotsEmpty reports whether no callback is registered. Caller holds eventMu.
func (c *Controller) slotsEmpty() bool {
	for _, s := range c.slots {
		if s.cb != nil {
			return false
		}
	}
	return true
}

// onReceive converts a raw event and hands it to the matching slot.
func (c *Controller) onReceive(svc *driver.Service, eventID uint32, data *pbuf.PBuf) error {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	hdr, samples, err := ReadEvent(data)
	if err != nil {
		c.debugLog("dropping malformed event", "service", svc.Name(), "eventID", eventID, "error", err)
		return err
	}

	var cp *Coefficient
	if coeff, ok := c.coeffs[hdr.SensorID]; ok {
		cp = &coeff
	}
	ev := newEvent(hdr, cp.Convert(DecodeSamples(samples.Bytes())))

	s := c.slots[GroupOf(hdr.SensorID)]
	if s.cb == nil {
		return nil
	}
	return s.cb(ev)
}

func newEvent(h EventHeader, values []float32) *Event {
	return &Event{
		SensorID:  h.SensorID,
		Version:   h.Version,
		Timestamp: h.Timestamp,
		Option:    h.Option,
		Mode:      h.Mode,
		Values:    values,
	}
}

func (c *Controller) traceState(entity log.StateEntity, oldState, newState, reason string) {
	c.tracer.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerRegistry,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// debugLog logs a debug message if logging is enabled.
func (c *Controller) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
