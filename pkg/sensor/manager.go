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

// Manager defaults.
const (
	// DefaultClass is the device class queried during discovery.
	DefaultClass = "sensor"

	// DefaultMaxSensors bounds the catalogue size.
	DefaultMaxSensors = 256

	// DefaultInfoReplySize is the initial capacity of GET_INFO_LIST replies.
	DefaultInfoReplySize = 2048
)

// State is the manager lifecycle state.
type State uint8

const (
	StateUninitialized State = iota
	StateDiscovering
	StateReady
	StateReleased
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateDiscovering:
		return "DISCOVERING"
	case StateReady:
		return "READY"
	case StateReleased:
		return "RELEASED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Manager.
type Config struct {
	// Binder resolves discovered names to service handles.
	Binder driver.Binder

	// Directory lists the services of Class.
	Directory driver.Directory

	// Class is the device class to discover (default "sensor").
	Class string

	// MaxSensors bounds the catalogue size.
	MaxSensors int

	// InfoReplySize is the initial capacity of each GET_INFO_LIST reply.
	InfoReplySize int

	// Coefficients is the conversion table. Nil uses DefaultCoefficients.
	Coefficients []Coefficient

	// TraceLogger receives manager and controller trace records.
	// If nil, tracing is disabled.
	TraceLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults. Binder and
// Directory must still be set.
func DefaultConfig() Config {
	return Config{
		Class:         DefaultClass,
		MaxSensors:    DefaultMaxSensors,
		InfoReplySize: DefaultInfoReplySize,
		Coefficients:  DefaultCoefficients(),
	}
}

// node is one bound sensor service.
type node struct {
	svc         *driver.Service
	sensorCount int
}

// route maps a sensor id to the service that reported it.
type route struct {
	sensorID int32
	svc      *driver.Service
}

// Manager owns the bound sensor services and the sensor catalogue.
type Manager struct {
	mu sync.Mutex

	config Config
	tracer log.Logger

	state     State
	nodes     []*node
	catalogue []Info
	routes    []route
	routeIdx  map[int32]int
	coeffs    []Coefficient
	built     bool

	// Hooks run outside mu.
	releaseHooks    []func()
	classifiedHooks []func([]Coefficient)
}

// NewManager creates a manager and runs discovery.
func NewManager(ctx context.Context, config Config) (*Manager, error) {
	if config.Binder == nil || config.Directory == nil {
		return nil, wire.Errorf(wire.StatusNullPointer, "binder and directory are required")
	}
	if config.Class == "" {
		config.Class = DefaultClass
	}
	if config.MaxSensors <= 0 {
		config.MaxSensors = DefaultMaxSensors
	}
	if config.InfoReplySize <= 0 {
		config.InfoReplySize = DefaultInfoReplySize
	}
	if config.Coefficients == nil {
		config.Coefficients = DefaultCoefficients()
	} else if err := ValidateCoefficients(config.Coefficients); err != nil {
		return nil, err
	}

	m := &Manager{
		config: config,
		tracer: log.OrNoop(config.TraceLogger),
	}
	if err := m.Open(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Open discovers and binds every service of the configured class. It is
// called by NewManager and may be called again after Release.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateReleased:
		m.setState(StateUninitialized, "reopen")
	case StateUninitialized:
	default:
		return wire.Errorf(wire.StatusAlreadyExists, "manager is %s", m.state)
	}

	m.setState(StateDiscovering, m.config.Class)

	names, err := m.queryNames(ctx)
	if err != nil {
		m.setState(StateUninitialized, "directory query failed")
		return fmt.Errorf("query class %q: %w", m.config.Class, err)
	}

	for _, name := range names {
		svc, err := m.config.Binder.Bind(name)
		if err != nil {
			m.warnLog("bind failed, skipping service", "name", name, "error", err)
			continue
		}
		m.nodes = append(m.nodes, &node{svc: svc})
		m.debugLog("bound sensor service", "name", name, "bindingID", svc.BindingID())
	}

	if len(m.nodes) == 0 {
		m.setState(StateUninitialized, "no services")
		return ErrNoSensorServices
	}

	m.setState(StateReady, fmt.Sprintf("%d services", len(m.nodes)))
	return nil
}

// queryNames reads the NUL-terminated names returned by the directory.
func (m *Manager) queryNames(ctx context.Context) ([]string, error) {
	reply := pbuf.ObtainDefault()
	defer reply.Recycle()

	if err := m.config.Directory.QueryClass(ctx, m.config.Class, reply); err != nil {
		return nil, err
	}

	var names []string
	for {
		name, ok := reply.ReadString()
		if !ok {
			break
		}
		names = append(names, name)
	}
	return names, nil
}

// GetAllSensors returns the sensor catalogue. The first call asks every
// service for its sensors; later calls return a copy of the cached result.
// A failure leaves no partial catalogue behind.
func (m *Manager) GetAllSensors(ctx context.Context) ([]Info, error) {
	m.mu.Lock()

	if m.state != StateReady {
		m.mu.Unlock()
		return nil, ErrNotReady
	}
	if m.built {
		out := m.copyCatalogue()
		m.mu.Unlock()
		return out, nil
	}

	if err := m.buildCatalogue(ctx); err != nil {
		m.resetCatalogue()
		m.mu.Unlock()
		m.traceError("get_info_list", err)
		return nil, err
	}

	out := m.copyCatalogue()
	coeffs := m.copyCoefficients()
	hooks := make([]func([]Coefficient), len(m.classifiedHooks))
	copy(hooks, m.classifiedHooks)
	m.mu.Unlock()

	for _, h := range hooks {
		h(coeffs)
	}
	return out, nil
}

// buildCatalogue queries every node. Caller holds mu.
func (m *Manager) buildCatalogue(ctx context.Context) error {
	reply, err := pbuf.Obtain(m.config.InfoReplySize)
	if err != nil {
		return err
	}
	defer reply.Recycle()

	var catalogue []Info
	for _, n := range m.nodes {
		reply.Flush()
		if err := n.svc.Dispatch(ctx, CmdGetInfoList, nil, reply); err != nil {
			return fmt.Errorf("get info list from %q: %w", n.svc.Name(), err)
		}
		records, err := ReadInfoList(reply)
		if err != nil {
			return fmt.Errorf("decode info list from %q: %w", n.svc.Name(), err)
		}
		if len(catalogue)+len(records) > m.config.MaxSensors {
			return wire.Errorf(wire.StatusIO, "more than %d sensors", m.config.MaxSensors)
		}
		n.sensorCount = len(records)
		for _, r := range records {
			catalogue = append(catalogue, Normalize(r))
		}
	}

	return m.classify(catalogue)
}

// classify builds the routing table and binds coefficients. Caller holds mu.
func (m *Manager) classify(catalogue []Info) error {
	routes := make([]route, 0, len(catalogue))
	idx := make(map[int32]int, len(catalogue))

	pos := 0
	for _, n := range m.nodes {
		for i := 0; i < n.sensorCount; i++ {
			id := catalogue[pos].SensorID
			if _, dup := idx[id]; dup {
				return wire.Errorf(wire.StatusIO, "duplicate sensor id %d from %q", id, n.svc.Name())
			}
			idx[id] = len(routes)
			routes = append(routes, route{sensorID: id, svc: n.svc})
			pos++
		}
	}

	m.catalogue = catalogue
	m.routes = routes
	m.routeIdx = idx
	m.coeffs = bindCoefficients(m.config.Coefficients, catalogue)
	m.built = true

	m.tracer.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerRegistry,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityCatalogue,
			NewState: "BUILT",
			Reason:   fmt.Sprintf("%d sensors from %d services", len(catalogue), len(m.nodes)),
		},
	})
	m.debugLog("sensor catalogue built", "sensors", len(catalogue), "services", len(m.nodes))
	return nil
}

// resetCatalogue drops counts, catalogue and routes. Caller holds mu.
func (m *Manager) resetCatalogue() {
	for _, n := range m.nodes {
		n.sensorCount = 0
	}
	m.catalogue = nil
	m.routes = nil
	m.routeIdx = nil
	m.coeffs = nil
	m.built = false
}

func (m *Manager) copyCatalogue() []Info {
	out := make([]Info, len(m.catalogue))
	copy(out, m.catalogue)
	return out
}

func (m *Manager) copyCoefficients() []Coefficient {
	out := make([]Coefficient, len(m.coeffs))
	copy(out, m.coeffs)
	return out
}

// GetSensorInfo returns the catalogue entry of one sensor. The catalogue
// must have been built by GetAllSensors.
func (m *Manager) GetSensorInfo(sensorID int32) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.routeIdx[sensorID]
	if !ok {
		return Info{}, wire.Errorf(wire.StatusNotFound, "sensor %d", sensorID)
	}
	return m.catalogue[i], nil
}

// Lookup returns the service that owns sensorID.
func (m *Manager) Lookup(sensorID int32) (*driver.Service, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.routeIdx[sensorID]
	if !ok {
		return nil, false
	}
	return m.routes[i].svc, true
}

// Services returns the bound services in discovery order.
func (m *Manager) Services() []*driver.Service {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*driver.Service, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = n.svc
	}
	return out
}

// SensorCounts returns the number of sensors each service reported, in
// discovery order.
func (m *Manager) SensorCounts() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]int, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = n.sensorCount
	}
	return out
}

// Coefficients returns the coefficients bound to catalogue sensors.
func (m *Manager) Coefficients() []Coefficient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyCoefficients()
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SensorCount returns the catalogue size, or zero before GetAllSensors.
func (m *Manager) SensorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.catalogue)
}

// Release runs the release hooks, recycles every service handle and clears
// the catalogue. It is safe to call multiple times.
func (m *Manager) Release() {
	m.mu.Lock()
	if m.state != StateReady {
		m.mu.Unlock()
		return
	}
	m.setState(StateReleased, "release")
	hooks := make([]func(), len(m.releaseHooks))
	copy(hooks, m.releaseHooks)
	m.mu.Unlock()

	// Listeners come off before the handles go away.
	for _, h := range hooks {
		h()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range m.nodes {
		n.svc.Recycle()
	}
	m.nodes = nil
	m.resetCatalogue()
}

// onRelease registers a hook run by Release before handles are recycled.
func (m *Manager) onRelease(h func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseHooks = append(m.releaseHooks, h)
}

// onClassified registers a hook run after the catalogue is built.
func (m *Manager) onClassified(h func([]Coefficient)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classifiedHooks = append(m.classifiedHooks, h)
}

// setState changes state and records the transition. Caller holds mu.
func (m *Manager) setState(s State, reason string) {
	old := m.state
	m.state = s
	m.tracer.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerRegistry,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityManager,
			OldState: old.String(),
			NewState: s.String(),
			Reason:   reason,
		},
	})
	m.debugLog("manager state", "from", old, "to", s, "reason", reason)
}

func (m *Manager) traceError(op string, err error) {
	code := wire.StatusOf(err)
	m.tracer.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerRegistry,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerRegistry,
			Message: err.Error(),
			Code:    &code,
			Context: op,
		},
	})
	m.warnLog("catalogue build failed", "error", err)
}

// debugLog logs a debug message if logging is enabled.
func (m *Manager) debugLog(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, args...)
	}
}

// warnLog logs a warning if logging is enabled.
func (m *Manager) warnLog(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Warn(msg, args...)
	}
}
