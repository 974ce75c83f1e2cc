package driver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sensorlink/sensorlink-go/pkg/log"
	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// Host is an in-process service naming facility. It implements Binder and
// Directory.
type Host struct {
	mu sync.RWMutex

	config HostConfig
	tracer log.Logger

	// Published endpoints by name, plus publish order for class queries.
	endpoints map[string]*Endpoint
	order     []string
	closed    bool
}

// NewHost creates a host with the given configuration.
func NewHost(config HostConfig) *Host {
	if config.MaxListeners <= 0 {
		config.MaxListeners = DefaultMaxListeners
	}
	if config.NotifyQueueLen <= 0 {
		config.NotifyQueueLen = DefaultNotifyQueueLen
	}
	return &Host{
		config:    config,
		tracer:    log.OrNoop(config.TraceLogger),
		endpoints: make(map[string]*Endpoint),
	}
}

// Publish registers a driver under name. The dispatcher may be nil for
// event-only endpoints, in which case Dispatch on bound handles fails with
// StatusInvalidObject.
func (h *Host) Publish(name, class string, d Dispatcher) (*Endpoint, error) {
	if name == "" {
		return nil, wire.Errorf(wire.StatusInvalidParameter, "empty service name")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHostClosed
	}
	if _, exists := h.endpoints[name]; exists {
		return nil, wire.Errorf(wire.StatusAlreadyExists, "service %q already published", name)
	}

	ep := newEndpoint(h, name, class, d)
	h.endpoints[name] = ep
	h.order = append(h.order, name)

	h.debugLog("published service", "name", name, "class", class)
	return ep, nil
}

// Unpublish removes a service. Handles bound to it stay allocated but
// fail every further Dispatch with StatusInvalidObject.
func (h *Host) Unpublish(name string) error {
	h.mu.Lock()
	ep, exists := h.endpoints[name]
	if !exists {
		h.mu.Unlock()
		return wire.Errorf(wire.StatusNotFound, "service %q", name)
	}
	delete(h.endpoints, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.mu.Unlock()

	// Stop the notifier outside the lock; it may be delivering.
	ep.close()
	h.debugLog("unpublished service", "name", name)
	return nil
}

// Bind returns a new handle to the named service.
func (h *Host) Bind(name string) (*Service, error) {
	h.mu.RLock()
	closed := h.closed
	ep, exists := h.endpoints[name]
	h.mu.RUnlock()

	if closed {
		return nil, ErrHostClosed
	}
	if !exists {
		return nil, wire.Errorf(wire.StatusNotFound, "service %q", name)
	}

	svc := &Service{
		name:      name,
		bindingID: uuid.NewString(),
		endpoint:  ep,
	}

	h.traceState(svc, log.StateEntityBinding, "", "BOUND", "")
	h.debugLog("bound service", "name", name, "bindingID", svc.bindingID)
	return svc, nil
}

// QueryClass writes the names of all services of the given class to reply
// in publish order.
func (h *Host) QueryClass(ctx context.Context, class string, reply *pbuf.PBuf) error {
	if reply == nil {
		return wire.Errorf(wire.StatusNullPointer, "nil reply buffer")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHostClosed
	}
	for _, name := range h.order {
		if h.endpoints[name].class != class {
			continue
		}
		if !reply.WriteString(name) {
			return wire.Errorf(wire.StatusIO, "reply buffer full at %q", name)
		}
	}
	return nil
}

// Names returns the published service names in publish order.
func (h *Host) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Endpoint returns the published endpoint for name.
func (h *Host) Endpoint(name string) (*Endpoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ep, ok := h.endpoints[name]
	return ep, ok
}

// Close unpublishes every service and stops all notifiers. It is safe to
// call Close multiple times.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	eps := make([]*Endpoint, 0, len(h.order))
	for _, name := range h.order {
		eps = append(eps, h.endpoints[name])
	}
	h.endpoints = make(map[string]*Endpoint)
	h.order = nil
	h.mu.Unlock()

	for _, ep := range eps {
		ep.close()
	}
	return nil
}

func (h *Host) traceState(svc *Service, entity log.StateEntity, oldState, newState, reason string) {
	h.tracer.Log(log.Event{
		Timestamp: time.Now(),
		BindingID: svc.bindingID,
		Service:   svc.name,
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
func (h *Host) debugLog(msg string, args ...any) {
	if h.config.Logger != nil {
		h.config.Logger.Debug(msg, args...)
	}
}
