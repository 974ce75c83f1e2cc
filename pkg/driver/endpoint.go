package driver

import (
	"sync"
	"time"

	"github.com/sensorlink/sensorlink-go/pkg/log"
	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// Endpoint is the driver side of a published service.
type Endpoint struct {
	host       *Host
	name       string
	class      string
	dispatcher Dispatcher

	mu     sync.RWMutex
	regs   []registration
	closed bool

	queue chan notification
	quit  chan struct{}
	wg    sync.WaitGroup
}

// registration ties a listener to the handle it was registered through.
type registration struct {
	token    Token
	svc      *Service
	listener *Listener
}

type notification struct {
	eventID uint32
	data    []byte
}

func newEndpoint(h *Host, name, class string, d Dispatcher) *Endpoint {
	ep := &Endpoint{
		host:       h,
		name:       name,
		class:      class,
		dispatcher: d,
		queue:      make(chan notification, h.config.NotifyQueueLen),
		quit:       make(chan struct{}),
	}
	ep.wg.Add(1)
	go ep.notifyLoop()
	return ep
}

// Name returns the published service name.
func (e *Endpoint) Name() string {
	return e.name
}

// Class returns the device class.
func (e *Endpoint) Class() string {
	return e.class
}

// ListenerCount returns the number of registered listeners across all
// bound handles.
func (e *Endpoint) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.regs)
}

// Closed reports whether the endpoint has been unpublished.
func (e *Endpoint) Closed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// Notify queues an event for delivery on the endpoint's notifier
// goroutine. The data is copied. Returns StatusBusy when the queue is full.
func (e *Endpoint) Notify(eventID uint32, data []byte) error {
	n := notification{eventID: eventID}
	if len(data) > 0 {
		n.data = append([]byte(nil), data...)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrEndpointClosed
	}
	select {
	case e.queue <- n:
		return nil
	default:
		return wire.Errorf(wire.StatusBusy, "event queue of %q full", e.name)
	}
}

// Deliver invokes every registered listener synchronously on the calling
// goroutine and returns how many were reached. Listener errors are counted
// and logged but do not stop delivery to the remaining listeners.
//
// A listener unregistered concurrently may still see this one event.
func (e *Endpoint) Deliver(eventID uint32, data []byte) (int, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return 0, ErrEndpointClosed
	}
	regs := make([]registration, len(e.regs))
	copy(regs, e.regs)
	e.mu.RUnlock()

	// Deliver outside the lock so listeners may register or dispatch.
	failed := 0
	for _, r := range regs {
		if err := r.listener.OnReceive(r.svc, eventID, pbuf.FromBytes(data)); err != nil {
			failed++
			e.host.debugLog("listener failed",
				"service", e.name,
				"bindingID", r.svc.bindingID,
				"eventID", eventID,
				"error", err)
		}
	}

	e.host.tracer.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerEvent,
		Category:  log.CategoryNotify,
		Service:   e.name,
		Notify: &log.NotifyEvent{
			EventID:   eventID,
			Size:      len(data),
			Listeners: len(regs),
			Failed:    failed,
		},
	})
	return len(regs), nil
}

// register adds a listener for svc.
func (e *Endpoint) register(svc *Service, l *Listener) (Token, error) {
	if l == nil || l.OnReceive == nil {
		return 0, wire.Errorf(wire.StatusInvalidParameter, "nil listener")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, ErrEndpointClosed
	}
	for _, r := range e.regs {
		if r.svc == svc && r.listener == l {
			return 0, wire.Errorf(wire.StatusAlreadyExists, "listener already registered on %q", e.name)
		}
	}
	if len(e.regs) >= e.host.config.MaxListeners {
		return 0, wire.Errorf(wire.StatusBusy, "listener limit %d reached on %q", e.host.config.MaxListeners, e.name)
	}

	tok := nextToken()
	e.regs = append(e.regs, registration{token: tok, svc: svc, listener: l})
	return tok, nil
}

// unregister removes the registration tok owned by svc.
func (e *Endpoint) unregister(svc *Service, tok Token) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.regs {
		if r.token == tok && r.svc == svc {
			e.regs = append(e.regs[:i], e.regs[i+1:]...)
			return nil
		}
	}
	return wire.Errorf(wire.StatusNotFound, "listener token %d", tok)
}

// unregisterAll removes every registration owned by svc and returns how
// many were removed.
func (e *Endpoint) unregisterAll(svc *Service) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.regs[:0]
	removed := 0
	for _, r := range e.regs {
		if r.svc == svc {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	// Clear the tail so removed listeners can be collected.
	for i := len(kept); i < len(e.regs); i++ {
		e.regs[i] = registration{}
	}
	e.regs = kept
	return removed
}

// countFor returns the number of registrations owned by svc.
func (e *Endpoint) countFor(svc *Service) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, r := range e.regs {
		if r.svc == svc {
			n++
		}
	}
	return n
}

// close stops the notifier and drops all registrations. Queued events are
// discarded.
func (e *Endpoint) close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.regs = nil
	close(e.quit)
	e.mu.Unlock()

	e.wg.Wait()
}

// notifyLoop delivers queued events until the endpoint is closed.
func (e *Endpoint) notifyLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.quit:
			return
		case n := <-e.queue:
			if _, err := e.Deliver(n.eventID, n.data); err != nil {
				return
			}
		}
	}
}
