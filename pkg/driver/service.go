package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sensorlink/sensorlink-go/pkg/log"
	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// Service is a caller-side handle to a published endpoint, obtained from
// Host.Bind. The zero value is not usable.
type Service struct {
	// Priv is caller-owned context attached to the handle.
	Priv any

	name      string
	bindingID string
	endpoint  *Endpoint

	// mu is held for reading across Dispatch so Recycle waits for
	// in-flight calls.
	mu       sync.RWMutex
	released bool
}

// Name returns the bound service name.
func (s *Service) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// BindingID returns the unique id of this binding.
func (s *Service) BindingID() string {
	if s == nil {
		return ""
	}
	return s.bindingID
}

// Released reports whether the handle was recycled.
func (s *Service) Released() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.released
}

// Dispatch sends a command to the driver and blocks until it returns.
// Request and reply are optional. Driver errors that do not carry a
// wire.Status are wrapped and map to StatusFailure.
func (s *Service) Dispatch(ctx context.Context, cmdID int32, req, reply *pbuf.PBuf) error {
	if s == nil {
		return wire.Errorf(wire.StatusNullPointer, "nil service")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ep := s.endpoint
	if s.released || ep == nil || ep.dispatcher == nil || ep.Closed() {
		return wire.Errorf(wire.StatusInvalidObject, "service %q not dispatchable", s.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err := ep.dispatcher.Dispatch(ctx, s, cmdID, req, reply)
	elapsed := time.Since(start)

	var status wire.Status
	if err != nil && !errors.As(err, &status) {
		err = fmt.Errorf("dispatch %q cmd %d: %w", s.name, cmdID, err)
	}

	ep.host.tracer.Log(log.Event{
		Timestamp: start,
		BindingID: s.bindingID,
		Direction: log.DirectionOut,
		Layer:     log.LayerDispatch,
		Category:  log.CategoryDispatch,
		Service:   s.name,
		Dispatch: &log.DispatchEvent{
			CmdID:       cmdID,
			RequestSize: req.Len(),
			ReplySize:   reply.Len(),
			Status:      wire.StatusOf(err),
			Duration:    elapsed,
		},
	})
	return err
}

// RegisterEventListener registers l to receive events from the service.
func (s *Service) RegisterEventListener(l *Listener) (Token, error) {
	if s == nil {
		return 0, wire.Errorf(wire.StatusNullPointer, "nil service")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.released || s.endpoint == nil {
		return 0, wire.Errorf(wire.StatusInvalidObject, "service %q released", s.name)
	}
	tok, err := s.endpoint.register(s, l)
	if err != nil {
		return 0, err
	}
	s.endpoint.host.debugLog("listener registered", "service", s.name, "bindingID", s.bindingID, "token", tok)
	return tok, nil
}

// UnregisterEventListener removes the registration identified by tok.
func (s *Service) UnregisterEventListener(tok Token) error {
	if s == nil {
		return wire.Errorf(wire.StatusNullPointer, "nil service")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.released || s.endpoint == nil {
		return wire.Errorf(wire.StatusInvalidObject, "service %q released", s.name)
	}
	return s.endpoint.unregister(s, tok)
}

// ListenerCount returns the number of listeners registered through this
// handle.
func (s *Service) ListenerCount() int {
	if s == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.released || s.endpoint == nil {
		return 0
	}
	return s.endpoint.countFor(s)
}

// Recycle detaches all listeners registered through this handle and
// releases the binding. It is safe to call on a nil or already recycled
// handle.
func (s *Service) Recycle() {
	if s == nil {
		return
	}

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	ep := s.endpoint
	s.mu.Unlock()

	if ep == nil {
		return
	}
	removed := ep.unregisterAll(s)
	ep.host.traceState(s, log.StateEntityBinding, "BOUND", "RELEASED", fmt.Sprintf("%d listeners detached", removed))
	ep.host.debugLog("service recycled", "name", s.name, "bindingID", s.bindingID, "listeners", removed)
}
