package driver

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/sensorlink/sensorlink-go/pkg/log"
	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// Host limits.
const (
	// DefaultMaxListeners is the per-endpoint listener limit.
	DefaultMaxListeners = 64

	// DefaultNotifyQueueLen is the per-endpoint event queue depth.
	DefaultNotifyQueueLen = 32
)

// Errors.
var (
	// ErrHostClosed is returned when binding or publishing on a closed host.
	ErrHostClosed = wire.Errorf(wire.StatusInvalidObject, "host closed")

	// ErrEndpointClosed is returned when raising events on an unpublished endpoint.
	ErrEndpointClosed = wire.Errorf(wire.StatusInvalidObject, "endpoint closed")
)

// Dispatcher is implemented by drivers to serve commands. The service is
// the handle the call was made through. Request and reply may be nil.
type Dispatcher interface {
	Dispatch(ctx context.Context, svc *Service, cmdID int32, req, reply *pbuf.PBuf) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, svc *Service, cmdID int32, req, reply *pbuf.PBuf) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, svc *Service, cmdID int32, req, reply *pbuf.PBuf) error {
	return f(ctx, svc, cmdID, req, reply)
}

// Binder resolves a service name to a handle.
type Binder interface {
	Bind(name string) (*Service, error)
}

// Directory enumerates service names by device class. Names are written to
// reply as consecutive NUL-terminated strings.
type Directory interface {
	QueryClass(ctx context.Context, class string, reply *pbuf.PBuf) error
}

// Listener receives events raised by a bound service. The data buffer is
// read-only and only valid for the duration of the call; use
// pbuf.View.Clone to retain parts of it.
//
// The framework keeps a reference to the Listener while it is registered
// but never copies or frees it.
type Listener struct {
	OnReceive func(svc *Service, eventID uint32, data *pbuf.PBuf) error

	// Priv is caller-owned context available to OnReceive.
	Priv any
}

// Token identifies a listener registration.
type Token uint64

var tokenSeq atomic.Uint64

func nextToken() Token {
	return Token(tokenSeq.Add(1))
}

// HostConfig configures a Host.
type HostConfig struct {
	// MaxListeners bounds listener registrations per endpoint.
	MaxListeners int

	// NotifyQueueLen is the depth of each endpoint's event queue.
	NotifyQueueLen int

	// TraceLogger receives dispatch and event trace records.
	// If nil, tracing is disabled.
	TraceLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultHostConfig returns a HostConfig with sensible defaults.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		MaxListeners:   DefaultMaxListeners,
		NotifyQueueLen: DefaultNotifyQueueLen,
	}
}
