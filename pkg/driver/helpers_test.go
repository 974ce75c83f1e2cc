package driver

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sensorlink/sensorlink-go/pkg/log"
	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
)

// traceRecorder collects trace events.
type traceRecorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *traceRecorder) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *traceRecorder) byCategory(c log.Category) []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []log.Event
	for _, e := range r.events {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

// received is one listener invocation.
type received struct {
	svc     *Service
	eventID uint32
	payload uint32
}

// recordingListener returns a listener that records events whose payload
// is a single u32.
func recordingListener() (*Listener, func() []received) {
	var mu sync.Mutex
	var got []received
	l := &Listener{
		OnReceive: func(svc *Service, eventID uint32, data *pbuf.PBuf) error {
			v, _ := data.ReadU32()
			mu.Lock()
			got = append(got, received{svc: svc, eventID: eventID, payload: v})
			mu.Unlock()
			return nil
		},
	}
	return l, func() []received {
		mu.Lock()
		defer mu.Unlock()
		out := make([]received, len(got))
		copy(out, got)
		return out
	}
}

func u32Payload(v uint32) []byte {
	b := pbuf.ObtainDefault()
	defer b.Recycle()
	b.WriteU32(v)
	return b.Bytes()
}

func nopDispatcher() Dispatcher {
	return DispatcherFunc(func(context.Context, *Service, int32, *pbuf.PBuf, *pbuf.PBuf) error {
		return nil
	})
}

// newTestHost creates a host with the named services published and closes
// it on cleanup.
func newTestHost(t *testing.T, cfg HostConfig, names ...string) *Host {
	t.Helper()
	h := NewHost(cfg)
	for _, n := range names {
		_, err := h.Publish(n, "sensor", nopDispatcher())
		require.NoError(t, err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func bind(t *testing.T, h *Host, name string) *Service {
	t.Helper()
	svc, err := h.Bind(name)
	require.NoError(t, err)
	t.Cleanup(svc.Recycle)
	return svc
}
