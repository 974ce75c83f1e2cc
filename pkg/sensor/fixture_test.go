package sensor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sensorlink/sensorlink-go/pkg/driver"
	"github.com/sensorlink/sensorlink-go/pkg/log"
	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// opCall is one CmdOps request seen by a fake driver.
type opCall struct {
	sensorID int32
	sub      SubCommand
	args     []int64
}

// fakeSensorDriver serves GET_INFO_LIST and OPS from memory.
type fakeSensorDriver struct {
	mu        sync.Mutex
	records   []InfoRecord
	sample    []int32
	infoCalls int
	ops       []opCall
	failInfo  error
}

func (d *fakeSensorDriver) Dispatch(_ context.Context, _ *driver.Service, cmdID int32, req, reply *pbuf.PBuf) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch cmdID {
	case CmdGetInfoList:
		d.infoCalls++
		if d.failInfo != nil {
			return d.failInfo
		}
		if !WriteInfoList(reply, d.records) {
			return wire.StatusIO
		}
		return nil

	case CmdOps:
		id, ok1 := req.ReadI32()
		sub, ok2 := req.ReadI32()
		if !ok1 || !ok2 {
			return wire.StatusInvalidParameter
		}
		call := opCall{sensorID: id, sub: SubCommand(sub)}
		switch SubCommand(sub) {
		case SubSetBatch:
			a, _ := req.ReadI64()
			b, _ := req.ReadI64()
			call.args = []int64{a, b}
		case SubSetMode:
			v, _ := req.ReadI32()
			call.args = []int64{int64(v)}
		case SubSetOption:
			v, _ := req.ReadU32()
			call.args = []int64{int64(v)}
		case SubReadData:
			if !WriteEvent(reply, EventHeader{SensorID: id, Timestamp: 42}, d.sample) {
				return wire.StatusIO
			}
		}
		d.ops = append(d.ops, call)
		return nil
	}
	return wire.StatusNotSupport
}

func (d *fakeSensorDriver) calls() []opCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]opCall, len(d.ops))
	copy(out, d.ops)
	return out
}

func (d *fakeSensorDriver) infoCallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.infoCalls
}

// fakeService describes one published sensor service.
type fakeService struct {
	name    string
	records []InfoRecord
}

// fixture is a host with fake sensor services.
type fixture struct {
	host    *driver.Host
	drivers map[string]*fakeSensorDriver
}

func newFixture(t *testing.T, services ...fakeService) *fixture {
	t.Helper()
	f := &fixture{
		host:    driver.NewHost(driver.DefaultHostConfig()),
		drivers: make(map[string]*fakeSensorDriver),
	}
	for _, s := range services {
		d := &fakeSensorDriver{records: s.records}
		_, err := f.host.Publish(s.name, DefaultClass, d)
		require.NoError(t, err)
		f.drivers[s.name] = d
	}
	t.Cleanup(func() { f.host.Close() })
	return f
}

func (f *fixture) config() Config {
	cfg := DefaultConfig()
	cfg.Binder = f.host
	cfg.Directory = f.host
	return cfg
}

func (f *fixture) manager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), f.config())
	require.NoError(t, err)
	t.Cleanup(m.Release)
	return m
}

// deliver raises an event on the named endpoint synchronously.
func (f *fixture) deliver(t *testing.T, name string, h EventHeader, raw []int32) {
	t.Helper()
	ep, ok := f.host.Endpoint(name)
	require.True(t, ok)

	_, err := ep.Deliver(1, encodeEvent(t, h, raw))
	require.NoError(t, err)
}

func record(name string, typ TypeID, id int32) InfoRecord {
	return InfoRecord{
		Name:            name,
		Vendor:          "acme",
		FirmwareVersion: "1.0",
		HardwareVersion: "A",
		TypeID:          typ,
		SensorID:        id,
		MaxRange:        100,
		Accuracy:        1,
		Power:           5,
	}
}

// twoServices is the S1(2 sensors) + S2(3 sensors) layout.
func twoServices() []fakeService {
	return []fakeService{
		{name: "S1", records: []InfoRecord{
			record("accel", TypeAccelerometer, 1),
			record("gyro", TypeGyroscope, 2),
		}},
		{name: "S2", records: []InfoRecord{
			record("light", TypeAmbientLight, 5),
			record("ppg", TypePhotoplethysmograph, 130),
			record("ecg", TypeElectrocardiograph, 131),
		}},
	}
}

// mockDirectory is a testify mock for driver.Directory.
type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) QueryClass(_ context.Context, class string, reply *pbuf.PBuf) error {
	args := m.Called(class)
	if names, ok := args.Get(0).([]string); ok {
		for _, n := range names {
			reply.WriteString(n)
		}
	}
	return args.Error(1)
}

// mockBinder is a testify mock for driver.Binder.
type mockBinder struct {
	mock.Mock
}

func (m *mockBinder) Bind(name string) (*driver.Service, error) {
	args := m.Called(name)
	svc, _ := args.Get(0).(*driver.Service)
	return svc, args.Error(1)
}

// recordingTracer collects trace events.
type recordingTracer struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingTracer) Log(ev log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingTracer) snapshot() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]log.Event, len(r.events))
	copy(out, r.events)
	return out
}

func encodeEvent(t *testing.T, h EventHeader, raw []int32) []byte {
	t.Helper()
	b := pbuf.ObtainDefault()
	defer b.Recycle()
	require.True(t, WriteEvent(b, h, raw))
	return b.Bytes()
}
