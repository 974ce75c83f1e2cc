package sensor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorlink/sensorlink-go/pkg/driver"
	"github.com/sensorlink/sensorlink-go/pkg/log"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

func TestNewManagerRequiresBinderAndDirectory(t *testing.T) {
	_, err := NewManager(context.Background(), DefaultConfig())
	assert.Equal(t, wire.StatusNullPointer, wire.StatusOf(err))
}

func TestNewManagerRejectsBadCoefficients(t *testing.T) {
	f := newFixture(t, twoServices()...)
	cfg := f.config()
	cfg.Coefficients = []Coefficient{{TypeID: TypeAccelerometer, Dimension: MaxDimension + 1}}

	m, err := NewManager(context.Background(), cfg)
	assert.Nil(t, m)
	assert.Equal(t, wire.StatusInvalidParameter, wire.StatusOf(err))
}

func TestNewManagerBindsEveryService(t *testing.T) {
	f := newFixture(t, twoServices()...)
	m := f.manager(t)

	assert.Equal(t, StateReady, m.State())
	svcs := m.Services()
	require.Len(t, svcs, 2)
	assert.Equal(t, "S1", svcs[0].Name())
	assert.Equal(t, "S2", svcs[1].Name())
	assert.Equal(t, []int{0, 0}, m.SensorCounts())
	assert.Zero(t, m.SensorCount())
}

func TestNewManagerNoServices(t *testing.T) {
	f := newFixture(t)

	_, err := NewManager(context.Background(), f.config())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSensorServices))
	assert.Equal(t, wire.StatusNotSupport, wire.StatusOf(err))
}

func TestNewManagerIgnoresOtherClasses(t *testing.T) {
	f := newFixture(t)
	_, err := f.host.Publish("camera", "video", &fakeSensorDriver{})
	require.NoError(t, err)

	_, err = NewManager(context.Background(), f.config())
	assert.ErrorIs(t, err, ErrNoSensorServices)
}

func TestNewManagerSkipsBindFailures(t *testing.T) {
	f := newFixture(t, fakeService{name: "good", records: []InfoRecord{record("accel", TypeAccelerometer, 1)}})
	good, err := f.host.Bind("good")
	require.NoError(t, err)

	dir := &mockDirectory{}
	dir.On("QueryClass", DefaultClass).Return([]string{"bad", "good"}, nil)
	binder := &mockBinder{}
	binder.On("Bind", "bad").Return(nil, wire.Errorf(wire.StatusNotFound, "service %q", "bad"))
	binder.On("Bind", "good").Return(good, nil)

	cfg := DefaultConfig()
	cfg.Directory = dir
	cfg.Binder = binder
	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)
	defer m.Release()

	svcs := m.Services()
	require.Len(t, svcs, 1)
	assert.Same(t, good, svcs[0])
	dir.AssertExpectations(t)
	binder.AssertExpectations(t)
}

func TestNewManagerDirectoryFailure(t *testing.T) {
	dir := &mockDirectory{}
	dir.On("QueryClass", "imu").Return(nil, wire.StatusTimeout)

	cfg := DefaultConfig()
	cfg.Class = "imu"
	cfg.Directory = dir
	cfg.Binder = &mockBinder{}
	_, err := NewManager(context.Background(), cfg)
	assert.Equal(t, wire.StatusTimeout, wire.StatusOf(err))
}

func TestGetAllSensorsAggregatesServices(t *testing.T) {
	f := newFixture(t, twoServices()...)
	m := f.manager(t)

	infos, err := m.GetAllSensors(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 5)

	ids := make([]int32, len(infos))
	for i, info := range infos {
		ids[i] = info.SensorID
	}
	assert.Equal(t, []int32{1, 2, 5, 130, 131}, ids)
	assert.Equal(t, []int{2, 3}, m.SensorCounts())
	assert.Equal(t, 5, m.SensorCount())

	svcs := m.Services()
	for _, id := range []int32{5, 130, 131} {
		svc, ok := m.Lookup(id)
		require.True(t, ok, "sensor %d", id)
		assert.Same(t, svcs[1], svc, "sensor %d", id)
	}
	for _, id := range []int32{1, 2} {
		svc, ok := m.Lookup(id)
		require.True(t, ok, "sensor %d", id)
		assert.Same(t, svcs[0], svc, "sensor %d", id)
	}
	_, ok := m.Lookup(99)
	assert.False(t, ok)
}

func TestGetAllSensorsCachesCatalogue(t *testing.T) {
	f := newFixture(t, twoServices()...)
	m := f.manager(t)

	first, err := m.GetAllSensors(context.Background())
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := m.GetAllSensors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "accel", second[0].Name)
	assert.Equal(t, 1, f.drivers["S1"].infoCallCount())
	assert.Equal(t, 1, f.drivers["S2"].infoCallCount())
}

func TestGetAllSensorsNormalizesAccelerometer(t *testing.T) {
	r := record("accel", TypeAccelerometer, 1)
	r.MaxRange = 2048
	r.Power = 1500
	f := newFixture(t, fakeService{name: "S1", records: []InfoRecord{r}})
	m := f.manager(t)

	_, err := m.GetAllSensors(context.Background())
	require.NoError(t, err)

	info, err := m.GetSensorInfo(1)
	require.NoError(t, err)
	assert.InDelta(t, 2*Gravity, info.MaxRange, 1e-4)
	assert.InDelta(t, 1.5, info.Power, 1e-6)
}

func TestGetSensorInfoUnknown(t *testing.T) {
	f := newFixture(t, twoServices()...)
	m := f.manager(t)

	_, err := m.GetSensorInfo(1)
	assert.Equal(t, wire.StatusNotFound, wire.StatusOf(err), "catalogue not built yet")

	_, err = m.GetAllSensors(context.Background())
	require.NoError(t, err)
	_, err = m.GetSensorInfo(77)
	assert.Equal(t, wire.StatusNotFound, wire.StatusOf(err))
}

func TestGetAllSensorsRejectsDuplicateIDs(t *testing.T) {
	f := newFixture(t,
		fakeService{name: "S1", records: []InfoRecord{record("accel", TypeAccelerometer, 7)}},
		fakeService{name: "S2", records: []InfoRecord{record("accel2", TypeAccelerometer, 7)}},
	)
	m := f.manager(t)

	_, err := m.GetAllSensors(context.Background())
	require.Error(t, err)
	assert.Equal(t, wire.StatusIO, wire.StatusOf(err))

	assert.Zero(t, m.SensorCount())
	assert.Equal(t, []int{0, 0}, m.SensorCounts())
	assert.Empty(t, m.Coefficients())
	_, ok := m.Lookup(7)
	assert.False(t, ok)
	assert.Equal(t, StateReady, m.State())
}

func TestGetAllSensorsRollsBackOnServiceError(t *testing.T) {
	f := newFixture(t, twoServices()...)
	f.drivers["S2"].failInfo = wire.StatusBusy
	m := f.manager(t)

	_, err := m.GetAllSensors(context.Background())
	assert.Equal(t, wire.StatusBusy, wire.StatusOf(err))
	assert.Equal(t, []int{0, 0}, m.SensorCounts())
	_, ok := m.Lookup(1)
	assert.False(t, ok)

	// A later call retries from scratch.
	f.drivers["S2"].mu.Lock()
	f.drivers["S2"].failInfo = nil
	f.drivers["S2"].mu.Unlock()

	infos, err := m.GetAllSensors(context.Background())
	require.NoError(t, err)
	assert.Len(t, infos, 5)
	assert.Equal(t, 2, f.drivers["S1"].infoCallCount())
}

func TestGetAllSensorsMaxSensors(t *testing.T) {
	f := newFixture(t, twoServices()...)
	cfg := f.config()
	cfg.MaxSensors = 4

	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)
	defer m.Release()

	_, err = m.GetAllSensors(context.Background())
	assert.Equal(t, wire.StatusIO, wire.StatusOf(err))
	assert.Zero(t, m.SensorCount())
}

func TestGetAllSensorsTracesFailure(t *testing.T) {
	f := newFixture(t,
		fakeService{name: "S1", records: []InfoRecord{record("a", TypeAccelerometer, 3)}},
		fakeService{name: "S2", records: []InfoRecord{record("b", TypeGyroscope, 3)}},
	)
	tracer := &recordingTracer{}
	cfg := f.config()
	cfg.TraceLogger = tracer

	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)
	defer m.Release()

	_, err = m.GetAllSensors(context.Background())
	require.Error(t, err)

	var found bool
	for _, ev := range tracer.snapshot() {
		if ev.Category == log.CategoryError {
			found = true
			require.NotNil(t, ev.Error.Code)
			assert.Equal(t, wire.StatusIO, *ev.Error.Code)
			assert.Equal(t, "get_info_list", ev.Error.Context)
		}
	}
	assert.True(t, found, "expected an error trace")
}

func TestGetAllSensorsNotReady(t *testing.T) {
	f := newFixture(t, twoServices()...)
	m := f.manager(t)
	m.Release()

	_, err := m.GetAllSensors(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, wire.StatusInvalidObject, wire.StatusOf(err))
}

func TestGetAllSensorsCanceledContext(t *testing.T) {
	f := newFixture(t, twoServices()...)
	m := f.manager(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.GetAllSensors(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, m.SensorCount())
}

func TestCoefficientsBoundToCatalogue(t *testing.T) {
	f := newFixture(t, twoServices()...)
	m := f.manager(t)

	_, err := m.GetAllSensors(context.Background())
	require.NoError(t, err)

	// Only accel (1) and gyro (2) have table entries.
	coeffs := m.Coefficients()
	require.Len(t, coeffs, 2)
	assert.Equal(t, int32(1), coeffs[0].SensorID)
	assert.Equal(t, TypeAccelerometer, coeffs[0].TypeID)
	assert.Equal(t, int32(2), coeffs[1].SensorID)
	assert.Equal(t, TypeGyroscope, coeffs[1].TypeID)
}

func TestReleaseIsIdempotentAndReopens(t *testing.T) {
	f := newFixture(t, twoServices()...)
	m := f.manager(t)

	_, err := m.GetAllSensors(context.Background())
	require.NoError(t, err)
	svcs := m.Services()

	m.Release()
	m.Release()

	assert.Equal(t, StateReleased, m.State())
	assert.Empty(t, m.Services())
	assert.Zero(t, m.SensorCount())
	for _, svc := range svcs {
		assert.True(t, svc.Released())
	}

	require.NoError(t, m.Open(context.Background()))
	assert.Equal(t, StateReady, m.State())
	infos, err := m.GetAllSensors(context.Background())
	require.NoError(t, err)
	assert.Len(t, infos, 5)
}

func TestOpenWhileReady(t *testing.T) {
	f := newFixture(t, twoServices()...)
	m := f.manager(t)

	err := m.Open(context.Background())
	assert.Equal(t, wire.StatusAlreadyExists, wire.StatusOf(err))
}

func TestManagerStateTrace(t *testing.T) {
	f := newFixture(t, twoServices()...)
	tracer := &recordingTracer{}
	cfg := f.config()
	cfg.TraceLogger = tracer

	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)
	_, err = m.GetAllSensors(context.Background())
	require.NoError(t, err)
	m.Release()

	var states, catalogue []string
	for _, ev := range tracer.snapshot() {
		sc := ev.StateChange
		if sc == nil {
			continue
		}
		switch sc.Entity {
		case log.StateEntityManager:
			assert.NotEqual(t, sc.OldState, sc.NewState)
			states = append(states, sc.NewState)
		case log.StateEntityCatalogue:
			catalogue = append(catalogue, sc.NewState+" "+sc.Reason)
		}
	}
	assert.Equal(t, []string{"DISCOVERING", "READY", "RELEASED"}, states)
	assert.Equal(t, []string{"BUILT 5 sensors from 2 services"}, catalogue)
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUninitialized, "UNINITIALIZED"},
		{StateDiscovering, "DISCOVERING"},
		{StateReady, "READY"},
		{StateReleased, "RELEASED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

var _ driver.Directory = (*mockDirectory)(nil)
var _ driver.Binder = (*mockBinder)(nil)
