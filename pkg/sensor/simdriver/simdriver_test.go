package simdriver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorlink/sensorlink-go/pkg/driver"
	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
	"github.com/sensorlink/sensorlink-go/pkg/sensor"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// startDefault publishes DefaultConfig and opens a manager and controller
// over it.
func startDefault(t *testing.T) (*Sim, *sensor.Manager, *sensor.Controller) {
	t.Helper()
	h := driver.NewHost(driver.DefaultHostConfig())
	t.Cleanup(func() { h.Close() })

	sim, err := Start(h, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(sim.Close)

	cfg := sensor.DefaultConfig()
	cfg.Binder = h
	cfg.Directory = h
	m, err := sensor.NewManager(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(m.Release)

	c := sensor.NewController(m, sensor.DefaultControllerConfig())
	_, err = m.GetAllSensors(context.Background())
	require.NoError(t, err)
	return sim, m, c
}

func TestSimCatalogue(t *testing.T) {
	_, m, _ := startDefault(t)

	infos, err := m.GetAllSensors(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 5)
	assert.Equal(t, []int{2, 3}, m.SensorCounts())
	assert.Equal(t, "accel", infos[0].Name)
	assert.Equal(t, sensor.TypeElectrocardiograph, infos[4].TypeID)
}

func TestSimStartRollsBack(t *testing.T) {
	h := driver.NewHost(driver.DefaultHostConfig())
	defer h.Close()
	_, err := h.Publish("health", sensor.DefaultClass, driver.DispatcherFunc(
		func(context.Context, *driver.Service, int32, *pbuf.PBuf, *pbuf.PBuf) error { return nil }))
	require.NoError(t, err)

	_, err = Start(h, DefaultConfig())
	assert.Equal(t, wire.StatusAlreadyExists, wire.StatusOf(err))
	assert.Equal(t, []string{"health"}, h.Names(), "imu withdrawn again")
}

func TestSimOpsState(t *testing.T) {
	sim, _, c := startDefault(t)
	ctx := context.Background()
	imu, err := sim.Service("imu")
	require.NoError(t, err)

	require.NoError(t, c.SetBatch(ctx, 2, int64(5*time.Millisecond), 0))
	require.NoError(t, c.SetMode(ctx, 2, 3))
	require.NoError(t, c.SetOption(ctx, 2, 0x10))

	assert.Equal(t, 5*time.Millisecond, imu.Interval(2))
	mode, option := imu.Settings(2)
	assert.Equal(t, int32(3), mode)
	assert.Equal(t, uint32(0x10), option)

	require.NoError(t, c.Enable(ctx, 2))
	assert.True(t, imu.Enabled(2))
	require.NoError(t, c.Disable(ctx, 2))
	assert.False(t, imu.Enabled(2))
}

func TestSimBatchClampsInterval(t *testing.T) {
	sim, _, c := startDefault(t)
	require.NoError(t, c.SetBatch(context.Background(), 1, 10, 0))

	imu, _ := sim.Service("imu")
	assert.Equal(t, MinInterval, imu.Interval(1))

	err := c.SetBatch(context.Background(), 1, 0, 0)
	assert.Equal(t, wire.StatusInvalidParameter, wire.StatusOf(err))
}

func TestSimReadData(t *testing.T) {
	_, _, c := startDefault(t)

	ev, err := c.ReadData(context.Background(), 130)
	require.NoError(t, err)
	assert.Equal(t, int32(130), ev.SensorID)
	assert.Len(t, ev.Values, 2)
	for _, v := range ev.Values {
		assert.LessOrEqual(t, v, float32(DefaultAmplitude))
		assert.GreaterOrEqual(t, v, float32(-DefaultAmplitude))
	}
}

func TestSimStreamsWhileEnabled(t *testing.T) {
	_, _, c := startDefault(t)
	ctx := context.Background()

	events := make(chan *sensor.Event, 64)
	_, err := c.Register(sensor.GroupMedical, func(ev *sensor.Event) error {
		select {
		case events <- ev:
		default:
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, c.Enable(ctx, 131))
	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			assert.Equal(t, int32(131), ev.SensorID)
			assert.Len(t, ev.Values, 1)
		case <-time.After(2 * time.Second):
			t.Fatal("no sample from enabled sensor")
		}
	}
	require.NoError(t, c.Disable(ctx, 131))
}

func TestSimInject(t *testing.T) {
	sim, _, c := startDefault(t)

	got := make(chan *sensor.Event, 1)
	_, err := c.Register(sensor.GroupTraditional, func(ev *sensor.Event) error {
		got <- ev
		return nil
	})
	require.NoError(t, err)

	imu, _ := sim.Service("imu")
	n, err := imu.Inject(1, []int32{1000, 0, -1000})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ev := <-got
	assert.InDelta(t, sensor.Gravity, ev.Values[0], 1e-4)
	assert.InDelta(t, -sensor.Gravity, ev.Values[2], 1e-4)

	_, err = imu.Inject(99, nil)
	assert.Equal(t, wire.StatusNotFound, wire.StatusOf(err))
}

func TestSimDispatchErrors(t *testing.T) {
	svc := newService(DefaultConfig().Services[0], nil)
	ctx := context.Background()

	err := svc.Dispatch(ctx, nil, 42, nil, nil)
	assert.Equal(t, wire.StatusNotSupport, wire.StatusOf(err))

	err = svc.Dispatch(ctx, nil, sensor.CmdGetInfoList, nil, nil)
	assert.Equal(t, wire.StatusNullPointer, wire.StatusOf(err))

	err = svc.Dispatch(ctx, nil, sensor.CmdOps, nil, nil)
	assert.Equal(t, wire.StatusNullPointer, wire.StatusOf(err))

	req := pbuf.ObtainDefault()
	defer req.Recycle()
	req.WriteI32(77)
	req.WriteI32(int32(sensor.SubEnable))
	err = svc.Dispatch(ctx, nil, sensor.CmdOps, req, nil)
	assert.Equal(t, wire.StatusNotFound, wire.StatusOf(err))

	req.Flush()
	req.WriteI32(1)
	req.WriteI32(99)
	err = svc.Dispatch(ctx, nil, sensor.CmdOps, req, nil)
	assert.Equal(t, wire.StatusNotSupport, wire.StatusOf(err))

	req.Flush()
	req.WriteI32(1)
	err = svc.Dispatch(ctx, nil, sensor.CmdOps, req, nil)
	assert.Equal(t, wire.StatusInvalidParameter, wire.StatusOf(err))
}

func TestSimUnknownService(t *testing.T) {
	sim, _, _ := startDefault(t)
	_, err := sim.Service("nope")
	assert.ErrorIs(t, err, ErrUnknownService)
	assert.Len(t, sim.Services(), 2)
}

func TestSimCloseStopsSampling(t *testing.T) {
	h := driver.NewHost(driver.DefaultHostConfig())
	defer h.Close()
	sim, err := Start(h, DefaultConfig())
	require.NoError(t, err)

	svc, err := h.Bind("imu")
	require.NoError(t, err)
	req := pbuf.ObtainDefault()
	defer req.Recycle()
	req.WriteI32(1)
	req.WriteI32(int32(sensor.SubEnable))
	require.NoError(t, svc.Dispatch(context.Background(), sensor.CmdOps, req, nil))

	imu, _ := sim.Service("imu")
	sim.Close()
	assert.False(t, imu.Enabled(1))
	assert.Empty(t, h.Names())
}
