package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorlink/sensorlink-go/pkg/log"
	"github.com/sensorlink/sensorlink-go/pkg/sensor"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readTrace(t *testing.T, path string) []log.Event {
	t.Helper()
	r, err := log.NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	var events []log.Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestHubLocal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trace = filepath.Join(t.TempDir(), "hub.slog")
	cfg.Enable = []int32{1}

	hub, err := NewHub(context.Background(), cfg, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, sensor.StateReady, hub.Manager().State())
	assert.Equal(t, 5, hub.Manager().SensorCount())
	assert.Len(t, hub.Manager().Services(), 2)

	imu, err := hub.Sim().Service("imu")
	require.NoError(t, err)
	assert.True(t, imu.Enabled(1))

	ev, err := hub.Controller().ReadData(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ev.SensorID)

	require.NoError(t, hub.Close())
	assert.False(t, imu.Enabled(1), "close stops sampling")

	events := readTrace(t, cfg.Trace)
	require.NotEmpty(t, events)

	var ready, dispatches int
	for _, ev := range events {
		if ev.StateChange != nil && ev.StateChange.Entity == log.StateEntityManager && ev.StateChange.NewState == "READY" {
			ready++
		}
		if ev.Dispatch != nil {
			dispatches++
		}
	}
	assert.Equal(t, 1, ready)
	assert.Positive(t, dispatches)
}

func TestHubPing(t *testing.T) {
	hub, err := NewHub(context.Background(), DefaultConfig(), discardLogger())
	require.NoError(t, err)
	defer hub.Close()

	for range 3 {
		rtt, err := hub.Ping(context.Background(), "hello")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, rtt, time.Duration(0))
	}
	assert.Equal(t, uint32(3), hub.pingSeq.Load())
	assert.Equal(t, 5, hub.Manager().SensorCount(), "diagnostics class is not discovered")
}

func TestHubEnableUnknownSensor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enable = []int32{99}

	hub, err := NewHub(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
	assert.Nil(t, hub)
}

func TestHubNoServicesForClass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Class = "other"

	_, err := NewHub(context.Background(), cfg, discardLogger())
	assert.ErrorIs(t, err, sensor.ErrNoSensorServices)
}
