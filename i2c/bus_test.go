package i2c

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/mklimuk/climate/environment"
)

func TestGenericBusPlayback(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x27, W: []byte{0x0C, 0x08}},
			{Addr: 0x40, R: []byte{0x6C, 0x7C, 0x00}},
		},
		DontPanic: true,
	}
	bus := NewBus(playback)
	ctx := context.Background()

	require.NoError(t, bus.WriteToAddr(ctx, 0x27, []byte{0x0C, 0x08}))
	buf := make([]byte, 3)
	require.NoError(t, bus.ReadFromAddr(ctx, 0x40, buf))
	assert.Equal(t, []byte{0x6C, 0x7C, 0x00}, buf)
	assert.NoError(t, bus.Release(ctx))
	assert.NoError(t, bus.SetSpeed(10_000))
	assert.NoError(t, bus.Close())
}

func TestGenericBusErrors(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: 0x40, W: []byte{0xE3}}},
		DontPanic: true,
	}
	bus := NewBus(playback)

	assert.Error(t, bus.WriteToAddr(context.Background(), 0x41, []byte{0xE3}), "unexpected address")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.ReadFromAddr(ctx, 0x40, make([]byte, 3)), context.Canceled)
	assert.Error(t, bus.Close(), "one op left unplayed")
}

func TestGenericBusHTU21(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x40, W: []byte{0xE3}},
			{Addr: 0x40, R: []byte{0x6C, 0x7C, 0x00}},
		},
		DontPanic: true,
	}
	sensor := environment.NewHTU21(NewBus(playback), environment.WithMeasureDelay(time.Millisecond))

	temp, err := sensor.GetTemperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 27.6144, temp, 0.001)
	assert.NoError(t, playback.Close())
}
