package buzzer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

func duty(pin *gpiotest.Pin) gpio.Duty {
	pin.Lock()
	defer pin.Unlock()
	return pin.D
}

func TestBuzzerRhythm(t *testing.T) {
	pin := &gpiotest.Pin{N: "PWM"}
	b := New(pin)

	require.NoError(t, b.Update(), "update before start is a no-op")
	assert.Equal(t, gpio.Duty(0), duty(pin))

	require.NoError(t, b.Start(2*physic.KiloHertz, gpio.DutyHalf, 2*time.Millisecond, 3*time.Millisecond))
	assert.Equal(t, 2*physic.KiloHertz, pin.F)
	assert.Equal(t, gpio.Duty(0), duty(pin))

	var trace []gpio.Duty
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Update())
		trace = append(trace, duty(pin))
	}
	off, on := gpio.Duty(0), gpio.DutyHalf
	assert.Equal(t, []gpio.Duty{off, off, on, on, off, off, off, on, on, off}, trace)
}

func TestBuzzerStop(t *testing.T) {
	pin := &gpiotest.Pin{N: "PWM"}
	b := New(pin)

	require.NoError(t, b.Start(physic.KiloHertz, gpio.DutyMax, time.Millisecond, time.Millisecond))
	require.NoError(t, b.Update())
	assert.Equal(t, gpio.DutyMax, duty(pin))
	assert.True(t, b.Active())

	require.NoError(t, b.Stop())
	assert.Equal(t, gpio.Duty(0), duty(pin))
	assert.False(t, b.Active())

	require.NoError(t, b.Update())
	assert.Equal(t, gpio.Duty(0), duty(pin))
	require.NoError(t, b.Stop(), "stopping twice is harmless")
}

func TestBuzzerRestartResetsRhythm(t *testing.T) {
	pin := &gpiotest.Pin{N: "PWM"}
	b := New(pin)

	require.NoError(t, b.Start(physic.KiloHertz, gpio.DutyHalf, 5*time.Millisecond, 2*time.Millisecond))
	require.NoError(t, b.Update())
	require.NoError(t, b.Start(physic.KiloHertz, gpio.DutyHalf, 5*time.Millisecond, 2*time.Millisecond))
	require.NoError(t, b.Update())
	assert.Equal(t, gpio.Duty(0), duty(pin))
	require.NoError(t, b.Update())
	assert.Equal(t, gpio.DutyHalf, duty(pin))
}

func TestBuzzerInvalidFrequency(t *testing.T) {
	b := New(&gpiotest.Pin{N: "PWM"})
	assert.Error(t, b.Start(0, gpio.DutyHalf, time.Millisecond, time.Millisecond))
	assert.False(t, b.Active())
}

func TestBuzzerRun(t *testing.T) {
	pin := &gpiotest.Pin{N: "PWM"}
	clock := clockwork.NewFakeClock()
	b := New(pin, WithClock(clock))
	require.NoError(t, b.Start(physic.KiloHertz, gpio.DutyHalf, 10*time.Millisecond, time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- b.Run(ctx) }()

	require.Eventually(t, func() bool {
		clock.Advance(Tick)
		return duty(pin) == gpio.DutyHalf
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, gpio.Duty(0), duty(pin))
	assert.False(t, b.Active())
}
