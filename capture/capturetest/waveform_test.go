package capturetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/mklimuk/climate/capture"
)

func TestWaveformTicks(t *testing.T) {
	w := NewWaveform("GPIO17", 5000)

	high, low := w.Ticks(1000)
	assert.Equal(t, uint16(12000), high)
	assert.Equal(t, uint16(42000), low)

	high, low = w.Ticks(9000)
	assert.Equal(t, uint16(52000), high, "clamped to span")
	assert.Equal(t, uint16(2000), low)
}

func TestWaveformDecodes(t *testing.T) {
	w := NewWaveform("GPIO17", 5000)
	mask := &capture.HostMask{}
	d := capture.NewDecoder(w.Pin, w, mask, capture.WithSpan(5000))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, capture.Arm(w.Pin))
	errc := make(chan error, 1)
	go func() {
		errc <- capture.Listen(ctx, w.Pin, mask, d.HandleEdge, 10*time.Millisecond)
	}()

	require.NoError(t, w.Cycle(ctx, 1000))
	require.NoError(t, w.Cycle(ctx, 1000))
	require.Eventually(t, func() bool {
		v, err := d.Read()
		return err == nil && v == 1000
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestWaveformStartedBeforeWatch(t *testing.T) {
	w := NewWaveform("GPIO17", 5000)
	mask := &capture.HostMask{}
	d := capture.NewDecoder(w.Pin, w, mask, capture.WithSpan(5000))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	genc := make(chan error, 1)
	go func() {
		genc <- w.Run(ctx, 5*time.Millisecond, func() uint16 { return 1000 })
	}()
	// let the generator block on its first edge so that arming discards it
	time.Sleep(10 * time.Millisecond)

	errc := make(chan error, 1)
	go func() {
		errc <- capture.Watch(ctx, w.Pin, mask, d.HandleEdge, 10*time.Millisecond)
	}()
	require.Eventually(t, func() bool {
		v, err := d.Read()
		return err == nil && v == 1000
	}, 2*time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.ErrorIs(t, <-genc, context.Canceled)
}

func TestPinDropsPendingEdges(t *testing.T) {
	p := NewPin("GPIO17")
	sent := make(chan struct{})
	go func() {
		p.Edges <- Edge{Level: gpio.High, Stamp: 500}
		close(sent)
	}()
	require.Eventually(t, func() bool {
		if err := p.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
			return false
		}
		select {
		case <-sent:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	assert.False(t, p.WaitForEdge(5*time.Millisecond))
	assert.Equal(t, uint16(0), p.Stamp(), "a dropped edge leaves no stamp")

	go func() { p.Edges <- Edge{Level: gpio.High, Stamp: 700} }()
	require.True(t, p.WaitForEdge(time.Second))
	assert.Equal(t, uint16(700), p.Stamp())
	assert.Equal(t, gpio.High, p.Read())
}

func TestWaveformCancelled(t *testing.T) {
	w := NewWaveform("GPIO17", 2000)
	w.now = 100
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.Cycle(ctx, 500), context.Canceled)
	assert.Equal(t, uint16(0), w.Count(), "an undelivered edge leaves no stamp")
}

func TestTriangle(t *testing.T) {
	next, err := Triangle(600, 1000, 200)
	require.NoError(t, err)

	var got []uint16
	for i := 0; i < 6; i++ {
		got = append(got, next())
	}
	assert.Equal(t, []uint16{600, 800, 1000, 800, 600, 800}, got)

	_, err = Triangle(1000, 600, 10)
	assert.Error(t, err)
}
