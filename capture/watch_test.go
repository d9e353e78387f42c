package capture

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestWatchDeliversEdges(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17", EdgesChan: make(chan gpio.Level)}
	stamps := []uint16{1000, 4000, 9000}
	var calls atomic.Int32
	counter := CounterFunc(func() uint16 {
		return stamps[calls.Add(1)-1]
	})
	mask := &HostMask{}
	d := NewDecoder(pin, counter, mask)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, Arm(pin))
	errc := make(chan error, 1)
	go func() {
		errc <- Listen(ctx, pin, mask, d.HandleEdge, 10*time.Millisecond)
	}()

	pin.EdgesChan <- gpio.Low
	pin.EdgesChan <- gpio.High
	pin.EdgesChan <- gpio.Low
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop after cancellation")
	}

	value, err := d.Read()
	require.NoError(t, err)
	// high 5000, low 3000
	assert.Equal(t, uint16(3750), value)
}

func TestWatchRequiresEdgeSupport(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17"}
	d := NewDecoder(pin, NewMicrosCounter(), &HostMask{})

	err := Watch(context.Background(), pin, &HostMask{}, d.HandleEdge, 0)
	assert.Error(t, err)
}

func TestWatchStopsWithoutEdges(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17", EdgesChan: make(chan gpio.Level)}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := Watch(ctx, pin, &HostMask{}, func() { t.Error("unexpected edge") }, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
