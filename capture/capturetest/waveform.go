// Package capturetest generates duty-cycle encoded signals on fake pins.
package capturetest

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"

	"github.com/mklimuk/climate/capture"
)

// DefaultTotal is the cycle length in ticks used by the generator. A real MH-Z19B cycle
// is 1004 ms and does not fit a 16-bit microsecond counter, so the generated cycle is
// shorter while keeping the fixed preamble and overhead.
const DefaultTotal = 54000

var _ capture.Counter = &Waveform{}

// Waveform drives Pin with cycles encoding a value and doubles as the counter the
// decoder stamps edges with. Every edge carries its own timestamp so that the
// generator can run ahead of the edge handler.
type Waveform struct {
	Pin   *Pin
	Total uint16
	Span  uint16
	Clock clockwork.Clock

	now uint16
}

func NewWaveform(name string, span uint16) *Waveform {
	return &Waveform{
		Pin:   NewPin(name),
		Total: DefaultTotal,
		Span:  span,
		Clock: clockwork.NewRealClock(),
	}
}

// Count returns the timestamp of the edge being handled.
func (w *Waveform) Count() uint16 {
	return w.Pin.Stamp()
}

// Ticks returns the high and low time encoding value.
func (w *Waveform) Ticks(value uint16) (uint16, uint16) {
	if value > w.Span {
		value = w.Span
	}
	payload := uint32(w.Total - capture.OverheadTicks)
	high := capture.PreambleTicks + uint32(value)*payload/uint32(w.Span)
	return uint16(high), w.Total - uint16(high)
}

// Cycle emits the rising and falling edge of one cycle and advances the time base by
// a full cycle. The decoder pairs the high time with the low time of the previous
// cycle, so a constant value needs two cycles to read back exactly.
func (w *Waveform) Cycle(ctx context.Context, value uint16) error {
	high, _ := w.Ticks(value)
	rise := w.now
	if err := w.edge(ctx, gpio.High, rise); err != nil {
		return err
	}
	if err := w.edge(ctx, gpio.Low, rise+high); err != nil {
		return err
	}
	w.now = rise + w.Total
	return nil
}

// Run emits one cycle every period with the value returned by next until ctx is done.
func (w *Waveform) Run(ctx context.Context, period time.Duration, next func() uint16) error {
	ticker := w.Clock.NewTicker(period)
	defer ticker.Stop()
	for {
		if err := w.Cycle(ctx, next()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

func (w *Waveform) edge(ctx context.Context, level gpio.Level, stamp uint16) error {
	select {
	case w.Pin.Edges <- Edge{Level: level, Stamp: stamp}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Triangle returns a generator sweeping between lo and hi by step on every call.
func Triangle(lo, hi, step uint16) (func() uint16, error) {
	if lo >= hi || step == 0 {
		return nil, errors.New("triangle needs lo < hi and a positive step")
	}
	v, up := lo, true
	return func() uint16 {
		out := v
		switch {
		case up && hi-v <= step:
			v, up = hi, false
		case up:
			v += step
		case !up && v-lo <= step:
			v, up = lo, true
		default:
			v -= step
		}
		return out
	}, nil
}
