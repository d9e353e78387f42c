// Package capture decodes a duty-cycle encoded digital signal from edge timestamps taken
// against a free-running counter.
//
// The decoder state is shared between an edge handler, which is the only writer, and a
// single foreground consumer. The consumer touches it only inside a critical section of
// the configured Mask and never performs the conversion while holding it.
//
// Edges are classified by reading the current pin level inside the handler, not by a
// latched edge flag. If the level changes again before the handler reads it the edge is
// misclassified and the following interval pair is wrong. Signals with periods in the
// millisecond range, such as the MH-Z19B PWM output, are far from that limit.
package capture

import (
	"errors"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
)

const (
	// PreambleTicks is the fixed high time every cycle starts with.
	PreambleTicks = 2000
	// OverheadTicks is the part of every cycle that carries no measurement.
	OverheadTicks = 4000
	// DefaultSpan is the full scale of the measurement.
	DefaultSpan = 5000
)

var (
	ErrNoSample    = errors.New("no complete cycle since the last sample")
	ErrOutOfWindow = errors.New("cycle timing outside the protocol window")
)

// LevelReader reads the current level of the monitored input.
type LevelReader interface {
	Read() gpio.Level
}

// Interval is one complete cycle of the signal in counter ticks.
type Interval struct {
	High uint16
	Low  uint16
}

type DecoderOpts struct {
	Span uint16
}

type DecoderOpt func(*DecoderOpts)

// WithSpan sets the value a cycle with no low time beyond the overhead converts to.
func WithSpan(span uint16) DecoderOpt {
	return func(o *DecoderOpts) {
		o.Span = span
	}
}

type Decoder struct {
	pin     LevelReader
	counter Counter
	mask    Mask
	span    uint32

	lastRise uint16
	lastFall uint16
	high     uint16
	low      uint16
	ready    atomic.Bool
}

func NewDecoder(pin LevelReader, counter Counter, mask Mask, opts ...DecoderOpt) *Decoder {
	config := DecoderOpts{Span: DefaultSpan}
	for _, opt := range opts {
		opt(&config)
	}
	return &Decoder{pin: pin, counter: counter, mask: mask, span: uint32(config.Span)}
}

// HandleEdge is the edge interrupt handler. It must run with the decoder's Mask disabled,
// which is what the interrupt controller or Dispatcher guarantees.
func (d *Decoder) HandleEdge() {
	now := d.counter.Count()
	if d.pin.Read() == gpio.High {
		// modular subtraction absorbs a single counter wraparound
		d.low = now - d.lastFall
		d.lastRise = now
		return
	}
	d.high = now - d.lastRise
	d.lastFall = now
	d.ready.Store(true)
}

// Ready reports whether an unread cycle is available.
func (d *Decoder) Ready() bool {
	return d.ready.Load()
}

// TryTake drains the latest complete cycle. It returns false when no cycle completed
// since the previous successful call.
func (d *Decoder) TryTake() (Interval, bool) {
	if !d.ready.Load() {
		return Interval{}, false
	}
	defer d.mask.Restore(d.mask.Disable())
	iv := Interval{High: d.high, Low: d.low}
	d.ready.Store(false)
	return iv, true
}

// Convert maps a cycle onto [0, span] as span*(high-2000)/(high+low-4000), truncating.
func (d *Decoder) Convert(iv Interval) (uint16, error) {
	total := uint32(iv.High) + uint32(iv.Low)
	// a total of exactly OverheadTicks carries no information and would divide by zero
	if iv.High < PreambleTicks || total <= OverheadTicks {
		return 0, ErrOutOfWindow
	}
	value := d.span * (uint32(iv.High) - PreambleTicks) / (total - OverheadTicks)
	if value > d.span {
		value = d.span
	}
	return uint16(value), nil
}

// Read drains and converts the latest cycle.
func (d *Decoder) Read() (uint16, error) {
	iv, ok := d.TryTake()
	if !ok {
		return 0, ErrNoSample
	}
	return d.Convert(iv)
}

// Sample is Read with both errors collapsed into 0.
func (d *Decoder) Sample() uint16 {
	value, err := d.Read()
	if err != nil {
		return 0
	}
	return value
}
