// Package buzzer beeps a piezo buzzer on a PWM capable pin in a fixed on/off rhythm.
package buzzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Tick is the period Update expects to be called with.
const Tick = time.Millisecond

type Opts struct {
	Clock clockwork.Clock
}

type Opt func(*Opts)

// WithClock replaces the clock driving Run.
func WithClock(c clockwork.Clock) Opt {
	return func(o *Opts) {
		o.Clock = c
	}
}

// Buzzer alternates between silence and the configured duty cycle. The rhythm is
// counted in Update calls so it stays exact as long as Update is called once per Tick.
// Typical usage:
//
//	b := New(pin)
//	go b.Run(ctx)
//	err := b.Start(2*physic.KiloHertz, gpio.DutyHalf, 100*time.Millisecond, 900*time.Millisecond)
type Buzzer struct {
	mx      sync.Mutex
	pin     gpio.PinOut
	clock   clockwork.Clock
	started bool
	on      bool
	ticks   int
	freq    physic.Frequency
	duty    gpio.Duty
	onFor   int
	offFor  int
}

func New(pin gpio.PinOut, opts ...Opt) *Buzzer {
	config := Opts{Clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&config)
	}
	return &Buzzer{pin: pin, clock: config.Clock}
}

// Start sets the tone and the rhythm. The buzzer starts silent and sounds after off.
func (b *Buzzer) Start(freq physic.Frequency, duty gpio.Duty, on, off time.Duration) error {
	if freq <= 0 {
		return fmt.Errorf("buzzer: invalid frequency %s", freq)
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	b.freq = freq
	b.duty = duty
	b.onFor = int(on / Tick)
	b.offFor = int(off / Tick)
	b.ticks = 0
	b.on = false
	if err := b.pin.PWM(0, freq); err != nil {
		return fmt.Errorf("buzzer: start failed: %w", err)
	}
	b.started = true
	return nil
}

// Update advances the rhythm by one Tick. It does nothing until Start is called.
func (b *Buzzer) Update() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if !b.started {
		return nil
	}
	b.ticks++
	if b.on {
		if b.ticks >= b.onFor {
			b.ticks = 0
			b.on = false
			return b.pin.PWM(0, b.freq)
		}
		return nil
	}
	if b.ticks >= b.offFor {
		b.ticks = 0
		b.on = true
		return b.pin.PWM(b.duty, b.freq)
	}
	return nil
}

// Stop silences the buzzer and resets the rhythm.
func (b *Buzzer) Stop() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	wasStarted := b.started
	b.started = false
	b.on = false
	b.ticks = 0
	if !wasStarted {
		return nil
	}
	if err := b.pin.PWM(0, b.freq); err != nil {
		return fmt.Errorf("buzzer: stop failed: %w", err)
	}
	return nil
}

// Active reports whether the buzzer has been started and not stopped.
func (b *Buzzer) Active() bool {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.started
}

// Run calls Update every Tick until ctx is done, then silences the buzzer.
func (b *Buzzer) Run(ctx context.Context) error {
	ticker := b.clock.NewTicker(Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = b.Stop()
			return ctx.Err()
		case <-ticker.Chan():
			if err := b.Update(); err != nil {
				return fmt.Errorf("buzzer: update failed: %w", err)
			}
		}
	}
}
