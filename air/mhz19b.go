package air

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/mklimuk/climate"
	"github.com/mklimuk/climate/capture"
)

var _ climate.CO2Sensor = &MHZ19B{}

// Measurement ranges selectable on the sensor.
const (
	Range2000 uint16 = 2000
	Range5000 uint16 = 5000
)

type MHZ19BOpts struct {
	Range   uint16
	Counter capture.Counter
	Poll    time.Duration
}

type MHZ19BOpt func(*MHZ19BOpts)

// WithRange sets the full scale the sensor is configured for, Range2000 or Range5000.
func WithRange(ppm uint16) MHZ19BOpt {
	return func(o *MHZ19BOpts) {
		o.Range = ppm
	}
}

// WithCounter replaces the host microsecond counter, typically with a hardware timer.
func WithCounter(c capture.Counter) MHZ19BOpt {
	return func(o *MHZ19BOpts) {
		o.Counter = c
	}
}

// WithPoll bounds a single edge wait in Run.
func WithPoll(d time.Duration) MHZ19BOpt {
	return func(o *MHZ19BOpts) {
		o.Poll = d
	}
}

// MHZ19B represents Winsen MH-Z19B NDIR CO2 sensor read through its PWM output.
// The output cycle is 1004 ms long: 2 ms high, a high part proportional to the
// concentration, then a low part, closing with 2 ms low.
// Typical usage:
//
//	mask := &capture.HostMask{}
//	s := NewMHZ19B(pin, mask)
//	if err := s.Arm(); err != nil {
//		return err
//	}
//	go s.Run(ctx)
//	ppm, err := s.GetCO2(ctx)
type MHZ19B struct {
	pin     gpio.PinIn
	mask    capture.Mask
	poll    time.Duration
	decoder *capture.Decoder
	armed   atomic.Bool
}

func NewMHZ19B(pin gpio.PinIn, mask capture.Mask, opts ...MHZ19BOpt) *MHZ19B {
	config := MHZ19BOpts{
		Range: Range5000,
		Poll:  capture.DefaultPoll,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Counter == nil {
		config.Counter = capture.NewMicrosCounter()
	}
	return &MHZ19B{
		pin:     pin,
		mask:    mask,
		poll:    config.Poll,
		decoder: capture.NewDecoder(pin, config.Counter, mask, capture.WithSpan(config.Range)),
	}
}

// HandleEdge is the edge interrupt handler to register on targets with a real
// interrupt controller.
func (s *MHZ19B) HandleEdge() {
	s.decoder.HandleEdge()
}

// Arm enables edge detection on the pin. Call it before the sensor output can toggle
// when the first cycle matters; Run arms the pin itself otherwise.
func (s *MHZ19B) Arm() error {
	if err := capture.Arm(s.pin); err != nil {
		return fmt.Errorf("mhz19b: %w", err)
	}
	s.armed.Store(true)
	return nil
}

// Run feeds pin edges to the decoder until ctx is done. The mask must also be a
// capture.Dispatcher.
func (s *MHZ19B) Run(ctx context.Context) error {
	d, ok := s.mask.(capture.Dispatcher)
	if !ok {
		return fmt.Errorf("mhz19b: mask %T cannot dispatch edges", s.mask)
	}
	if !s.armed.Load() {
		if err := s.Arm(); err != nil {
			return err
		}
	}
	defer s.armed.Store(false)
	return capture.Listen(ctx, s.pin, d, s.decoder.HandleEdge, s.poll)
}

// GetCO2 returns the concentration from the latest complete cycle in ppm. It fails
// with capture.ErrNoSample when no cycle completed since the previous call and with
// capture.ErrOutOfWindow when the cycle timing is invalid.
func (s *MHZ19B) GetCO2(ctx context.Context) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ppm, err := s.decoder.Read()
	if err != nil {
		return 0, fmt.Errorf("mhz19b: co2 read failed: %w", err)
	}
	return ppm, nil
}

// PPM returns the latest concentration or 0 when there is none or it is invalid.
func (s *MHZ19B) PPM() uint16 {
	return s.decoder.Sample()
}
