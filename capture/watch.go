package capture

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const DefaultPoll = 100 * time.Millisecond

// Arm configures pin for both edges. Drivers may discard edges that were pending before
// the call, so whatever produces the signal must not be relied on before Arm returns.
func Arm(pin gpio.PinIn) error {
	if err := pin.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		return fmt.Errorf("could not arm %s for edge detection: %w", pin, err)
	}
	return nil
}

// Listen delivers every edge detected on an armed pin to handler through d until ctx
// is done and disarms the pin on return. poll bounds how long a single wait blocks,
// which is also the worst case latency of a cancellation.
func Listen(ctx context.Context, pin gpio.PinIn, d Dispatcher, handler func(), poll time.Duration) error {
	if poll <= 0 {
		poll = DefaultPoll
	}
	defer func() {
		_ = pin.In(gpio.PullNoChange, gpio.NoEdge)
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if pin.WaitForEdge(poll) {
			d.Dispatch(handler)
		}
	}
}

// Watch arms pin and listens on it until ctx is done.
func Watch(ctx context.Context, pin gpio.PinIn, d Dispatcher, handler func(), poll time.Duration) error {
	if err := Arm(pin); err != nil {
		return err
	}
	return Listen(ctx, pin, d, handler, poll)
}
