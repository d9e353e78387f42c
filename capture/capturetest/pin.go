package capturetest

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

var _ gpio.PinIn = &Pin{}

// Edge is a level change together with the counter value it happened at.
type Edge struct {
	Level gpio.Level
	Stamp uint16
}

// Pin is a fake input whose edges carry their own timestamp. An edge and its stamp are
// received in one step, so edges discarded when the pin is armed never leave a stale
// stamp behind.
type Pin struct {
	*gpiotest.Pin
	Edges chan Edge

	mx    sync.Mutex
	stamp uint16
}

func NewPin(name string) *Pin {
	return &Pin{
		Pin:   &gpiotest.Pin{N: name, Clock: clockwork.NewRealClock()},
		Edges: make(chan Edge),
	}
}

// In drops pending edges the way a driver does when edge detection is reconfigured.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if err := p.Pin.In(pull, gpio.NoEdge); err != nil {
		return err
	}
	for {
		select {
		case <-p.Edges:
		default:
			return nil
		}
	}
}

// WaitForEdge receives the next edge, sets the level and records its stamp.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	var e Edge
	if timeout < 0 {
		e = <-p.Edges
	} else {
		select {
		case <-p.Pin.Clock.After(timeout):
			return false
		case e = <-p.Edges:
		}
	}
	p.mx.Lock()
	p.stamp = e.Stamp
	p.mx.Unlock()
	_ = p.Out(e.Level)
	return true
}

// Stamp returns the timestamp of the last received edge.
func (p *Pin) Stamp() uint16 {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.stamp
}
