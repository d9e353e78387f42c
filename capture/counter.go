package capture

import "time"

// Counter is a free-running 16-bit hardware counter. It wraps from 65535 to 0 and is
// never reset by the decoder.
type Counter interface {
	Count() uint16
}

// CounterFunc adapts a function to Counter.
type CounterFunc func() uint16

func (f CounterFunc) Count() uint16 {
	return f()
}

// MicrosCounter ticks once per microsecond since its creation, truncated to 16 bits.
type MicrosCounter struct {
	start time.Time
}

func NewMicrosCounter() *MicrosCounter {
	return &MicrosCounter{start: time.Now()}
}

func (c *MicrosCounter) Count() uint16 {
	return uint16(time.Since(c.start).Microseconds())
}
