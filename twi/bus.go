package twi

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/climate"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

var (
	_ climate.I2CBus = &Bus{}
	_ i2c.Bus        = &Bus{}
)

type BusOpts struct {
	Release bool
}

type BusOpt func(*BusOpts)

// WithoutRelease makes failed writes behave like TransmitBuffer: the stop condition is
// not issued and the peer is left holding the bus until Release is called.
func WithoutRelease() BusOpt {
	return func(o *BusOpts) {
		o.Release = false
	}
}

// Bus exposes an Engine as a transaction level I2C bus. Calls are serialized.
type Bus struct {
	mx      sync.Mutex
	engine  *Engine
	release bool
}

func NewBus(engine *Engine, opts ...BusOpt) *Bus {
	config := BusOpts{Release: true}
	for _, opt := range opts {
		opt(&config)
	}
	return &Bus{engine: engine, release: config.Release}
}

func (b *Bus) String() string {
	return "twi"
}

func (b *Bus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.write(address, buffer)
}

func (b *Bus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.read(address, buffer)
}

// Release asserts a stop condition regardless of the bus state.
func (b *Bus) Release(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.engine.End()
	return nil
}

// Tx implements i2c.Bus. A write followed by a read is performed as two transactions
// separated by a stop condition since the engine has no repeated start.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("address %#x does not fit 7 bits", addr)
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	if len(w) > 0 || len(r) == 0 {
		if err := b.write(byte(addr), w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		return b.read(byte(addr), r)
	}
	return nil
}

// SetSpeed reprograms the bus clock keeping the core clock of the last Configure call.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	if f <= 0 || f > StandardModeMaxHz*physic.Hertz {
		return fmt.Errorf("bus speed %s out of standard mode range", f)
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.engine.coreHz == 0 {
		return fmt.Errorf("engine not configured")
	}
	b.engine.Configure(b.engine.coreHz, uint32(f/physic.Hertz))
	return nil
}

func (b *Bus) write(address byte, buffer []byte) error {
	var o Outcome
	if b.release {
		o = b.engine.Transmit(address, buffer)
	} else {
		o = b.engine.TransmitBuffer(address, buffer)
	}
	if o != Success {
		return fmt.Errorf("write to %#x failed: %w", address, o.Err())
	}
	return nil
}

func (b *Bus) read(address byte, buffer []byte) error {
	if o := b.engine.Receive(address, buffer); o != Success {
		return fmt.Errorf("read from %#x failed: %w", address, o.Err())
	}
	return nil
}
