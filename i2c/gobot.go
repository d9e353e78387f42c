package i2c

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	gi2c "gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/climate"
)

var _ climate.I2CBus = &GobotBus{}

// device is the part of gobot's GenericDriver used by the bus.
type device interface {
	Start() error
	Read(data []byte) error
	Write(data []byte) error
	Halt() error
}

type deviceFactory func(address byte) device

// GobotBus talks to peers through gobot generic drivers, one per address, started on
// first use.
type GobotBus struct {
	mx      sync.Mutex
	open    deviceFactory
	devices map[byte]device
	closer  func() error
}

// NewGobotBus builds a bus on top of an already connected gobot adaptor.
func NewGobotBus(adaptor gi2c.Connector, bus int) *GobotBus {
	return newGobotBus(func(address byte) device {
		return gi2c.NewGenericDriver(adaptor, fmt.Sprintf("climate-%#x", address), int(address), func(c gi2c.Config) {
			c.SetBus(bus)
		})
	}, nil)
}

// NewNanoPiBus connects the NanoPi NEO I2C adaptor and opens the numbered bus.
func NewNanoPiBus(bus int) (*GobotBus, error) {
	npi := nanopi.NewNeoAdaptor()
	err := npi.I2cBusAdaptor.Connect()
	if err != nil {
		return nil, fmt.Errorf("adaptor connect error: %w", err)
	}
	b := NewGobotBus(npi, bus)
	b.closer = npi.I2cBusAdaptor.Finalize
	return b, nil
}

func newGobotBus(open deviceFactory, closer func() error) *GobotBus {
	return &GobotBus{open: open, devices: make(map[byte]device), closer: closer}
}

func (b *GobotBus) driver(address byte) (device, error) {
	if d, ok := b.devices[address]; ok {
		return d, nil
	}
	d := b.open(address)
	if err := d.Start(); err != nil {
		return nil, fmt.Errorf("driver for %#x start error: %w", address, err)
	}
	b.devices[address] = d
	return d, nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.driver(address)
	if err != nil {
		return err
	}
	if err := d.Read(buffer); err != nil {
		return fmt.Errorf("could not read from i2c bus %#x: %w", address, err)
	}
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.driver(address)
	if err != nil {
		return err
	}
	if err := d.Write(buffer); err != nil {
		return fmt.Errorf("could not write to i2c bus %#x: %w", address, err)
	}
	return nil
}

// Release is a no-op: the kernel driver completes every transfer with a stop.
func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

// Close halts every started driver and finalizes the adaptor if the bus owns it.
func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	for addr, d := range b.devices {
		if err := d.Halt(); err != nil {
			slog.Debug("driver halt failed", "address", addr, "error", err)
		}
		delete(b.devices, addr)
	}
	if b.closer != nil {
		return b.closer()
	}
	return nil
}
