package main

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/climate"
	"github.com/mklimuk/climate/adapter"
	"github.com/mklimuk/climate/config"
	"github.com/mklimuk/climate/i2c"
)

// openBus opens the transport named by cfg.Adapter. The returned func releases it.
func openBus(ctx context.Context, cfg config.Bus, sim *simulation) (climate.I2CBus, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Adapter {
	case config.AdapterMCP2221:
		bridge := adapter.NewMCP2221()
		if err := bridge.Init(ctx); err != nil {
			return nil, nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		if err := bridge.SetSpeed(ctx, cfg.Speed); err != nil {
			slog.Warn("keeping the bridge bus speed", "speed", cfg.Speed, "error", err)
		}
		return bridge, noop, nil
	case config.AdapterGeneric:
		bus, err := i2c.NewGenericBus(cfg.Device)
		if err != nil {
			return nil, nil, err
		}
		if err := bus.SetSpeed(cfg.Speed); err != nil {
			slog.Warn("keeping the host bus speed", "speed", cfg.Speed, "error", err)
		}
		return bus, bus.Close, nil
	case config.AdapterNanoPi:
		bus, err := i2c.NewNanoPiBus(cfg.Number)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	case config.AdapterSim:
		if sim == nil {
			return nil, nil, fmt.Errorf("simulated bus not available")
		}
		return sim.bus, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown adapter %q", cfg.Adapter)
	}
}

// openPin looks up a host GPIO by name, e.g. "GPIO17".
func openPin(name string) (gpio.PinIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no GPIO named %q", name)
	}
	return p, nil
}
