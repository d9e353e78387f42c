package main

import (
	"context"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/mklimuk/climate/capture/capturetest"
	"github.com/mklimuk/climate/config"
	"github.com/mklimuk/climate/display/displaytest"
	"github.com/mklimuk/climate/twi"
	"github.com/mklimuk/climate/twi/twitest"
)

// simCoreHz is the peripheral clock of the simulated controller.
const simCoreHz = 16_000_000

// simulation wires the bus engine to an in-memory peripheral with an HTU21 and an LCD
// backpack attached, plus a generated CO2 signal and a fake PWM pin.
type simulation struct {
	lcd *displaytest.Screen
	bus *twi.Bus
	co2 *capturetest.Waveform
	pwm *gpiotest.Pin
}

func newSimulation(cfg config.Config) *simulation {
	regs := twitest.NewPeripheral()
	regs.History = 256
	htu21 := &twitest.HTU21{Temperature: 22.5, Humidity: 45}
	lcd := displaytest.NewScreen()
	regs.Attach(0x40, htu21)
	regs.Attach(cfg.Display.Address, lcd)

	engine := twi.NewEngine(regs)
	engine.Configure(simCoreHz, cfg.Bus.Speed)
	slog.Debug("simulated bus configured", "timing", engine.Timing())

	return &simulation{
		lcd: lcd,
		// peers are left holding the bus on a failed write, drivers release it themselves
		bus: twi.NewBus(engine, twi.WithoutRelease()),
		co2: capturetest.NewWaveform(cfg.CO2.Pin, cfg.CO2.Range),
		pwm: &gpiotest.Pin{N: cfg.Alarm.Pin},
	}
}

// runCO2 sweeps the generated concentration across the alarm threshold.
func (s *simulation) runCO2(ctx context.Context) error {
	next, err := capturetest.Triangle(600, 1900, 50)
	if err != nil {
		return err
	}
	return s.co2.Run(ctx, time.Second, next)
}

// screen returns the text last written to the simulated display.
func (s *simulation) screen() string {
	return s.lcd.String()
}
