package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/climate/air"
	"github.com/mklimuk/climate/config"
	"github.com/mklimuk/climate/display"
	"github.com/mklimuk/climate/environment"
	"github.com/mklimuk/climate/station"
)

func simConfig() config.Config {
	cfg := config.Default()
	cfg.Bus.Adapter = config.AdapterSim
	cfg.HTU21.Delay = time.Millisecond
	return cfg
}

func TestSimulatedStationStep(t *testing.T) {
	cfg := simConfig()
	sim := newSimulation(cfg)
	ctx := context.Background()

	bus, closeBus, err := openBus(ctx, cfg.Bus, sim)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closeBus()) }()

	env := environment.NewHTU21(bus, environment.WithMeasureDelay(cfg.HTU21.Delay))
	lcd := display.NewLCD(bus, display.WithAddress(cfg.Display.Address), display.WithSleep(func(context.Context, time.Duration) error {
		return nil
	}))
	require.NoError(t, lcd.Init(ctx))
	co2 := air.NewMockCO2Sensor(func(ctx context.Context) (uint16, error) { return 812, nil })

	r, err := station.New(env, co2, lcd, nil).Step(ctx)
	require.NoError(t, err)
	assert.NoError(t, r.EnvErr)
	assert.Equal(t, "T 22.5C H 45.0%\nCO2 812ppm", sim.screen())
}

func TestSimulatedCO2(t *testing.T) {
	cfg := simConfig()
	sim := newSimulation(cfg)
	sensor, err := newCO2Sensor(cfg, sim)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sensor.Arm())
	errc := make(chan error, 1)
	go func() { errc <- sensor.Run(ctx) }()

	for i := 0; i < 3; i++ {
		require.NoError(t, sim.co2.Cycle(ctx, 1000))
	}
	require.Eventually(t, func() bool {
		ppm, err := sensor.GetCO2(ctx)
		return err == nil && ppm == 1000
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestSimulatedCO2Sweep(t *testing.T) {
	cfg := simConfig()
	sim := newSimulation(cfg)
	sensor, err := newCO2Sensor(cfg, sim)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// generator first, the way a late sensor start sees it
	simc := make(chan error, 1)
	go func() { simc <- sim.co2.Run(ctx, 10*time.Millisecond, func() uint16 { return 1500 }) }()
	time.Sleep(5 * time.Millisecond)
	errc := make(chan error, 1)
	go func() { errc <- sensor.Run(ctx) }()

	require.Eventually(t, func() bool {
		ppm, err := sensor.GetCO2(ctx)
		return err == nil && ppm == 1500
	}, 3*time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.ErrorIs(t, <-simc, context.Canceled)
}

func TestOpenBusWithoutSimulation(t *testing.T) {
	_, _, err := openBus(context.Background(), config.Bus{Adapter: config.AdapterSim}, nil)
	assert.Error(t, err)

	_, _, err = openBus(context.Background(), config.Bus{Adapter: "serial"}, nil)
	assert.Error(t, err)
}

func TestToneFromConfig(t *testing.T) {
	tone := toneFromConfig(config.Default().Alarm)
	assert.Equal(t, 2*physic.KiloHertz, tone.Frequency)
	assert.Equal(t, gpio.DutyHalf, tone.Duty)
	assert.Equal(t, 200*time.Millisecond, tone.On)
	assert.Equal(t, 800*time.Millisecond, tone.Off)
}

func TestDutyPercent(t *testing.T) {
	duty, err := dutyPercent(100)
	require.NoError(t, err)
	assert.Equal(t, uint8(100), duty)

	_, err = dutyPercent(300)
	assert.ErrorContains(t, err, "300")
}
