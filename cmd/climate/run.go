package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/urfave/cli/v2"
	"periph.io/x/conn/v3/gpio"

	"github.com/mklimuk/climate/buzzer"
	"github.com/mklimuk/climate/cmd/climate/console"
	"github.com/mklimuk/climate/config"
	"github.com/mklimuk/climate/display"
	"github.com/mklimuk/climate/environment"
	"github.com/mklimuk/climate/station"
)

var runCmd = cli.Command{
	Name:  "run",
	Usage: "run the station: read the sensors, update the display, sound the alarm",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "do not print readings",
		},
	}, busFlags...),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		if err := applyBusFlags(c, &cfg); err != nil {
			return err
		}
		ctx, cancel := commandContext(c)
		defer cancel()

		var sim *simulation
		if cfg.Bus.Adapter == config.AdapterSim {
			sim = newSimulation(cfg)
			console.Infof("running against the simulated bus")
		}
		bus, closeBus, err := openBus(ctx, cfg.Bus, sim)
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		defer func() {
			if err := closeBus(); err != nil {
				console.Errorf("error closing bus: %s", console.Red(err))
			}
		}()

		env := environment.NewHTU21(bus, environment.WithMeasureDelay(cfg.HTU21.Delay))
		co2, err := newCO2Sensor(cfg, sim)
		if err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		if err := co2.Arm(); err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		if sim != nil {
			go func() { _ = sim.runCO2(ctx) }()
		}
		go func() {
			err := co2.Run(ctx)
			if err != nil && ctx.Err() == nil {
				slog.Error("co2 edge capture stopped", "error", err)
			}
		}()

		var screen station.Display
		if cfg.Display.Enabled {
			lcd := display.NewLCD(bus, display.WithAddress(cfg.Display.Address))
			if err := lcd.Init(ctx); err != nil {
				console.Warnf("running without display: %s", err)
			} else {
				screen = lcd
			}
		}

		var alarm station.Alarm
		if cfg.Alarm.Threshold > 0 {
			alarm, err = newAlarm(ctx, cfg, sim)
			if err != nil {
				return console.Exit(1, "alarm initialization error: %s", console.Red(err))
			}
		}

		st := station.New(env, co2, screen, alarm,
			station.WithInterval(cfg.Station.Interval),
			station.WithThreshold(cfg.Alarm.Threshold),
		)
		readings := make(chan station.Reading)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for r := range readings {
				if c.Bool("quiet") {
					continue
				}
				printReading(r)
				if sim != nil {
					slog.Debug("simulated display", "screen", sim.screen())
				}
			}
		}()
		err = st.Run(ctx, readings)
		close(readings)
		<-done
		if err != nil && !errors.Is(err, context.Canceled) {
			return console.Exit(1, "station error: %s", console.Red(err))
		}
		return nil
	},
}

// newAlarm starts a buzzer on the alarm pin and wraps it for the station.
func newAlarm(ctx context.Context, cfg config.Config, sim *simulation) (station.Alarm, error) {
	var pin gpio.PinOut
	if sim != nil {
		pin = sim.pwm
	} else {
		p, err := openPin(cfg.Alarm.Pin)
		if err != nil {
			return nil, err
		}
		pin = p
	}
	b := buzzer.New(pin)
	go func() {
		if err := b.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("buzzer stopped", "error", err)
		}
	}()
	return station.NewBuzzerAlarm(b, toneFromConfig(cfg.Alarm)), nil
}

func printReading(r station.Reading) {
	line := station.FormatEnvironment(r) + "  " + station.FormatCO2(r)
	if r.EnvErr != nil || r.CO2Err != nil {
		console.PInfof(console.PictoStop, "%s", console.Yellow(line))
		return
	}
	if r.Alarm {
		console.PInfof(console.PictoBell, "%s", console.Red(line))
		return
	}
	console.PInfof(console.PictoThermometer, "%s", console.White(line))
}
