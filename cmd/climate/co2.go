package main

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/climate/air"
	"github.com/mklimuk/climate/capture"
	"github.com/mklimuk/climate/cmd/climate/console"
	"github.com/mklimuk/climate/config"
)

var co2Cmd = cli.Command{
	Name:  "co2",
	Usage: "watch the MH-Z19B PWM output and print the concentration",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "pin",
			Usage: "GPIO the sensor PWM output is wired to",
		},
		&cli.UintFlag{
			Name:  "range",
			Usage: "sensor range in ppm, 2000 or 5000",
		},
		&cli.DurationFlag{
			Name:  "duration",
			Value: 10 * time.Second,
			Usage: "how long to watch",
		},
		&cli.BoolFlag{
			Name:  "sim",
			Usage: "decode a generated signal instead of a real pin",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		if c.IsSet("pin") {
			cfg.CO2.Pin = c.String("pin")
		}
		if c.IsSet("range") {
			cfg.CO2.Range = uint16(c.Uint("range"))
		}
		if err := cfg.Validate(); err != nil {
			return console.Exit(1, "invalid options: %s", console.Red(err))
		}
		ctx, cancel := commandContext(c)
		defer cancel()
		ctx, stop := context.WithTimeout(ctx, c.Duration("duration"))
		defer stop()

		var sim *simulation
		if c.Bool("sim") {
			cfg.Bus.Adapter = config.AdapterSim
			sim = newSimulation(cfg)
		}
		sensor, err := newCO2Sensor(cfg, sim)
		if err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		if err := sensor.Arm(); err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		if sim != nil {
			go func() { _ = sim.runCO2(ctx) }()
		}
		errc := make(chan error, 1)
		go func() { errc <- sensor.Run(ctx) }()

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case err := <-errc:
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					return nil
				}
				return console.Exit(1, "edge capture error: %s", console.Red(err))
			case <-ticker.C:
			}
			ppm, err := sensor.GetCO2(ctx)
			switch {
			case err == nil:
				console.PInfof(console.PictoCloud, "%s ppm", console.White(ppm))
			case errors.Is(err, capture.ErrNoSample):
				console.Infof("waiting for a complete cycle")
			default:
				console.Warnf("%s", err)
			}
		}
	},
}

// newCO2Sensor opens the configured pin or, with sim set, the generated signal.
func newCO2Sensor(cfg config.Config, sim *simulation) (*air.MHZ19B, error) {
	mask := &capture.HostMask{}
	if sim != nil {
		return air.NewMHZ19B(sim.co2.Pin, mask,
			air.WithRange(cfg.CO2.Range),
			air.WithPoll(cfg.CO2.Poll),
			air.WithCounter(sim.co2),
		), nil
	}
	pin, err := openPin(cfg.CO2.Pin)
	if err != nil {
		return nil, err
	}
	return air.NewMHZ19B(pin, mask, air.WithRange(cfg.CO2.Range), air.WithPoll(cfg.CO2.Poll)), nil
}
