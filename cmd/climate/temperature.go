package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/climate/cmd/climate/console"
	"github.com/mklimuk/climate/config"
	"github.com/mklimuk/climate/environment"
)

// busFlags override the bus section of the configuration.
var busFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Usage:   "bus adapter: generic, mcp2221, nanopi or sim",
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "periph bus name for the generic adapter, e.g. /dev/i2c-1",
	},
	&cli.IntFlag{
		Name:  "bus",
		Usage: "bus number for the nanopi adapter",
	},
	&cli.UintFlag{
		Name:  "speed",
		Usage: "bus clock in Hz",
	},
}

func applyBusFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("adapter") {
		cfg.Bus.Adapter = c.String("adapter")
	}
	if c.IsSet("device") {
		cfg.Bus.Device = c.String("device")
	}
	if c.IsSet("bus") {
		cfg.Bus.Number = c.Int("bus")
	}
	if c.IsSet("speed") {
		cfg.Bus.Speed = uint32(c.Uint("speed"))
	}
	if err := cfg.Validate(); err != nil {
		return console.Exit(1, "invalid options: %s", console.Red(err))
	}
	return nil
}

var tempReadCmd = cli.Command{
	Name:    "temperature",
	Aliases: []string{"temp"},
	Usage:   "read temperature and humidity from the HTU21",
	Flags:   busFlags,
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

		s := environment.NewHTU21(bus, environment.WithMeasureDelay(cfg.HTU21.Delay))
		temp, hum, err := s.GetTempAndHum(ctx)
		if err != nil {
			return console.Exit(1, "error getting temperature read: %s", console.Red(err))
		}
		console.Printf("%s  %s\n%s %s\n", console.PictoThermometer, console.White(temp), console.PictoHumidity, console.White(hum))
		return nil
	},
}
