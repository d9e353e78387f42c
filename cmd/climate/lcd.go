package main

import (
	"context"
	"errors"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/climate/cmd/climate/console"
	"github.com/mklimuk/climate/config"
	"github.com/mklimuk/climate/display"
)

var lcdFlags = append([]cli.Flag{
	&cli.UintFlag{
		Name:  "address",
		Usage: "backpack address",
	},
}, busFlags...)

var lcdCmd = cli.Command{
	Name:  "lcd",
	Usage: "drive the character display",
	Subcommands: []*cli.Command{
		&lcdWriteCmd,
		&lcdConsoleCmd,
	},
}

var lcdWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "show up to two lines",
	ArgsUsage: "<line 1> [line 2]",
	Flags:     lcdFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 || c.NArg() > display.Rows {
			return console.Exit(1, "expected 1 or 2 lines, got %d", c.NArg())
		}
		return withLCD(c, func(ctx context.Context, lcd *display.LCD) error {
			for row := 0; row < display.Rows; row++ {
				if err := lcd.WriteLine(ctx, row, c.Args().Get(row)); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var lcdConsoleCmd = cli.Command{
	Name:  "console",
	Usage: "type lines onto the display; /clear blanks it, /row N selects a row",
	Flags: lcdFlags,
	Action: func(c *cli.Context) error {
		return withLCD(c, func(ctx context.Context, lcd *display.LCD) error {
			row := 0
			return console.Loop("lcd> ", func(line string) error {
				switch {
				case line == "/clear":
					row = 0
					return lcd.Clear(ctx)
				case strings.HasPrefix(line, "/row "):
					switch strings.TrimSpace(strings.TrimPrefix(line, "/row ")) {
					case "0":
						row = 0
					case "1":
						row = 1
					default:
						return errors.New("row must be 0 or 1")
					}
					return nil
				}
				if err := lcd.WriteLine(ctx, row, line); err != nil {
					return err
				}
				row = (row + 1) % display.Rows
				return nil
			})
		})
	},
}

// withLCD opens the bus, initializes the display and runs f.
func withLCD(c *cli.Context, f func(ctx context.Context, lcd *display.LCD) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("address") {
		cfg.Display.Address = byte(c.Uint("address"))
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

	lcd := display.NewLCD(bus, display.WithAddress(cfg.Display.Address))
	if err := lcd.Init(ctx); err != nil {
		return console.Exit(1, "display initialization error: %s", console.Red(err))
	}
	if err := f(ctx, lcd); err != nil {
		return console.Exit(1, "display error: %s", console.Red(err))
	}
	if sim != nil {
		console.Printf("%s\n", sim.screen())
	}
	return nil
}
