package main

import (
	"context"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/climate/adapter"
	"github.com/mklimuk/climate/cmd/climate/console"
)

var bridgeFlags = []cli.Flag{
	&cli.IntFlag{
		Name:  "index",
		Value: -1,
		Usage: "bridge index as listed by usb detect, needed with more than one bridge",
	},
}

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "inspect and reset the MCP2221 bridge",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221SpeedCmd,
	},
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Flags: bridgeFlags,
	Action: func(c *cli.Context) error {
		ctx, cancel := commandContext(c)
		defer cancel()
		a := adapter.NewMCP2221(adapter.WithIndex(c.Int("index")))
		status, err := a.Status(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return printStatus(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and free the bus",
	Flags: bridgeFlags,
	Action: func(c *cli.Context) error {
		ctx, cancel := commandContext(c)
		defer cancel()
		a := adapter.NewMCP2221(adapter.WithIndex(c.Int("index")))
		status, err := a.ReleaseBus(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return printStatus(status)
	},
}

var mcp2221SpeedCmd = cli.Command{
	Name:      "speed",
	Usage:     "set the bridge bus clock",
	ArgsUsage: "<hz>",
	Flags:     bridgeFlags,
	Action: func(c *cli.Context) error {
		hz, err := strconv.ParseUint(c.Args().First(), 10, 32)
		if err != nil || hz == 0 {
			return console.Exit(1, "invalid speed %q", c.Args().First())
		}
		ctx, cancel := commandContext(c)
		defer cancel()
		a := adapter.NewMCP2221(adapter.WithIndex(c.Int("index")))
		if err := a.SetSpeed(ctx, uint32(hz)); err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return showStatus(ctx, a)
	},
}

func showStatus(ctx context.Context, a *adapter.MCP2221) error {
	status, err := a.Status(ctx)
	if err != nil {
		return console.Exit(1, "adapter communication error: %s", console.Red(err))
	}
	return printStatus(status)
}

func printStatus(status *adapter.MCP2221Status) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(status); err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return nil
}
