package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/climate/buzzer"
	"github.com/mklimuk/climate/cmd/climate/console"
	"github.com/mklimuk/climate/config"
	"github.com/mklimuk/climate/station"
)

var buzzCmd = cli.Command{
	Name:  "buzz",
	Usage: "beep the alarm buzzer",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "pin", Usage: "PWM capable GPIO the buzzer is wired to"},
		&cli.UintFlag{Name: "frequency", Usage: "tone frequency in Hz"},
		&cli.UintFlag{Name: "duty", Usage: "duty cycle in percent"},
		&cli.DurationFlag{Name: "on", Usage: "beep length"},
		&cli.DurationFlag{Name: "off", Usage: "pause length"},
		&cli.DurationFlag{Name: "duration", Value: 3 * time.Second, Usage: "how long to beep"},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		if c.IsSet("pin") {
			cfg.Alarm.Pin = c.String("pin")
		}
		if c.IsSet("frequency") {
			cfg.Alarm.Frequency = uint32(c.Uint("frequency"))
		}
		if c.IsSet("duty") {
			duty, err := dutyPercent(c.Uint("duty"))
			if err != nil {
				return console.Exit(1, "invalid options: %s", console.Red(err))
			}
			cfg.Alarm.Duty = duty
		}
		if c.IsSet("on") {
			cfg.Alarm.On = c.Duration("on")
		}
		if c.IsSet("off") {
			cfg.Alarm.Off = c.Duration("off")
		}
		if err := cfg.Validate(); err != nil {
			return console.Exit(1, "invalid options: %s", console.Red(err))
		}
		pin, err := openPin(cfg.Alarm.Pin)
		if err != nil {
			return console.Exit(1, "pin error: %s", console.Red(err))
		}
		ctx, cancel := commandContext(c)
		defer cancel()
		ctx, stop := context.WithTimeout(ctx, c.Duration("duration"))
		defer stop()

		b := buzzer.New(pin)
		tone := toneFromConfig(cfg.Alarm)
		if err := b.Start(tone.Frequency, tone.Duty, tone.On, tone.Off); err != nil {
			return console.Exit(1, "buzzer error: %s", console.Red(err))
		}
		console.PInfof(console.PictoBell, "beeping at %s on %s", console.White(tone.Frequency), console.White(cfg.Alarm.Pin))
		err = b.Run(ctx)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return console.Exit(1, "buzzer error: %s", console.Red(err))
		}
		return nil
	},
}

// dutyPercent checks the flag value before it is narrowed to the config field.
func dutyPercent(v uint) (uint8, error) {
	if v > 100 {
		return 0, fmt.Errorf("duty %d%% above 100%%", v)
	}
	return uint8(v), nil
}

func toneFromConfig(a config.Alarm) station.Tone {
	return station.Tone{
		Frequency: physic.Frequency(a.Frequency) * physic.Hertz,
		Duty:      gpio.DutyMax * gpio.Duty(a.Duty) / 100,
		On:        a.On,
		Off:       a.Off,
	}
}
