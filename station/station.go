// Package station runs the climate monitor control loop: read the sensors, show the
// readings and sound the alarm while CO2 is too high.
package station

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mklimuk/climate"
	"github.com/mklimuk/climate/capture"
	"github.com/mklimuk/climate/environment"
)

// Display shows two lines of text.
type Display interface {
	WriteLine(ctx context.Context, row int, s string) error
}

// Alarm is switched on while CO2 is at or above the threshold.
type Alarm interface {
	Start() error
	Stop() error
}

// Reading is the outcome of a single loop iteration. Failed readings keep their
// previous value and carry the error.
type Reading struct {
	Temperature float32
	Humidity    float32
	CO2         uint16
	Alarm       bool
	EnvErr      error
	CO2Err      error
}

type Opts struct {
	Interval  time.Duration
	Threshold uint16
	Clock     clockwork.Clock
}

type Opt func(*Opts)

func WithInterval(d time.Duration) Opt {
	return func(o *Opts) {
		o.Interval = d
	}
}

// WithThreshold sets the CO2 level in ppm that triggers the alarm. Zero disables it.
func WithThreshold(ppm uint16) Opt {
	return func(o *Opts) {
		o.Threshold = ppm
	}
}

func WithClock(c clockwork.Clock) Opt {
	return func(o *Opts) {
		o.Clock = c
	}
}

// Station owns no hardware; it only sequences the collaborators. Failures are retried
// on the next iteration.
type Station struct {
	env     climate.TempHumSensor
	co2     climate.CO2Sensor
	display Display
	alarm   Alarm
	config  Opts

	last     Reading
	alarming bool
}

// New builds a station. display and alarm may be nil.
func New(env climate.TempHumSensor, co2 climate.CO2Sensor, display Display, alarm Alarm, opts ...Opt) *Station {
	config := Opts{
		Interval:  2 * time.Second,
		Threshold: 1500,
		Clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Station{
		env:     env,
		co2:     co2,
		display: display,
		alarm:   alarm,
		config:  config,
		last: Reading{
			Temperature: environment.NoReading,
			Humidity:    environment.NoReading,
		},
	}
}

// Step performs one iteration of the loop.
func (s *Station) Step(ctx context.Context) (Reading, error) {
	r := s.last
	r.EnvErr, r.CO2Err = nil, nil

	temp, hum, err := s.env.GetTempAndHum(ctx)
	if err != nil {
		r.EnvErr = err
		slog.Debug("temperature/humidity read failed", "error", err)
	} else {
		r.Temperature, r.Humidity = temp, hum
	}

	ppm, err := s.co2.GetCO2(ctx)
	switch {
	case err == nil:
		r.CO2 = ppm
	case errors.Is(err, capture.ErrNoSample):
		// the sensor completes a cycle about once a second; keep the previous value
	default:
		r.CO2Err = err
		slog.Debug("co2 read failed", "error", err)
	}

	var stepErr error
	if err := s.updateAlarm(r.CO2); err != nil {
		stepErr = err
	}
	r.Alarm = s.alarming

	if s.display != nil {
		if err := s.render(ctx, r); err != nil {
			stepErr = errors.Join(stepErr, err)
		}
	}
	slog.Debug("station reading", "temperature", r.Temperature, "humidity", r.Humidity, "co2", r.CO2, "alarm", r.Alarm)
	s.last = r
	return r, stepErr
}

// Run calls Step every interval until ctx is done. Display and alarm errors are
// logged and do not stop the loop.
func (s *Station) Run(ctx context.Context, readings chan<- Reading) error {
	ticker := s.config.Clock.NewTicker(s.config.Interval)
	defer ticker.Stop()
	defer func() {
		if s.alarm != nil && s.alarming {
			_ = s.alarm.Stop()
		}
	}()
	for {
		r, err := s.Step(ctx)
		if err != nil && ctx.Err() == nil {
			slog.Warn("station step failed", "error", err)
		}
		if readings != nil && ctx.Err() == nil {
			select {
			case readings <- r:
			case <-ctx.Done():
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

func (s *Station) updateAlarm(ppm uint16) error {
	if s.alarm == nil || s.config.Threshold == 0 {
		return nil
	}
	high := ppm >= s.config.Threshold
	if high == s.alarming {
		return nil
	}
	var err error
	if high {
		err = s.alarm.Start()
	} else {
		err = s.alarm.Stop()
	}
	if err != nil {
		return fmt.Errorf("alarm switch failed: %w", err)
	}
	s.alarming = high
	return nil
}

func (s *Station) render(ctx context.Context, r Reading) error {
	if err := s.display.WriteLine(ctx, 0, FormatEnvironment(r)); err != nil {
		return fmt.Errorf("display update failed: %w", err)
	}
	if err := s.display.WriteLine(ctx, 1, FormatCO2(r)); err != nil {
		return fmt.Errorf("display update failed: %w", err)
	}
	return nil
}

// FormatEnvironment renders the first display line, for example "T 23.4C H 45.0%".
func FormatEnvironment(r Reading) string {
	if r.Temperature == environment.NoReading || r.Humidity == environment.NoReading {
		return "T --.-C H --.-%"
	}
	return fmt.Sprintf("T %.1fC H %.1f%%", r.Temperature, r.Humidity)
}

// FormatCO2 renders the second display line, for example "CO2 812ppm".
func FormatCO2(r Reading) string {
	if r.CO2 == 0 {
		return "CO2 ---ppm"
	}
	line := fmt.Sprintf("CO2 %dppm", r.CO2)
	if r.Alarm {
		line += " !"
	}
	return line
}
