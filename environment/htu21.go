package environment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mklimuk/climate"
)

// HTU21 I2C address (7-bit)
const htu21Address = 0x40

// Hold master mode triggers
const (
	htu21CmdTemperature byte = 0xE3
	htu21CmdHumidity    byte = 0xE5
)

// NoReading is what LastTemperature and LastHumidity return before the first good read.
const NoReading float32 = -1000

var ErrReadFailed = errors.New("sensor read failed")

type HTU21Opts struct {
	MeasureDelay time.Duration
}

type HTU21Opt func(*HTU21Opts)

// WithMeasureDelay sets how long to wait between the trigger and the read.
func WithMeasureDelay(d time.Duration) HTU21Opt {
	return func(o *HTU21Opts) {
		o.MeasureDelay = d
	}
}

// HTU21 represents TE HTU21D(F) digital humidity and temperature sensor.
// The checksum byte is read but not validated.
// Typical usage:
//
//	s := NewHTU21(bus)
//	t, h, err := s.GetTempAndHum(ctx)
type HTU21 struct {
	mx        sync.Mutex
	transport climate.I2CBus
	delay     time.Duration
	lastTemp  float32
	lastHum   float32
}

func NewHTU21(trans climate.I2CBus, opts ...HTU21Opt) *HTU21 {
	config := HTU21Opts{MeasureDelay: 50 * time.Millisecond}
	for _, opt := range opts {
		opt(&config)
	}
	return &HTU21{
		transport: trans,
		delay:     config.MeasureDelay,
		lastTemp:  NoReading,
		lastHum:   NoReading,
	}
}

// GetTemperature triggers a measurement and returns temperature in Celsius.
func (s *HTU21) GetTemperature(ctx context.Context) (float32, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	raw, err := s.measure(ctx, htu21CmdTemperature)
	if err != nil {
		return NoReading, fmt.Errorf("htu21: temperature read failed: %w", err)
	}
	s.lastTemp = ConvertHTU21Temperature(raw)
	return s.lastTemp, nil
}

// GetHumidity triggers a measurement and returns relative humidity in %RH.
func (s *HTU21) GetHumidity(ctx context.Context) (float32, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	raw, err := s.measure(ctx, htu21CmdHumidity)
	if err != nil {
		return NoReading, fmt.Errorf("htu21: humidity read failed: %w", err)
	}
	s.lastHum = ConvertHTU21Humidity(raw)
	return s.lastHum, nil
}

// GetTempAndHum performs two measurements, temperature first.
func (s *HTU21) GetTempAndHum(ctx context.Context) (float32, float32, error) {
	temp, err := s.GetTemperature(ctx)
	if err != nil {
		return NoReading, NoReading, err
	}
	hum, err := s.GetHumidity(ctx)
	if err != nil {
		return temp, NoReading, err
	}
	return temp, hum, nil
}

// LastTemperature returns the last good temperature or NoReading.
func (s *HTU21) LastTemperature() float32 {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.lastTemp
}

// LastHumidity returns the last good humidity or NoReading.
func (s *HTU21) LastHumidity() float32 {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.lastHum
}

// measure returns the raw reading with the status bits masked out. Transport errors are
// collapsed into ErrReadFailed; the wrapped cause is kept for logging only.
func (s *HTU21) measure(ctx context.Context, cmd byte) (uint16, error) {
	if err := s.transport.WriteToAddr(ctx, htu21Address, []byte{cmd}); err != nil {
		_ = s.transport.Release(ctx)
		return 0, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
	}
	// MSB, LSB, checksum
	buf := make([]byte, 3)
	if err := s.transport.ReadFromAddr(ctx, htu21Address, buf); err != nil {
		_ = s.transport.Release(ctx)
		return 0, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	return uint16(buf[0])<<8 | uint16(buf[1]&0xFC), nil
}

// ConvertHTU21Temperature converts a raw reading to Celsius.
func ConvertHTU21Temperature(raw uint16) float32 {
	return float32(raw)*175.72/65536 - 46.85
}

// ConvertHTU21Humidity converts a raw reading to %RH.
func ConvertHTU21Humidity(raw uint16) float32 {
	return float32(raw)*125/65536 - 6
}
