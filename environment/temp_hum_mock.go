package environment

import (
	"context"

	"github.com/mklimuk/climate"
)

var _ climate.TempHumSensor = &MockTempHumSensor{}

// ReadingFunc produces one reading (Celsius or %RH) or an error.
type ReadingFunc func(ctx context.Context) (float32, error)

// MockTempHumSensor stands in for HTU21 when running without hardware.
// Example usage:
//
//	sensor := NewMockTempHumSensor(Fixed(22.5), Fixed(45))
//
//	temp := float32(20)
//	sensor := NewMockTempHumSensor(
//		func(ctx context.Context) (float32, error) { return temp, nil },
//		Fixed(50),
//	)
type MockTempHumSensor struct {
	temperature ReadingFunc
	humidity    ReadingFunc
}

func NewMockTempHumSensor(temperature, humidity ReadingFunc) *MockTempHumSensor {
	return &MockTempHumSensor{temperature: temperature, humidity: humidity}
}

// Fixed returns a ReadingFunc that always yields v.
func Fixed(v float32) ReadingFunc {
	return func(ctx context.Context) (float32, error) {
		return v, nil
	}
}

// Failing returns a ReadingFunc that always fails with err.
func Failing(err error) ReadingFunc {
	return func(ctx context.Context) (float32, error) {
		return NoReading, err
	}
}

func (m *MockTempHumSensor) GetTemperature(ctx context.Context) (float32, error) {
	return m.temperature(ctx)
}

func (m *MockTempHumSensor) GetHumidity(ctx context.Context) (float32, error) {
	return m.humidity(ctx)
}

// GetTempAndHum calls the temperature behavior first and stops at its error.
func (m *MockTempHumSensor) GetTempAndHum(ctx context.Context) (float32, float32, error) {
	temp, err := m.temperature(ctx)
	if err != nil {
		return NoReading, NoReading, err
	}
	hum, err := m.humidity(ctx)
	if err != nil {
		return temp, NoReading, err
	}
	return temp, hum, nil
}
