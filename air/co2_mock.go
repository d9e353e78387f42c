package air

import (
	"context"

	"github.com/mklimuk/climate"
)

var _ climate.CO2Sensor = &MockCO2Sensor{}

// CO2BehaviorFunc returns a concentration in ppm or an error.
type CO2BehaviorFunc func(ctx context.Context) (uint16, error)

// MockCO2Sensor is a CO2 sensor driven by a behavior function, for running without
// hardware.
//
// Example usage:
//
//	sensor := NewMockCO2Sensor(func(ctx context.Context) (uint16, error) { return 650, nil })
type MockCO2Sensor struct {
	behavior CO2BehaviorFunc
}

func NewMockCO2Sensor(behavior CO2BehaviorFunc) *MockCO2Sensor {
	return &MockCO2Sensor{behavior: behavior}
}

func (m *MockCO2Sensor) GetCO2(ctx context.Context) (uint16, error) {
	return m.behavior(ctx)
}

// Sequence returns a behavior that yields readings in order and then keeps failing
// with err.
func Sequence(err error, readings ...uint16) CO2BehaviorFunc {
	i := 0
	return func(ctx context.Context) (uint16, error) {
		if i >= len(readings) {
			return 0, err
		}
		v := readings[i]
		i++
		return v, nil
	}
}
