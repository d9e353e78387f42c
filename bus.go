package climate

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (transaction not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
}

// I2CBus is the transport every sensor and display driver in this module is written
// against. Release forces a stop condition so that a peer left mid-transaction lets go
// of the bus.
type I2CBus interface {
	AddressableReader
	AddressableWriter
	Release(ctx context.Context) error
}

// TempHumSensor is implemented by the temperature/humidity drivers and their mocks.
type TempHumSensor interface {
	GetTemperature(ctx context.Context) (float32, error)
	GetHumidity(ctx context.Context) (float32, error)
	GetTempAndHum(ctx context.Context) (float32, float32, error)
}

// CO2Sensor is implemented by the CO2 drivers and their mocks. Readings are in ppm.
type CO2Sensor interface {
	GetCO2(ctx context.Context) (uint16, error)
}
