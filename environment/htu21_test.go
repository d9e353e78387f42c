package environment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/climate/twi"
	"github.com/mklimuk/climate/twi/twitest"
)

// MockI2CBus is a mock implementation of climate.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func simulatedHTU21(t *testing.T, temp, hum float64) (*HTU21, *twitest.HTU21) {
	t.Helper()
	p := twitest.NewPeripheral()
	dev := &twitest.HTU21{Temperature: temp, Humidity: hum}
	p.Attach(htu21Address, dev)
	e := twi.NewEngine(p, twi.WithPollBudget(100))
	e.Configure(16_000_000, 100_000)
	return NewHTU21(twi.NewBus(e), WithMeasureDelay(0)), dev
}

func TestHTU21_OverSimulatedBus(t *testing.T) {
	sensor, _ := simulatedHTU21(t, 23.5, 41.2)
	ctx := context.Background()

	assert.Equal(t, NoReading, sensor.LastTemperature())
	assert.Equal(t, NoReading, sensor.LastHumidity())

	temp, hum, err := sensor.GetTempAndHum(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 23.5, temp, 0.02)
	assert.InDelta(t, 41.2, hum, 0.01)
	assert.Equal(t, temp, sensor.LastTemperature())
	assert.Equal(t, hum, sensor.LastHumidity())
}

func TestHTU21_BusyDevice(t *testing.T) {
	sensor, dev := simulatedHTU21(t, 20, 50)
	dev.Busy = true

	_, err := sensor.GetTemperature(context.Background())
	assert.ErrorIs(t, err, ErrReadFailed)
	assert.ErrorIs(t, err, twi.ErrNack)
	assert.Equal(t, NoReading, sensor.LastTemperature())
}

func TestHTU21_Frames(t *testing.T) {
	bus := &MockI2CBus{}
	ctx := context.Background()
	bus.On("WriteToAddr", ctx, byte(0x40), []byte{0xE3}).Return(nil).Once()
	// 0x6C, 0x7F: status bits are dropped, checksum ignored
	bus.On("ReadFromAddr", ctx, byte(0x40), mock.Anything).Return([]byte{0x6C, 0x7F, 0x00}, nil).Once()

	sensor := NewHTU21(bus, WithMeasureDelay(0))
	temp, err := sensor.GetTemperature(ctx)
	require.NoError(t, err)
	assert.InDelta(t, ConvertHTU21Temperature(0x6C7C), temp, 0.0001)
	bus.AssertExpectations(t)
}

func TestHTU21_FailureReleasesBus(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("nack")

	t.Run("write", func(t *testing.T) {
		bus := &MockI2CBus{}
		bus.On("WriteToAddr", ctx, byte(0x40), []byte{0xE5}).Return(cause)
		bus.On("Release", ctx).Return(nil).Once()

		_, err := NewHTU21(bus, WithMeasureDelay(0)).GetHumidity(ctx)
		assert.ErrorIs(t, err, ErrReadFailed)
		assert.ErrorIs(t, err, cause)
		bus.AssertExpectations(t)
		bus.AssertNotCalled(t, "ReadFromAddr", mock.Anything, mock.Anything, mock.Anything)
	})
	t.Run("read", func(t *testing.T) {
		bus := &MockI2CBus{}
		bus.On("WriteToAddr", ctx, byte(0x40), []byte{0xE5}).Return(nil)
		bus.On("ReadFromAddr", ctx, byte(0x40), mock.Anything).Return(nil, cause)
		bus.On("Release", ctx).Return(nil).Once()

		sensor := NewHTU21(bus, WithMeasureDelay(0))
		hum, err := sensor.GetHumidity(ctx)
		assert.ErrorIs(t, err, ErrReadFailed)
		assert.Equal(t, NoReading, hum)
		assert.Equal(t, NoReading, sensor.LastHumidity())
		bus.AssertExpectations(t)
	})
}

func TestHTU21_ContextCancelledDuringConversion(t *testing.T) {
	bus := &MockI2CBus{}
	ctx, cancel := context.WithCancel(context.Background())
	bus.On("WriteToAddr", ctx, byte(0x40), []byte{0xE3}).Run(func(mock.Arguments) { cancel() }).Return(nil)

	_, err := NewHTU21(bus, WithMeasureDelay(time.Hour)).GetTemperature(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	bus.AssertNotCalled(t, "ReadFromAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestHTU21_Conversion(t *testing.T) {
	tests := []struct {
		raw  uint16
		temp float32
		hum  float32
	}{
		{0x0000, -46.85, -6},
		{0x6C7C, 27.6144, 46.9709},
		{0x8000, 41.01, 56.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.temp, ConvertHTU21Temperature(tt.raw), 0.001, "raw %#x", tt.raw)
		assert.InDelta(t, tt.hum, ConvertHTU21Humidity(tt.raw), 0.001, "raw %#x", tt.raw)
	}
}
