package twi_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/climate/twi"
	"github.com/mklimuk/climate/twi/twitest"
)

func newBus(t *testing.T, opts ...twi.BusOpt) (*twi.Bus, *twitest.Peripheral, *twitest.Target) {
	t.Helper()
	e, p, target := newEngine(t, twi.WithPollBudget(100))
	return twi.NewBus(e, opts...), p, target
}

func TestBusWriteToAddr(t *testing.T) {
	bus, _, target := newBus(t)

	require.NoError(t, bus.WriteToAddr(context.Background(), 0x27, []byte{0x0C, 0x08}))
	assert.Equal(t, []byte{0x0C, 0x08}, target.Bytes())
}

func TestBusWriteNack(t *testing.T) {
	t.Run("releasing", func(t *testing.T) {
		bus, p, target := newBus(t)
		target.NackAddress = true

		err := bus.WriteToAddr(context.Background(), 0x27, []byte{0x01})
		assert.ErrorIs(t, err, twi.ErrNack)
		assert.Equal(t, 1, p.Count(twitest.OpStop))
	})
	t.Run("without release", func(t *testing.T) {
		bus, p, target := newBus(t, twi.WithoutRelease())
		target.NackAddress = true

		err := bus.WriteToAddr(context.Background(), 0x27, []byte{0x01})
		assert.ErrorIs(t, err, twi.ErrNack)
		assert.Zero(t, p.Count(twitest.OpStop))

		require.NoError(t, bus.Release(context.Background()))
		assert.Equal(t, 1, p.Count(twitest.OpStop))
	})
}

func TestBusReadFromAddr(t *testing.T) {
	bus, _, target := newBus(t)
	target.Data = []byte{0xAA, 0xBB}

	buf := make([]byte, 2)
	require.NoError(t, bus.ReadFromAddr(context.Background(), 0x27, buf))
	assert.Equal(t, []byte{0xAA, 0xBB}, buf)
}

func TestBusReadTimeout(t *testing.T) {
	bus, p, _ := newBus(t)
	p.Stuck = true

	err := bus.ReadFromAddr(context.Background(), 0x27, make([]byte, 1))
	assert.ErrorIs(t, err, twi.ErrTimeout)
}

func TestBusCancelledContext(t *testing.T) {
	bus, p, _ := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, bus.WriteToAddr(ctx, 0x27, []byte{0x01}), context.Canceled)
	assert.ErrorIs(t, bus.ReadFromAddr(ctx, 0x27, make([]byte, 1)), context.Canceled)
	assert.Empty(t, p.Ops())
}

func TestBusTx(t *testing.T) {
	bus, p, target := newBus(t)
	target.Data = []byte{0x42}

	r := make([]byte, 1)
	require.NoError(t, bus.Tx(0x27, []byte{0xE3}, r))
	assert.Equal(t, byte(0x42), r[0])
	assert.Equal(t, []byte{0xE3}, target.Bytes())
	assert.Equal(t, 2, p.Count(twitest.OpStart))
	assert.Equal(t, 2, p.Count(twitest.OpStop))

	assert.Error(t, bus.Tx(0x80, []byte{0x01}, nil))
	assert.Equal(t, "twi", bus.String())
}

func TestBusTxProbe(t *testing.T) {
	bus, p, _ := newBus(t)

	require.NoError(t, bus.Tx(0x27, nil, nil))
	assert.Equal(t, 1, p.Count(twitest.OpAddress))
	assert.ErrorIs(t, bus.Tx(0x28, nil, nil), twi.ErrNack)
}

func TestBusSetSpeed(t *testing.T) {
	p := twitest.NewPeripheral()
	e := twi.NewEngine(p)
	bus := twi.NewBus(e)

	assert.Error(t, bus.SetSpeed(100*physic.KiloHertz), "core clock unknown before Configure")

	e.Configure(16_000_000, 100_000)
	require.NoError(t, bus.SetSpeed(50*physic.KiloHertz))
	assert.Equal(t, uint16(160), e.Timing().Divider)

	assert.Error(t, bus.SetSpeed(400*physic.KiloHertz))
	assert.Error(t, bus.SetSpeed(0))
}
