package air

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCO2Sensor_Dynamic(t *testing.T) {
	val := uint16(400)
	s := NewMockCO2Sensor(func(ctx context.Context) (uint16, error) { return val, nil })
	ctx := context.Background()

	v, err := s.GetCO2(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(400), v)

	val = 1250
	v, err = s.GetCO2(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(1250), v)
}

func TestMockCO2Sensor_Sequence(t *testing.T) {
	done := errors.New("exhausted")
	s := NewMockCO2Sensor(Sequence(done, 500, 900))
	ctx := context.Background()

	v, err := s.GetCO2(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(500), v)
	v, err = s.GetCO2(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(900), v)
	_, err = s.GetCO2(ctx)
	assert.ErrorIs(t, err, done)
}

func TestMockCO2Sensor_ContextPropagation(t *testing.T) {
	var received context.Context
	s := NewMockCO2Sensor(func(ctx context.Context) (uint16, error) { received = ctx; return 42, nil })
	type ctxKey string
	key := ctxKey("k")
	ctx := context.WithValue(context.Background(), key, "v")
	_, _ = s.GetCO2(ctx)
	assert.Equal(t, "v", received.Value(key))
}
