package twi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTiming(t *testing.T) {
	tests := []struct {
		name     string
		core     uint32
		bus      uint32
		expected Timing
	}{
		{"16MHz standard", 16_000_000, 100_000, Timing{FreqMHz: 16, Divider: 80, RiseTime: 17}},
		{"2MHz standard", 2_000_000, 100_000, Timing{FreqMHz: 2, Divider: 10, RiseTime: 3}},
		{"divider floor", 1_000_000, 400_000, Timing{FreqMHz: 1, Divider: MinDivider, RiseTime: 2}},
		{"divider ceiling", 16_000_000, 100, Timing{FreqMHz: 16, Divider: MaxDivider, RiseTime: 17}},
		{"zero bus clock", 16_000_000, 0, Timing{FreqMHz: 16, Divider: MaxDivider, RiseTime: 17}},
		{"sub-MHz core", 500_000, 10_000, Timing{FreqMHz: 1, Divider: 25, RiseTime: 2}},
		{"freq field cap", 100_000_000, 100_000, Timing{FreqMHz: 63, Divider: 500, RiseTime: 101}},
		{"rise time saturates", 400_000_000, 100_000, Timing{FreqMHz: 63, Divider: 2000, RiseTime: 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveTiming(tt.core, tt.bus))
		})
	}
}

func TestDeriveTimingDividerRange(t *testing.T) {
	for _, core := range []uint32{1_000_000, 2_000_000, 8_000_000, 16_000_000, 24_000_000} {
		for bus := uint32(1_000); bus <= StandardModeMaxHz; bus += 1_000 {
			timing := DeriveTiming(core, bus)
			assert.GreaterOrEqual(t, timing.Divider, uint16(MinDivider), "core %d bus %d", core, bus)
			assert.LessOrEqual(t, timing.Divider, uint16(MaxDivider), "core %d bus %d", core, bus)
		}
	}
}
