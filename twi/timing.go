package twi

const (
	// StandardModeMaxHz is the fastest bus clock the engine is meant for. It is not enforced.
	StandardModeMaxHz = 100_000

	MinDivider = 4
	MaxDivider = 0x0FFF

	// FREQR holds the input clock in MHz in a 6-bit field.
	maxFreqMHz = 0x3F
)

// Timing holds the values programmed into the peripheral by Configure.
type Timing struct {
	FreqMHz  uint8
	Divider  uint16
	RiseTime uint8
}

// DeriveTiming computes standard mode timing for the given core and bus clocks.
//
// The divider is coreClockHz/(2*busClockHz) clamped to [MinDivider, MaxDivider]. A zero
// bus clock yields MaxDivider. The rise time is the input clock in MHz plus one; only
// the FREQR value is capped to its 6-bit field.
func DeriveTiming(coreClockHz, busClockHz uint32) Timing {
	mhz := coreClockHz / 1_000_000
	if mhz == 0 {
		mhz = 1
	}
	freq := min(mhz, maxFreqMHz)
	rise := min(mhz+1, 0xFF)
	divider := uint64(MaxDivider)
	if busClockHz > 0 {
		divider = uint64(coreClockHz) / (2 * uint64(busClockHz))
	}
	if divider < MinDivider {
		divider = MinDivider
	}
	if divider > MaxDivider {
		divider = MaxDivider
	}
	return Timing{
		FreqMHz:  uint8(freq),
		Divider:  uint16(divider),
		RiseTime: uint8(rise),
	}
}
