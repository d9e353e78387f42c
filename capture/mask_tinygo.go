//go:build tinygo

package capture

import "runtime/interrupt"

// IRQMask masks every interrupt on the core for the duration of a critical section.
type IRQMask struct{}

func (IRQMask) Disable() State {
	return State(interrupt.Disable())
}

func (IRQMask) Restore(s State) {
	interrupt.Restore(interrupt.State(s))
}
