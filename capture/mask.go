package capture

import "sync"

// State is whatever a Mask needs to restore the previous interrupt state.
type State uintptr

// Mask disables and restores delivery of edge interrupts. Every Disable must be paired
// with a Restore of the returned state on all exit paths.
type Mask interface {
	Disable() State
	Restore(State)
}

// Dispatcher runs an edge handler the way the interrupt controller would: to completion
// and never concurrently with itself or with a critical section of the same Mask.
type Dispatcher interface {
	Dispatch(handler func())
}

var (
	_ Mask       = &HostMask{}
	_ Dispatcher = &HostMask{}
)

// HostMask emulates a single-core interrupt controller on an operating system host.
// Handlers delivered through Dispatch and foreground critical sections exclude each other.
type HostMask struct {
	mx sync.Mutex
}

func (m *HostMask) Disable() State {
	m.mx.Lock()
	return 0
}

func (m *HostMask) Restore(State) {
	m.mx.Unlock()
}

func (m *HostMask) Dispatch(handler func()) {
	defer m.Restore(m.Disable())
	handler()
}
