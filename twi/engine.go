// Package twi implements a blocking two-wire (I2C) master on top of a register-level
// peripheral.
//
// Every wait in the engine is a busy poll bounded by an iteration count, not by wall-clock
// time. The engine holds no lock and keeps no queue: only one transaction may be in
// flight and it must never be driven from interrupt context.
package twi

// DefaultPollBudget is the number of status polls a bounded wait performs before it
// reports Timeout.
const DefaultPollBudget = 30000

// Direction is the transfer direction appended to the peer address.
type Direction byte

const (
	DirWrite Direction = 0
	DirRead  Direction = 1
)

type EngineOpts struct {
	PollBudget int
}

type EngineOpt func(*EngineOpts)

// WithPollBudget sets the iteration budget of every bounded wait. Values below 1 are
// raised to 1.
func WithPollBudget(n int) EngineOpt {
	return func(o *EngineOpts) {
		o.PollBudget = n
	}
}

// Engine sequences master-mode bus transactions.
// Typical usage:
//
//	e := NewEngine(regs)
//	e.Configure(16_000_000, 100_000)
//	outcome := e.TransmitBuffer(0x27, []byte{0x0C, 0x08})
type Engine struct {
	regs   Peripheral
	budget int
	timing Timing
	coreHz uint32
	busHz  uint32
}

func NewEngine(regs Peripheral, opts ...EngineOpt) *Engine {
	config := EngineOpts{PollBudget: DefaultPollBudget}
	for _, opt := range opts {
		opt(&config)
	}
	if config.PollBudget < 1 {
		config.PollBudget = 1
	}
	return &Engine{regs: regs, budget: config.PollBudget}
}

// Configure programs standard mode timing and enables the peripheral with acknowledge
// on. It must be called once before any transaction.
func (e *Engine) Configure(coreClockHz, busClockHz uint32) {
	t := DeriveTiming(coreClockHz, busClockHz)
	e.timing = t
	e.coreHz = coreClockHz
	e.busHz = busClockHz

	e.clear(RegCR1, CR1PE)
	e.regs.Write(RegFREQR, t.FreqMHz)
	e.regs.Write(RegCCRL, byte(t.Divider&0xFF))
	// CCRH low nibble carries the divider MSBs; fast mode and duty bits stay 0
	e.regs.Write(RegCCRH, byte(t.Divider>>8)&0x0F)
	e.regs.Write(RegTRISER, t.RiseTime)
	e.set(RegCR2, CR2Ack)
	e.set(RegCR1, CR1PE)
}

// Timing returns the values programmed by the last Configure call.
func (e *Engine) Timing() Timing {
	return e.timing
}

// Begin asserts a start condition and waits for the hardware to confirm it.
func (e *Engine) Begin() Outcome {
	e.set(RegCR2, CR2Start)
	return e.wait(SR1SB, false)
}

// SelectPeer sends the 7-bit address with the direction bit and waits for the peer to
// match it. A refused address is reported as Nack without retrying.
func (e *Engine) SelectPeer(addr7 byte, dir Direction) Outcome {
	e.regs.Write(RegDR, addr7<<1|byte(dir&1))
	outcome := e.wait(SR1Addr, true)
	if outcome != Success {
		return outcome
	}
	// ADDR is cleared by reading SR1 followed by SR3, in this order
	_ = e.regs.Read(RegSR1)
	_ = e.regs.Read(RegSR3)
	return Success
}

// WriteByte shifts one data byte out and waits for the transmit buffer to drain.
func (e *Engine) WriteByte(b byte) Outcome {
	e.regs.Write(RegDR, b)
	return e.wait(SR1TxE, true)
}

// ReadByte receives one byte. expectMore acknowledges the byte so the peer keeps sending;
// false marks it as the last one, in which case the stop condition is asserted before the
// data register is read.
func (e *Engine) ReadByte(expectMore bool) (byte, Outcome) {
	if expectMore {
		e.set(RegCR2, CR2Ack)
	} else {
		e.clear(RegCR2, CR2Ack)
	}
	outcome := e.wait(SR1RxNE, false)
	if outcome != Success {
		return 0, outcome
	}
	if !expectMore {
		e.set(RegCR2, CR2Stop)
	}
	return e.regs.Read(RegDR), Success
}

// End asserts a stop condition. It does not wait for the bus to be released.
func (e *Engine) End() Outcome {
	e.set(RegCR2, CR2Stop)
	return Success
}

// TransmitBuffer writes data to the peer in a single transaction.
//
// The first failing phase is returned as is and the stop condition is NOT issued on that
// path: only a fully successful transfer ends with End. Use Transmit when the bus must be
// released after a failed address or data phase.
func (e *Engine) TransmitBuffer(addr7 byte, data []byte) Outcome {
	if outcome := e.Begin(); outcome != Success {
		return outcome
	}
	if outcome := e.SelectPeer(addr7, DirWrite); outcome != Success {
		return outcome
	}
	for _, b := range data {
		if outcome := e.WriteByte(b); outcome != Success {
			return outcome
		}
	}
	e.End()
	return Success
}

// Transmit writes data to the peer and issues a stop condition when the address or a
// data phase fails. A failed start is returned without stop since no transaction began.
func (e *Engine) Transmit(addr7 byte, data []byte) Outcome {
	if outcome := e.Begin(); outcome != Success {
		return outcome
	}
	if outcome := e.SelectPeer(addr7, DirWrite); outcome != Success {
		e.End()
		return outcome
	}
	for _, b := range data {
		if outcome := e.WriteByte(b); outcome != Success {
			e.End()
			return outcome
		}
	}
	e.End()
	return Success
}

// Receive reads len(buf) bytes from the peer. Every byte except the last is acknowledged;
// the last one carries the stop condition. On a failed address or data phase the stop
// condition is issued explicitly.
func (e *Engine) Receive(addr7 byte, buf []byte) Outcome {
	if outcome := e.Begin(); outcome != Success {
		return outcome
	}
	if outcome := e.SelectPeer(addr7, DirRead); outcome != Success {
		e.End()
		return outcome
	}
	if len(buf) == 0 {
		e.End()
		return Success
	}
	for i := range buf {
		b, outcome := e.ReadByte(i < len(buf)-1)
		if outcome != Success {
			e.End()
			return outcome
		}
		buf[i] = b
	}
	return Success
}

// wait polls SR1 until mask is set. With checkAF the acknowledge failure flag is checked
// on every iteration and cleared as soon as it is seen.
func (e *Engine) wait(mask byte, checkAF bool) Outcome {
	for n := e.budget; ; {
		if e.regs.Read(RegSR1)&mask != 0 {
			return Success
		}
		if checkAF && e.regs.Read(RegSR2)&SR2AF != 0 {
			e.regs.Write(RegSR2, ^SR2AF)
			return Nack
		}
		n--
		if n <= 0 {
			return Timeout
		}
	}
}

func (e *Engine) set(reg Register, bits byte) {
	e.regs.Write(reg, e.regs.Read(reg)|bits)
}

func (e *Engine) clear(reg Register, bits byte) {
	e.regs.Write(reg, e.regs.Read(reg)&^bits)
}
