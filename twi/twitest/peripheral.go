// Package twitest provides a simulated two-wire peripheral with scripted peers for
// exercising twi.Engine and everything built on top of it without hardware.
package twitest

import (
	"fmt"
	"sync"

	"github.com/mklimuk/climate/twi"
)

var _ twi.Peripheral = &Peripheral{}

// Response is how a simulated peer answers an address or data phase.
type Response uint8

const (
	Ack Response = iota
	Nack
	// Stall leaves the status flag unset so the engine exhausts its poll budget.
	Stall
)

// Device is a simulated peer. Calls are made with the peripheral lock held.
type Device interface {
	Address(read bool) Response
	Write(b byte) Response
	Read() (byte, Response)
	Stop()
}

type OpKind uint8

const (
	OpStart OpKind = iota
	OpAddress
	OpAddrCleared
	OpWrite
	OpNack
	OpRead
	OpStop
)

func (k OpKind) String() string {
	switch k {
	case OpStart:
		return "start"
	case OpAddress:
		return "address"
	case OpAddrCleared:
		return "addr-cleared"
	case OpWrite:
		return "write"
	case OpNack:
		return "nack"
	case OpRead:
		return "read"
	case OpStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Op is one bus level event observed by the peripheral.
type Op struct {
	Kind OpKind
	Addr byte
	Data byte
}

func (o Op) String() string {
	return fmt.Sprintf("%s(%#02x,%#02x)", o.Kind, o.Addr, o.Data)
}

// Access is one register access made by the engine.
type Access struct {
	Reg   twi.Register
	Write bool
	Value byte
}

// Peripheral is an in-memory register file that reacts to the engine the way the real
// part does for the subset of behavior the engine relies on.
type Peripheral struct {
	// Stuck keeps the start condition from ever being generated.
	Stuck bool
	// Trace enables recording of every register access.
	Trace bool
	// History caps the number of recorded operations, keeping the latest. Zero keeps all.
	History int

	mx       sync.Mutex
	regs     [16]byte
	devices  map[byte]Device
	current  Device
	addr     byte
	reading  bool
	sr1Seen  bool
	ops      []Op
	accesses []Access
}

func NewPeripheral() *Peripheral {
	return &Peripheral{devices: make(map[byte]Device)}
}

// Attach places a peer at the 7-bit address.
func (p *Peripheral) Attach(addr byte, dev Device) {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.devices[addr] = dev
}

func (p *Peripheral) Read(reg twi.Register) byte {
	p.mx.Lock()
	defer p.mx.Unlock()
	v := p.read(reg)
	if p.Trace {
		p.accesses = append(p.accesses, Access{Reg: reg, Value: v})
	}
	return v
}

func (p *Peripheral) Write(reg twi.Register, value byte) {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.Trace {
		p.accesses = append(p.accesses, Access{Reg: reg, Write: true, Value: value})
	}
	p.write(reg, value)
}

// Reg returns the register value without side effects.
func (p *Peripheral) Reg(reg twi.Register) byte {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.regs[reg&0x0F]
}

// Ops returns a copy of the recorded bus events.
func (p *Peripheral) Ops() []Op {
	p.mx.Lock()
	defer p.mx.Unlock()
	return append([]Op(nil), p.ops...)
}

// Accesses returns a copy of the recorded register accesses.
func (p *Peripheral) Accesses() []Access {
	p.mx.Lock()
	defer p.mx.Unlock()
	return append([]Access(nil), p.accesses...)
}

// Count returns how many recorded events are of the given kind.
func (p *Peripheral) Count(kind OpKind) int {
	p.mx.Lock()
	defer p.mx.Unlock()
	n := 0
	for _, op := range p.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Reset clears the recorded events and accesses.
func (p *Peripheral) Reset() {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.ops = nil
	p.accesses = nil
}

func (p *Peripheral) read(reg twi.Register) byte {
	switch reg {
	case twi.RegSR1:
		v := p.regs[twi.RegSR1]
		if v&twi.SR1Addr != 0 {
			p.sr1Seen = true
		}
		return v
	case twi.RegSR3:
		if p.regs[twi.RegSR1]&twi.SR1Addr != 0 && p.sr1Seen {
			p.clearAddr()
		}
		return p.regs[twi.RegSR3]
	case twi.RegDR:
		v := p.regs[twi.RegDR]
		if p.reading && p.regs[twi.RegSR1]&twi.SR1RxNE != 0 {
			p.log(OpRead, v)
			if p.regs[twi.RegCR2]&twi.CR2Ack != 0 && p.current != nil {
				p.fetch()
			} else {
				p.regs[twi.RegSR1] &^= twi.SR1RxNE
			}
		}
		return v
	default:
		return p.regs[reg&0x0F]
	}
}

func (p *Peripheral) write(reg twi.Register, value byte) {
	switch reg {
	case twi.RegCR2:
		if value&twi.CR2Start != 0 {
			value &^= twi.CR2Start
			if !p.Stuck {
				p.regs[twi.RegSR1] = twi.SR1SB
				p.log(OpStart, 0)
			}
		}
		if value&twi.CR2Stop != 0 {
			value &^= twi.CR2Stop
			p.stop()
		}
		p.regs[twi.RegCR2] = value
	case twi.RegSR2:
		// flags in SR2 are cleared by writing 0 and unaffected by writing 1
		p.regs[twi.RegSR2] &= value
	case twi.RegDR:
		p.regs[twi.RegDR] = value
		p.transfer(value)
	default:
		p.regs[reg&0x0F] = value
	}
}

func (p *Peripheral) transfer(value byte) {
	sr1 := p.regs[twi.RegSR1]
	if sr1&twi.SR1SB != 0 {
		p.regs[twi.RegSR1] &^= twi.SR1SB
		p.addr = value >> 1
		p.reading = value&1 == 1
		dev, ok := p.devices[p.addr]
		if !ok {
			p.nack()
			return
		}
		switch dev.Address(p.reading) {
		case Ack:
			p.current = dev
			p.sr1Seen = false
			p.regs[twi.RegSR1] |= twi.SR1Addr
			p.log(OpAddress, value)
		case Nack:
			p.nack()
		}
		return
	}
	if p.current == nil || p.reading {
		return
	}
	p.regs[twi.RegSR1] &^= twi.SR1TxE
	switch p.current.Write(value) {
	case Ack:
		p.regs[twi.RegSR1] |= twi.SR1TxE
		p.log(OpWrite, value)
	case Nack:
		p.nack()
	}
}

func (p *Peripheral) clearAddr() {
	p.regs[twi.RegSR1] &^= twi.SR1Addr
	p.sr1Seen = false
	p.log(OpAddrCleared, 0)
	if p.reading {
		p.fetch()
		return
	}
	p.regs[twi.RegSR1] |= twi.SR1TxE
}

func (p *Peripheral) fetch() {
	b, resp := p.current.Read()
	if resp != Ack {
		p.regs[twi.RegSR1] &^= twi.SR1RxNE
		return
	}
	p.regs[twi.RegDR] = b
	p.regs[twi.RegSR1] |= twi.SR1RxNE
}

func (p *Peripheral) nack() {
	p.regs[twi.RegSR2] |= twi.SR2AF
	p.log(OpNack, 0)
}

// stop ends the transaction. DR keeps its content so a byte received before the stop
// can still be read.
func (p *Peripheral) stop() {
	if p.current != nil {
		p.current.Stop()
	}
	p.current = nil
	p.regs[twi.RegSR1] &^= twi.SR1SB | twi.SR1Addr | twi.SR1TxE
	p.log(OpStop, 0)
}

func (p *Peripheral) log(kind OpKind, data byte) {
	p.ops = append(p.ops, Op{Kind: kind, Addr: p.addr, Data: data})
	if p.History > 0 && len(p.ops) > p.History {
		p.ops = p.ops[len(p.ops)-p.History:]
	}
}
