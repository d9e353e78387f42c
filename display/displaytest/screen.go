// Package displaytest emulates a PCF8574 backed HD44780 module on the simulated bus.
package displaytest

import (
	"strings"
	"sync"

	"github.com/mklimuk/climate/display"
	"github.com/mklimuk/climate/twi/twitest"
)

var _ twitest.Device = &Screen{}

const (
	bitRS     = 0x01
	bitEnable = 0x04
	// display data RAM holds 40 characters per row
	rowLength = 40
	row2Base  = 0x40
)

// Screen latches a nibble on every falling EN edge and executes clear, set address and
// character writes. Other instructions are accepted and ignored.
type Screen struct {
	mx      sync.Mutex
	ram     [display.Rows][rowLength]byte
	addr    byte
	prev    byte
	high    byte
	hasHigh bool
	on      bool
}

func NewScreen() *Screen {
	s := &Screen{}
	s.clear()
	return s
}

func (s *Screen) Address(read bool) twitest.Response {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.prev = 0
	s.hasHigh = false
	return twitest.Ack
}

func (s *Screen) Write(b byte) twitest.Response {
	s.mx.Lock()
	defer s.mx.Unlock()
	falling := s.prev&bitEnable != 0 && b&bitEnable == 0
	s.prev = b
	if !falling {
		return twitest.Ack
	}
	nibble := b & 0xF0
	if !s.hasHigh {
		s.high, s.hasHigh = nibble, true
		return twitest.Ack
	}
	s.hasHigh = false
	value := s.high | nibble>>4
	if b&bitRS != 0 {
		s.put(value)
	} else {
		s.execute(value)
	}
	return twitest.Ack
}

func (s *Screen) Read() (byte, twitest.Response) {
	return 0xFF, twitest.Ack
}

func (s *Screen) Stop() {}

// On reports whether the display was switched on.
func (s *Screen) On() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.on
}

// Lines returns the visible part of both rows.
func (s *Screen) Lines() [display.Rows]string {
	s.mx.Lock()
	defer s.mx.Unlock()
	var out [display.Rows]string
	for i := range s.ram {
		out[i] = string(s.ram[i][:display.Cols])
	}
	return out
}

// String renders both rows separated by a newline with trailing blanks removed.
func (s *Screen) String() string {
	lines := s.Lines()
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.Join(lines[:], "\n")
}

func (s *Screen) execute(cmd byte) {
	switch {
	case cmd&0x80 != 0:
		s.addr = cmd &^ 0x80
	case cmd == 0x01:
		s.clear()
	case cmd&0xF8 == 0x08:
		s.on = cmd&0x04 != 0
	}
}

func (s *Screen) put(c byte) {
	row, col := 0, int(s.addr)
	if s.addr >= row2Base {
		row, col = 1, int(s.addr-row2Base)
	}
	if col < rowLength {
		s.ram[row][col] = c
	}
	s.addr++
}

func (s *Screen) clear() {
	for i := range s.ram {
		for j := range s.ram[i] {
			s.ram[i][j] = ' '
		}
	}
	s.addr = 0
}
