// Package display drives an HD44780 character LCD through a PCF8574 I2C backpack.
package display

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/climate"
)

// DefaultAddress is the usual PCF8574 backpack address.
const DefaultAddress = 0x27

// Backpack wiring: P0 RS, P2 EN, P3 backlight, P4..P7 D4..D7.
const (
	bitRS        byte = 0x01
	bitEnable    byte = 0x04
	bitBacklight byte = 0x08
)

// HD44780 instructions
const (
	cmdClear        byte = 0x01
	cmdEntryMode    byte = 0x06 // increment, no shift
	cmdDisplayOff   byte = 0x08
	cmdDisplayOn    byte = 0x0C // display on, cursor off, blink off
	cmdFunctionSet  byte = 0x28 // 4-bit, 2 lines, 5x8
	cmdSetDDRAMAddr byte = 0x80
	cmdWake8Bit     byte = 0x30
	cmdSwitch4Bit   byte = 0x20
)

// Rows and Cols describe the supported 16x2 module.
const (
	Rows = 2
	Cols = 16
)

var rowBase = [Rows]byte{0x00, 0x40}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type LCDOpts struct {
	Address byte
	Sleep   SleepFunc
}

type LCDOpt func(*LCDOpts)

func WithAddress(addr byte) LCDOpt {
	return func(o *LCDOpts) {
		o.Address = addr
	}
}

// WithSleep replaces the wait used for instruction execution times.
func WithSleep(f SleepFunc) LCDOpt {
	return func(o *LCDOpts) {
		o.Sleep = f
	}
}

// LCD writes every instruction or character as one 4 byte bus write: high nibble with
// EN high then low, low nibble with EN high then low, backlight always on.
// Typical usage:
//
//	lcd := NewLCD(bus)
//	err := lcd.Init(ctx)
//	err = lcd.SetCursor(ctx, 1, 0)
//	err = lcd.WriteString(ctx, "CO2 812ppm")
type LCD struct {
	bus   climate.AddressableWriter
	addr  byte
	sleep SleepFunc
}

func NewLCD(bus climate.AddressableWriter, opts ...LCDOpt) *LCD {
	config := LCDOpts{Address: DefaultAddress, Sleep: Sleep}
	for _, opt := range opts {
		opt(&config)
	}
	return &LCD{bus: bus, addr: config.Address, sleep: config.Sleep}
}

// Init runs the 4-bit initialization sequence. The controller needs at least 40 ms after
// power up before the first instruction.
func (l *LCD) Init(ctx context.Context) error {
	steps := []struct {
		cmd   byte
		after time.Duration
	}{
		{cmdWake8Bit, 5 * time.Millisecond},
		{cmdWake8Bit, 200 * time.Microsecond},
		{cmdWake8Bit, 10 * time.Millisecond},
		{cmdSwitch4Bit, 10 * time.Millisecond},
		{cmdFunctionSet, time.Millisecond},
		{cmdDisplayOff, time.Millisecond},
		{cmdClear, 2 * time.Millisecond},
		{cmdEntryMode, time.Millisecond},
		{cmdDisplayOn, 0},
	}
	if err := l.sleep(ctx, 50*time.Millisecond); err != nil {
		return err
	}
	for _, step := range steps {
		if err := l.Command(ctx, step.cmd); err != nil {
			return fmt.Errorf("lcd: init failed: %w", err)
		}
		if step.after == 0 {
			continue
		}
		if err := l.sleep(ctx, step.after); err != nil {
			return err
		}
	}
	return nil
}

// Clear blanks the display and homes the cursor.
func (l *LCD) Clear(ctx context.Context) error {
	if err := l.Command(ctx, cmdClear); err != nil {
		return fmt.Errorf("lcd: clear failed: %w", err)
	}
	return l.sleep(ctx, 2*time.Millisecond)
}

// SetCursor moves the cursor to row 0 or 1 and column col.
func (l *LCD) SetCursor(ctx context.Context, row, col int) error {
	if row < 0 || row >= Rows {
		return fmt.Errorf("lcd: row %d out of range", row)
	}
	if col < 0 || col >= 0x40 {
		return fmt.Errorf("lcd: column %d out of range", col)
	}
	if err := l.Command(ctx, cmdSetDDRAMAddr|rowBase[row]|byte(col)); err != nil {
		return fmt.Errorf("lcd: set cursor failed: %w", err)
	}
	return nil
}

// WriteString writes s at the cursor, one bus write per byte.
func (l *LCD) WriteString(ctx context.Context, s string) error {
	for i := 0; i < len(s); i++ {
		if err := l.send(ctx, s[i], true); err != nil {
			return fmt.Errorf("lcd: write failed at %d: %w", i, err)
		}
	}
	return nil
}

// WriteLine clears row and writes s padded or cut to the display width.
func (l *LCD) WriteLine(ctx context.Context, row int, s string) error {
	if err := l.SetCursor(ctx, row, 0); err != nil {
		return err
	}
	return l.WriteString(ctx, fmt.Sprintf("%-*.*s", Cols, Cols, s))
}

// Command sends one raw instruction byte.
func (l *LCD) Command(ctx context.Context, cmd byte) error {
	return l.send(ctx, cmd, false)
}

func (l *LCD) send(ctx context.Context, b byte, data bool) error {
	return l.bus.WriteToAddr(ctx, l.addr, Frame(b, data))
}

// Frame returns the 4 backpack bytes that clock b into the controller.
func Frame(b byte, data bool) []byte {
	flags := bitEnable | bitBacklight
	if data {
		flags |= bitRS
	}
	hi := b & 0xF0
	lo := b << 4
	return []byte{
		hi | flags,
		hi | flags&^bitEnable,
		lo | flags,
		lo | flags&^bitEnable,
	}
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
