// Package adapter drives the MCP2221 USB to I2C bridge over HID.
package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/climate"
	"github.com/mklimuk/climate/snsctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const reportSize = 64

// bridge clock used to derive the I2C divider
const clockHz = 12_000_000

const (
	cmdStatus     = 0x10
	cmdWriteData  = 0x90
	cmdReadData   = 0x91
	cmdGetData    = 0x40
	cancelTx      = 0x10
	setSpeed      = 0x20
	readErrorCode = 0x41
	// maximum payload of a single I2C data report
	maxPayload = 60
)

var ErrCommandUnsupported = errors.New("unsupported command")
var ErrCommandFailed = errors.New("command failed")
var ErrDeviceNotFound = errors.New("MCP2221 device not found")

// Exchanger sends one 64 byte report and, if resp is not nil, reads one back.
type Exchanger interface {
	Exchange(ctx context.Context, req, resp []byte) error
}

var _ climate.I2CBus = &MCP2221{}

type MCP2221Opts struct {
	ResponseWait time.Duration
	Index        int
	Exchanger    Exchanger
}

type MCP2221Opt func(*MCP2221Opts)

// WithResponseWait sets the delay between a request and the response read.
func WithResponseWait(d time.Duration) MCP2221Opt {
	return func(o *MCP2221Opts) {
		o.ResponseWait = d
	}
}

// WithIndex selects the bridge when more than one is plugged in.
func WithIndex(i int) MCP2221Opt {
	return func(o *MCP2221Opts) {
		o.Index = i
	}
}

func WithExchanger(e Exchanger) MCP2221Opt {
	return func(o *MCP2221Opts) {
		o.Exchanger = e
	}
}

type MCP2221 struct {
	mx       sync.Mutex
	request  []byte
	response []byte
	exchange Exchanger
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

func NewMCP2221(opts ...MCP2221Opt) *MCP2221 {
	config := MCP2221Opts{ResponseWait: 50 * time.Millisecond, Index: -1}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Exchanger == nil {
		config.Exchanger = &HIDExchanger{Index: config.Index, ResponseWait: config.ResponseWait}
	}
	return &MCP2221{
		request:  make([]byte, reportSize),
		response: make([]byte, reportSize),
		exchange: config.Exchanger,
	}
}

// Init checks that the bridge answers and cancels any transfer left over by a
// previous session.
func (d *MCP2221) Init(ctx context.Context) error {
	_, err := d.ReleaseBus(ctx)
	if err != nil {
		return fmt.Errorf("mcp2221: init failed: %w", err)
	}
	return nil
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > maxPayload {
		return fmt.Errorf("write to %#x failed: payload of %d bytes exceeds %d", address, len(buffer), maxPayload)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdWriteData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("write to %#x failed: %w", address, err)
	}
	// engine did not accept the transfer
	if d.response[1] == 0x01 {
		slog.Debug("adapter busy", "address", address)
		return climate.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > maxPayload {
		return fmt.Errorf("read from %#x failed: buffer of %d bytes exceeds %d", address, len(buffer), maxPayload)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdReadData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("read from %#x failed: %w", address, err)
	}
	if d.response[1] == 0x01 {
		slog.Debug("adapter busy", "address", address)
		return climate.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetData
	err = d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == readErrorCode {
		return fmt.Errorf("read from %#x failed: %w", address, ErrCommandFailed)
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:4+len(buffer)])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

// SetSpeed programs the bridge I2C clock in Hz.
func (d *MCP2221) SetSpeed(ctx context.Context, hz uint32) error {
	if hz == 0 || hz > 400_000 {
		return fmt.Errorf("mcp2221: speed %d Hz not supported", hz)
	}
	divider := clockHz/hz - 3
	if divider > 0xFF {
		return fmt.Errorf("mcp2221: speed %d Hz below the bridge minimum", hz)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[3] = setSpeed
	d.request[4] = byte(divider)
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("mcp2221: set speed failed: %w", err)
	}
	// speed can not be changed while a transfer is in progress
	if d.response[3] != setSpeed {
		return climate.ErrBusBusy
	}
	return nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9-10: requested I2C transfer length
		11-12: already transferred number of bytes
		13: internal I2C data buffer counter
		14: current I2C speed divider
		15: current I2C timeout
		16-17: I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func (d *MCP2221) Release(ctx context.Context) error {
	_, err := d.ReleaseBus(ctx)
	return err
}

// ReleaseBus cancels the current transfer, which makes the bridge issue a stop.
func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = cancelTx
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) send(ctx context.Context, response bool) error {
	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("sending message to adapter", "dump", hex.Dump(d.request))
	}
	var resp []byte
	if response {
		resp = d.response
	}
	if err := d.exchange.Exchange(ctx, d.request, resp); err != nil {
		return err
	}
	if response && d.response[0] != d.request[0] {
		return fmt.Errorf("response to %#x echoes command %#x", d.request[0], d.response[0])
	}
	if verbose && response {
		slog.Debug("read message from adapter", "dump", hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}

// HIDExchanger talks to the bridge through the host HID stack. The device is opened
// for every exchange so that other tools may use it in between.
type HIDExchanger struct {
	// Index selects the device among the enumerated bridges; negative means the only one.
	Index        int
	ResponseWait time.Duration
}

func (h *HIDExchanger) Exchange(ctx context.Context, req, resp []byte) error {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return ErrDeviceNotFound
	}
	idx := h.Index
	if idx < 0 {
		if len(devs) > 1 {
			return fmt.Errorf("ambiguous device identification: %d bridges found", len(devs))
		}
		idx = 0
	}
	if idx >= len(devs) {
		return fmt.Errorf("no device with id %d", idx)
	}
	dev, err := devs[idx].Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Debug("could not close adapter", "error", err)
		}
	}()
	n, err := dev.Write(req)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	if resp == nil {
		return nil
	}
	timer := time.NewTimer(h.ResponseWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	n, err = dev.Read(resp)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	return nil
}
