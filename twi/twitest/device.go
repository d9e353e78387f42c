package twitest

import "math"

var (
	_ Device = &Target{}
	_ Device = &HTU21{}
)

// Target is a scriptable peer that records what it is sent and replays Data on reads.
type Target struct {
	// NackAddress refuses the address phase.
	NackAddress bool
	// NackAt refuses the n-th data byte of a write, counted from 1. Zero never refuses.
	NackAt int
	// StallAt stalls on the n-th data byte of a write, counted from 1.
	StallAt int
	// Data is returned byte by byte on reads, starting over after each stop.
	Data []byte

	Written [][]byte
	Stops   int

	frame []byte
	count int
	pos   int
}

func (t *Target) Address(read bool) Response {
	if t.NackAddress {
		return Nack
	}
	t.frame = nil
	t.count = 0
	t.pos = 0
	return Ack
}

func (t *Target) Write(b byte) Response {
	t.count++
	if t.NackAt > 0 && t.count == t.NackAt {
		return Nack
	}
	if t.StallAt > 0 && t.count == t.StallAt {
		return Stall
	}
	t.frame = append(t.frame, b)
	return Ack
}

func (t *Target) Read() (byte, Response) {
	if t.pos >= len(t.Data) {
		return 0xFF, Ack
	}
	b := t.Data[t.pos]
	t.pos++
	return b, Ack
}

func (t *Target) Stop() {
	t.Stops++
	if t.frame != nil {
		t.Written = append(t.Written, t.frame)
		t.frame = nil
	}
}

// Bytes returns every byte written to the target in order, across frames.
func (t *Target) Bytes() []byte {
	var all []byte
	for _, f := range t.Written {
		all = append(all, f...)
	}
	return all
}

const (
	htu21TriggerTemperature = 0xE3
	htu21TriggerHumidity    = 0xE5
)

// HTU21 simulates the temperature/humidity sensor in hold master mode.
type HTU21 struct {
	Temperature float64
	Humidity    float64
	// Busy refuses the address phase, as the sensor does while converting.
	Busy bool

	out []byte
	pos int
}

func (h *HTU21) Address(read bool) Response {
	if h.Busy {
		return Nack
	}
	if read {
		h.pos = 0
	}
	return Ack
}

func (h *HTU21) Write(b byte) Response {
	var raw uint16
	switch b {
	case htu21TriggerTemperature:
		raw = htu21Raw((h.Temperature+46.85)*65536/175.72) &^ 0x03
	case htu21TriggerHumidity:
		raw = htu21Raw((h.Humidity+6)*65536/125)&^0x03 | 0x02
	default:
		return Nack
	}
	h.out = []byte{byte(raw >> 8), byte(raw), HTU21CRC(raw)}
	h.pos = 0
	return Ack
}

func (h *HTU21) Read() (byte, Response) {
	if h.pos >= len(h.out) {
		return 0xFF, Ack
	}
	b := h.out[h.pos]
	h.pos++
	return b, Ack
}

func (h *HTU21) Stop() {}

func htu21Raw(v float64) uint16 {
	return uint16(math.Max(0, math.Min(65535, math.Round(v))))
}

// HTU21CRC computes the sensor checksum (polynomial x^8+x^5+x^4+1) over a raw reading.
func HTU21CRC(raw uint16) byte {
	crc := byte(0)
	for _, b := range []byte{byte(raw >> 8), byte(raw)} {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
