package twi

import "fmt"

// Register identifies one 8-bit register of the two-wire peripheral by its offset from
// the peripheral block base.
type Register byte

const (
	RegCR1    Register = 0x00
	RegCR2    Register = 0x01
	RegFREQR  Register = 0x02
	RegDR     Register = 0x06
	RegSR1    Register = 0x07
	RegSR2    Register = 0x08
	RegSR3    Register = 0x09
	RegCCRL   Register = 0x0B
	RegCCRH   Register = 0x0C
	RegTRISER Register = 0x0D
)

// Control register bits.
const (
	CR1PE    byte = 0x01 // peripheral enable
	CR2Start byte = 0x01
	CR2Stop  byte = 0x08
	CR2Ack   byte = 0x10
)

// Status register bits.
const (
	SR1SB   byte = 0x01 // start condition generated
	SR1Addr byte = 0x02 // address sent and matched
	SR1RxNE byte = 0x40 // receive buffer not empty
	SR1TxE  byte = 0x80 // transmit buffer empty
	SR2AF   byte = 0x04 // acknowledge failure, cleared by writing 0
)

// Peripheral is the register-level view of the bus hardware. Implementations must not
// cache reads: the engine relies on status registers changing between two reads.
type Peripheral interface {
	Read(reg Register) byte
	Write(reg Register, value byte)
}

func (r Register) String() string {
	switch r {
	case RegCR1:
		return "CR1"
	case RegCR2:
		return "CR2"
	case RegFREQR:
		return "FREQR"
	case RegDR:
		return "DR"
	case RegSR1:
		return "SR1"
	case RegSR2:
		return "SR2"
	case RegSR3:
		return "SR3"
	case RegCCRL:
		return "CCRL"
	case RegCCRH:
		return "CCRH"
	case RegTRISER:
		return "TRISER"
	default:
		return fmt.Sprintf("REG(%#02x)", byte(r))
	}
}
