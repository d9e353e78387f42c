package twi

import "errors"

var (
	ErrTimeout = errors.New("bus did not respond within the poll budget")
	ErrNack    = errors.New("peer did not acknowledge")
)

// Outcome is the result of a single bus phase.
type Outcome uint8

const (
	Success Outcome = iota
	// Timeout means a status poll exhausted its iteration budget.
	Timeout
	// Nack means the peer signalled acknowledge failure. The flag has already been cleared.
	Nack
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case Nack:
		return "nack"
	default:
		return "unknown"
	}
}

// Err maps the outcome onto ErrTimeout or ErrNack. Success maps to nil.
func (o Outcome) Err() error {
	switch o {
	case Success:
		return nil
	case Timeout:
		return ErrTimeout
	case Nack:
		return ErrNack
	default:
		return errors.New("unknown bus outcome")
	}
}
