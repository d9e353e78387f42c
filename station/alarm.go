package station

import (
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/climate/buzzer"
)

var _ Alarm = &BuzzerAlarm{}

// Tone is the beep pattern of a BuzzerAlarm.
type Tone struct {
	Frequency physic.Frequency
	Duty      gpio.Duty
	On        time.Duration
	Off       time.Duration
}

// DefaultTone is a short 2 kHz beep every second.
var DefaultTone = Tone{
	Frequency: 2 * physic.KiloHertz,
	Duty:      gpio.DutyHalf,
	On:        200 * time.Millisecond,
	Off:       800 * time.Millisecond,
}

// BuzzerAlarm sounds a buzzer with a fixed tone.
type BuzzerAlarm struct {
	buzzer *buzzer.Buzzer
	tone   Tone
}

func NewBuzzerAlarm(b *buzzer.Buzzer, tone Tone) *BuzzerAlarm {
	return &BuzzerAlarm{buzzer: b, tone: tone}
}

func (a *BuzzerAlarm) Start() error {
	return a.buzzer.Start(a.tone.Frequency, a.tone.Duty, a.tone.On, a.tone.Off)
}

func (a *BuzzerAlarm) Stop() error {
	return a.buzzer.Stop()
}
