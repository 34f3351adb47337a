package conf

import "fmt"

// Emulation configures the randomized transmitter used to simulate a poor
// network connection: a share of datagrams is dropped at enqueue time and the
// rest are delayed by a random amount. Debug feature; FIFO ordering of the
// send queue does not hold while enabled.
type Emulation struct {
	Enabled     bool `yaml:"enabled"`
	DropPercent int  `yaml:"drop_percent"`
	MaxDelayMS  int  `yaml:"max_delay_ms"`
}

func (e *Emulation) setDefaults() {
	if !e.Enabled {
		return
	}
	if e.DropPercent == 0 {
		e.DropPercent = 25
	}
	if e.MaxDelayMS == 0 {
		e.MaxDelayMS = 500
	}
}

func (e *Emulation) validate() []error {
	var errors []error

	if e.DropPercent < 0 || e.DropPercent > 100 {
		errors = append(errors, fmt.Errorf("emulation drop_percent %d out of range (0..100)", e.DropPercent))
	}
	if e.MaxDelayMS < 0 {
		errors = append(errors, fmt.Errorf("emulation max_delay_ms must not be negative"))
	}

	return errors
}
