package graph

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Mode selects which simulation path applies to a playback.
type Mode int

const (
	Normal Mode = iota
	SuddenLoss
	Presbycusis
	Tinnitus
)

// ErrUnknownMode is returned when parsing an unrecognized mode name.
var ErrUnknownMode = errors.New("unknown simulation mode")

// Modes lists every mode in chapter order.
var Modes = []Mode{Normal, SuddenLoss, Presbycusis, Tinnitus}

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case SuddenLoss:
		return "sudden_loss"
	case Presbycusis:
		return "presbycusis"
	case Tinnitus:
		return "tinnitus"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Valid reports whether m is one of Modes.
func (m Mode) Valid() bool {
	return m >= Normal && m <= Tinnitus
}

// ParseMode parses a mode name as produced by String.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if m.String() == s {
			return m, nil
		}
	}
	return Normal, fmt.Errorf("%q: %w", s, ErrUnknownMode)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Params is the stage configuration a mode applies to the playback graph.
type Params struct {
	Overlay    bool    // mix a looped tinnitus tone over the source
	Dropout    bool    // play a copy of the source with dropout windows silenced
	PitchCents float64 // pitch shift, 0 = none
	Rate       float64 // playback rate, 1 = unchanged
	Gain       float64 // output gain, 1 = unity
	AutoStop   bool    // stop after the recording's natural duration
}

// ParamsFor maps a mode to its graph parameters. An unknown mode is logged
// and gets unity parameters.
func ParamsFor(m Mode) Params {
	unity := Params{Rate: 1, Gain: 1}

	switch m {
	case Normal:
		return unity
	case Tinnitus:
		unity.Overlay = true
		unity.AutoStop = true
		return unity
	case SuddenLoss:
		unity.Dropout = true
		return unity
	case Presbycusis:
		return Params{PitchCents: -400, Rate: 0.9, Gain: 0.3}
	}
	logrus.WithFields(logrus.Fields{
		"component": "graph",
		"mode":      int(m),
	}).Error("Unknown simulation mode, using unity parameters")
	return unity
}
