package graph

import (
	"math"

	"github.com/gopxl/beep/v2"
)

// pitchWindow is the grain length of the pitch shifter in seconds.
const pitchWindow = 0.05

// PitchShifter shifts pitch without changing duration using a two-tap
// modulated delay line. The taps sweep the delay at a speed set by the pitch
// ratio and are crossfaded with sin² windows half a grain apart, so their
// gains always sum to one.
type PitchShifter struct {
	s     beep.Streamer
	ratio float64

	buf    [][2]float64
	w      int     // write index
	phase  float64 // delay phase in [0, 1)
	window float64 // grain length in frames
}

// NewPitchShifter wraps s, shifting by cents at the given sample rate.
func NewPitchShifter(s beep.Streamer, cents float64, rate beep.SampleRate) *PitchShifter {
	window := math.Max(8, math.Round(pitchWindow*float64(rate)))
	return &PitchShifter{
		s:      s,
		ratio:  math.Pow(2, cents/1200),
		buf:    make([][2]float64, int(window)+2),
		window: window,
	}
}

// Ratio returns the frequency ratio applied.
func (p *PitchShifter) Ratio() float64 {
	return p.ratio
}

func (p *PitchShifter) Stream(samples [][2]float64) (int, bool) {
	n, ok := p.s.Stream(samples)
	step := (1 - p.ratio) / p.window

	for i := 0; i < n; i++ {
		p.buf[p.w] = samples[i]

		p.phase += step
		p.phase -= math.Floor(p.phase)
		other := p.phase + 0.5
		other -= math.Floor(other)

		g1 := math.Sin(math.Pi * p.phase)
		g2 := math.Sin(math.Pi * other)
		a := p.tap(p.phase * p.window)
		b := p.tap(other * p.window)

		samples[i] = [2]float64{
			a[0]*g1*g1 + b[0]*g2*g2,
			a[1]*g1*g1 + b[1]*g2*g2,
		}
		p.w = (p.w + 1) % len(p.buf)
	}
	return n, ok
}

func (p *PitchShifter) Err() error {
	return p.s.Err()
}

// tap reads the delay line d frames behind the write head with linear interpolation.
func (p *PitchShifter) tap(d float64) [2]float64 {
	size := len(p.buf)
	pos := float64(p.w) - d
	for pos < 0 {
		pos += float64(size)
	}
	i0 := int(pos) % size
	i1 := (i0 + 1) % size
	frac := pos - math.Floor(pos)

	a, b := p.buf[i0], p.buf[i1]
	return [2]float64{
		a[0]*(1-frac) + b[0]*frac,
		a[1]*(1-frac) + b[1]*frac,
	}
}
