package audio

import "fmt"

// Frames is a beep.StreamSeeker over an in-memory slice of stereo frames.
// Unlike beep.Buffer it keeps full float precision, so synthesized signals
// above unity gain are not quantized before mixing.
type Frames struct {
	data [][2]float64
	pos  int
}

// NewFrames wraps data without copying it.
func NewFrames(data [][2]float64) *Frames {
	return &Frames{data: data}
}

func (f *Frames) Stream(samples [][2]float64) (int, bool) {
	if f.pos >= len(f.data) {
		return 0, false
	}
	n := copy(samples, f.data[f.pos:])
	f.pos += n
	return n, true
}

func (f *Frames) Err() error { return nil }

func (f *Frames) Len() int { return len(f.data) }

func (f *Frames) Position() int { return f.pos }

func (f *Frames) Seek(p int) error {
	if p < 0 || p > len(f.data) {
		return fmt.Errorf("seek position %d out of range [0, %d]", p, len(f.data))
	}
	f.pos = p
	return nil
}
