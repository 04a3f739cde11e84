package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// Clip16 converts a float sample in [-1, 1] to int16, clipping out-of-range values.
func Clip16(v float64) int16 {
	scaled := v * 32767
	if scaled > 32767 {
		return 32767
	} else if scaled < -32768 {
		return -32768
	}
	return int16(scaled)
}

// RampFrame scales an interleaved stereo frame by a smoothstep gain curve going
// from gain `from` at the first sample pair to `to` at the last. The frame is
// modified in place and returned.
func RampFrame(frame []int16, from, to float64) []int16 {
	pairs := len(frame) / Channels
	if pairs == 0 {
		return frame
	}

	for i := 0; i < pairs; i++ {
		progress := 1.0
		if pairs > 1 {
			progress = float64(i) / float64(pairs-1)
		}
		gain := from + (to-from)*Smoothstep(progress)
		for c := 0; c < Channels; c++ {
			idx := i*Channels + c
			mixed := float64(frame[idx]) * gain

			if mixed > 32767 {
				mixed = 32767
			} else if mixed < -32768 {
				mixed = -32768
			}
			frame[idx] = int16(mixed)
		}
	}

	return frame
}
