package audio

// Resampler converts a pushed stream of stereo frames between sample rates by
// linear interpolation. State carries across Process calls, so packet
// boundaries do not drift or click.
type Resampler struct {
	step   float64 // input frames advanced per output frame
	t      float64 // next output position, relative to prev
	prev   [2]float64
	primed bool
	bypass bool
}

// NewResampler creates a resampler from one rate to another.
func NewResampler(from, to int) *Resampler {
	return &Resampler{
		step:   float64(from) / float64(to),
		bypass: from == to,
	}
}

// Process consumes input frames and returns the frames that can be produced so far.
func (r *Resampler) Process(in [][2]float64) [][2]float64 {
	if r.bypass {
		return in
	}

	out := make([][2]float64, 0, int(float64(len(in))/r.step)+1)
	for _, cur := range in {
		if !r.primed {
			r.prev = cur
			r.primed = true
			continue
		}
		for r.t < 1 {
			out = append(out, [2]float64{
				r.prev[0] + (cur[0]-r.prev[0])*r.t,
				r.prev[1] + (cur[1]-r.prev[1])*r.t,
			})
			r.t += r.step
		}
		r.t -= 1
		r.prev = cur
	}
	return out
}
