package synth

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestFrameCount(t *testing.T) {
	tests := []struct {
		seconds float64
		rate    int
		want    int
	}{
		{2.0, 44100, 88200},
		{0.5, 8000, 4000},
		{1.00001, 44100, 44100},
		{0.0015, 1000, 1},
		{0, 44100, 0},
		{-1, 44100, 0},
		{1, 0, 0},
	}
	for _, tt := range tests {
		if got := FrameCount(tt.seconds, tt.rate); got != tt.want {
			t.Errorf("FrameCount(%v, %d) = %d, want %d", tt.seconds, tt.rate, got, tt.want)
		}
	}
}

func TestVolumeGain(t *testing.T) {
	tests := []struct {
		volume float64
		want   float64
	}{
		{1.0, 5.0},
		{0.5, 1.25},
		{0, 0.05},
		{-0.3, 0.05},
	}
	for _, tt := range tests {
		if got := VolumeGain(tt.volume); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("VolumeGain(%v) = %v, want %v", tt.volume, got, tt.want)
		}
	}
}

func TestFadeInSeconds(t *testing.T) {
	if got := FadeInSeconds(2.0); got != 0.1 {
		t.Errorf("FadeInSeconds(2.0) = %v, want 0.1", got)
	}
	if got := FadeInSeconds(0.5); math.Abs(got-0.05) > 1e-12 {
		t.Errorf("FadeInSeconds(0.5) = %v, want 0.05", got)
	}
}

func TestTinnitusLengthAndStart(t *testing.T) {
	frames := Tinnitus(2.0, 44100, 1.0)
	if len(frames) != 88200 {
		t.Fatalf("len = %d, want 88200", len(frames))
	}
	if frames[0] != [2]float64{0, 0} {
		t.Errorf("first frame = %v, want exact silence", frames[0])
	}
}

func TestTinnitusChannelsIdentical(t *testing.T) {
	for i, f := range Tinnitus(0.3, 22050, 0.7) {
		if f[0] != f[1] {
			t.Fatalf("frame %d: L=%v R=%v", i, f[0], f[1])
		}
	}
}

func TestTinnitusMagnitudeBound(t *testing.T) {
	for _, volume := range []float64{0, 0.2, 0.5, 1.0} {
		gain := VolumeGain(volume)
		limit := gain * (1 + ModulationDepth)
		for i, f := range Tinnitus(1.0, 44100, volume) {
			if math.Abs(f[0]) > limit+1e-12 {
				t.Fatalf("volume %v frame %d: |%v| exceeds %v", volume, i, f[0], limit)
			}
		}
	}
}

func TestTinnitusFadeIn(t *testing.T) {
	const rate = 44100
	frames := Tinnitus(2.0, rate, 1.0)
	gain := VolumeGain(1.0)

	raw := func(i int) float64 {
		tt := float64(i) / rate
		return math.Sin(2*math.Pi*TinnitusFrequency*tt) * (1 + ModulationDepth*math.Sin(2*math.Pi*ModulationRate*tt))
	}

	// Inside the 0.1s window (4410 frames) the envelope is t/0.1.
	for _, i := range []int{1, 441, 2205, 4000} {
		want := raw(i) * gain * (float64(i) / rate / 0.1)
		if math.Abs(frames[i][0]-want) > 1e-9 {
			t.Errorf("frame %d = %v, want %v", i, frames[i][0], want)
		}
	}
	// Past the window the envelope is flat.
	for _, i := range []int{4410, 5000, 88199} {
		want := raw(i) * gain
		if math.Abs(frames[i][0]-want) > 1e-9 {
			t.Errorf("frame %d = %v, want full gain %v", i, frames[i][0], want)
		}
	}
}

func TestTinnitusEmpty(t *testing.T) {
	if got := Tinnitus(0, 44100, 1); len(got) != 0 {
		t.Errorf("zero duration produced %d frames", len(got))
	}
}

func ones(n int) [][2]float64 {
	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{1, 1}
	}
	return out
}

func TestDropSamples(t *testing.T) {
	if got := DropSamples(44100); got != 8820 {
		t.Errorf("DropSamples(44100) = %d, want 8820", got)
	}
	if got := DropSamples(48000); got != 9600 {
		t.Errorf("DropSamples(48000) = %d, want 9600", got)
	}
}

func TestDropoutMaskZeroesWindows(t *testing.T) {
	const rate = 44100
	drop := DropSamples(rate)
	frames := ones(10 * rate)
	rng := rand.New(rand.NewPCG(1, 2))

	starts := DropoutMask(frames, rate, rng)
	if len(starts) != NumberOfDrops {
		t.Fatalf("starts = %d, want %d", len(starts), NumberOfDrops)
	}

	silenced := make([]bool, len(frames))
	for _, s := range starts {
		if s < 0 || s >= len(frames)-drop {
			t.Fatalf("start %d outside [0, %d)", s, len(frames)-drop)
		}
		for i := s; i < s+drop; i++ {
			silenced[i] = true
		}
	}

	union := 0
	for i, f := range frames {
		if silenced[i] {
			union++
			if f != [2]float64{0, 0} {
				t.Fatalf("frame %d inside a window is %v", i, f)
			}
		} else if f != [2]float64{1, 1} {
			t.Fatalf("frame %d outside windows was modified: %v", i, f)
		}
	}
	if union > NumberOfDrops*drop {
		t.Errorf("silenced %d frames, more than %d", union, NumberOfDrops*drop)
	}
}

func TestDropoutMaskExactCountWithoutOverlap(t *testing.T) {
	const rate = 1000
	drop := DropSamples(rate)
	// Try seeds until the windows don't overlap; the silenced count must then
	// be exactly NumberOfDrops*drop per channel.
	for seed := uint64(0); seed < 200; seed++ {
		frames := ones(600 * rate)
		starts := DropoutMask(frames, rate, rand.New(rand.NewPCG(seed, seed)))
		if overlapping(starts, drop) {
			continue
		}
		zeroL, zeroR := 0, 0
		for _, f := range frames {
			if f[0] == 0 {
				zeroL++
			}
			if f[1] == 0 {
				zeroR++
			}
		}
		if zeroL != NumberOfDrops*drop || zeroR != NumberOfDrops*drop {
			t.Fatalf("seed %d: zeroed L=%d R=%d, want %d", seed, zeroL, zeroR, NumberOfDrops*drop)
		}
		return
	}
	t.Fatal("no seed produced non-overlapping windows")
}

func overlapping(starts []int, drop int) bool {
	for i := range starts {
		for j := i + 1; j < len(starts); j++ {
			d := starts[i] - starts[j]
			if d < 0 {
				d = -d
			}
			if d < drop {
				return true
			}
		}
	}
	return false
}

func TestDropoutMaskShortBuffer(t *testing.T) {
	frames := ones(100)
	starts := DropoutMask(frames, 1000, rand.New(rand.NewPCG(3, 4)))
	if len(starts) != 1 || starts[0] != 0 {
		t.Errorf("starts = %v, want [0]", starts)
	}
	for i, f := range frames {
		if f != [2]float64{0, 0} {
			t.Fatalf("frame %d = %v, want silence", i, f)
		}
	}
}

func TestDropoutMaskEmpty(t *testing.T) {
	if starts := DropoutMask(nil, 44100, rand.New(rand.NewPCG(0, 0))); starts != nil {
		t.Errorf("empty buffer starts = %v", starts)
	}
}
