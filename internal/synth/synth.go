// Package synth generates the sample buffers used by the hearing simulations:
// the tinnitus overlay tone and the sudden-loss dropout mask.
package synth

import (
	"math"
	"math/rand/v2"
)

const (
	TinnitusFrequency = 5000.0 // Hz
	ModulationRate    = 2.0    // Hz
	ModulationDepth   = 0.1
	MaxFadeIn         = 0.1 // seconds
	FadeInFraction    = 0.1 // of total duration
	VolumeFloor       = 0.1
	VolumeBoost       = 5.0
	NumberOfDrops     = 10
	DropDuration      = 0.2 // seconds
)

// FrameCount returns floor(rate * seconds), the number of stereo frames
// generated for a buffer of the given duration.
func FrameCount(seconds float64, rate int) int {
	if seconds <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Floor(float64(rate) * seconds))
}

// VolumeGain maps the stored volume setting v to the tinnitus amplitude:
// (v > 0 ? v : 0.1)^2 * 5.
func VolumeGain(v float64) float64 {
	if v <= 0 {
		v = VolumeFloor
	}
	return v * v * VolumeBoost
}

// FadeInSeconds returns the fade-in window: min(0.1s, 10% of the duration).
func FadeInSeconds(seconds float64) float64 {
	return math.Min(MaxFadeIn, seconds*FadeInFraction)
}

// Tinnitus generates the tinnitus overlay for a recording of the given
// duration: a 5 kHz sine, amplitude-modulated at 2 Hz with depth 0.1, scaled by
// VolumeGain(volume) and faded in linearly. Both channels carry the same value.
func Tinnitus(seconds float64, rate int, volume float64) [][2]float64 {
	n := FrameCount(seconds, rate)
	frames := make([][2]float64, n)

	gain := VolumeGain(volume)
	fade := FadeInSeconds(seconds)
	sr := float64(rate)

	for i := 0; i < n; i++ {
		t := float64(i) / sr

		modulation := 1 + ModulationDepth*math.Sin(2*math.Pi*ModulationRate*t)
		raw := math.Sin(2*math.Pi*TinnitusFrequency*t) * modulation
		fadeIn := math.Min(t/fade, 1.0)

		v := raw * gain * fadeIn
		frames[i] = [2]float64{v, v}
	}

	return frames
}

// DropSamples returns the length in frames of one dropout window.
func DropSamples(rate int) int {
	return int(DropDuration * float64(rate))
}

// DropoutMask silences NumberOfDrops windows of DropSamples(rate) frames at
// uniformly random starts in [0, len(frames)-DropSamples). Both channels are
// zeroed in place. Windows may overlap, so the silenced total can be shorter
// than NumberOfDrops windows. Returns the chosen start offsets.
//
// A buffer no longer than one window is silenced entirely.
func DropoutMask(frames [][2]float64, rate int, rng *rand.Rand) []int {
	drop := DropSamples(rate)
	total := len(frames)
	if total == 0 || drop <= 0 {
		return nil
	}
	if total <= drop {
		clear(frames)
		return []int{0}
	}

	starts := make([]int, NumberOfDrops)
	for i := range starts {
		start := rng.IntN(total - drop)
		starts[i] = start
		clear(frames[start : start+drop])
	}
	return starts
}
