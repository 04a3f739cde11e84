package audio

import (
	"time"

	"github.com/gopxl/beep/v2"
)

const (
	// Recordings are always stored in this format regardless of capture source.
	RecordSampleRate = 44100
	RecordChannels   = 2
	RecordBitDepth   = 16

	// Output frames feed the WebRTC/HTTP listeners.
	OutputSampleRate = 48000
	Channels         = 2
	FrameDuration    = 20 * time.Millisecond
	FrameSize        = 960                  // samples per channel per 20ms frame
	FrameSamples     = FrameSize * Channels // total interleaved samples per frame
	FrameBytes       = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Recording is a finalized voice capture held in memory as stereo float frames.
type Recording struct {
	ID         string
	Path       string
	SampleRate int
	Frames     [][2]float64
}

// Len returns the number of stereo frames.
func (r *Recording) Len() int {
	return len(r.Frames)
}

// Seconds returns the duration in seconds.
func (r *Recording) Seconds() float64 {
	if r.SampleRate <= 0 {
		return 0
	}
	return float64(len(r.Frames)) / float64(r.SampleRate)
}

// Duration returns the natural playback duration.
func (r *Recording) Duration() time.Duration {
	return time.Duration(r.Seconds() * float64(time.Second))
}

// Format returns the beep format of the recording.
func (r *Recording) Format() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(r.SampleRate),
		NumChannels: RecordChannels,
		Precision:   RecordBitDepth / 8,
	}
}

// Copy returns a deep copy of the frames. Playback paths that mutate samples
// work on a copy so the stored recording is never touched.
func (r *Recording) Copy() [][2]float64 {
	out := make([][2]float64, len(r.Frames))
	copy(out, r.Frames)
	return out
}
