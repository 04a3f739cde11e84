package audio

import "encoding/binary"

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// BytesToSamples decodes little-endian s16 bytes. A trailing odd byte is ignored.
func BytesToSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}
	return samples
}

// ToFrames converts interleaved int16 samples with the given channel count into
// stereo float frames. Mono input is duplicated to both channels; channels past
// the second are dropped.
func ToFrames(samples []int16, channels int) [][2]float64 {
	if channels < 1 {
		return nil
	}
	n := len(samples) / channels
	frames := make([][2]float64, n)
	for i := 0; i < n; i++ {
		l := float64(samples[i*channels]) / 32768
		r := l
		if channels > 1 {
			r = float64(samples[i*channels+1]) / 32768
		}
		frames[i] = [2]float64{l, r}
	}
	return frames
}

// FromFrames converts stereo float frames to interleaved int16 samples.
func FromFrames(frames [][2]float64) []int16 {
	samples := make([]int16, len(frames)*2)
	for i, f := range frames {
		samples[i*2] = Clip16(f[0])
		samples[i*2+1] = Clip16(f[1])
	}
	return samples
}
