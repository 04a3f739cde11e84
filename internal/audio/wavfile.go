package audio

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM audio format tag.
const wavFormatPCM = 1

// ErrInvalidWAV is returned when a file is not a readable PCM WAV container.
var ErrInvalidWAV = errors.New("invalid wav file")

// WAVWriter streams 16-bit interleaved PCM into a WAV file. The header sizes
// are patched when the writer is closed.
type WAVWriter struct {
	file       *os.File
	enc        *wav.Encoder
	format     *goaudio.Format
	frames     int
	sampleRate int
}

// CreateWAV creates (truncating) a WAV file at path.
func CreateWAV(path string, sampleRate, channels int) (*WAVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	return &WAVWriter{
		file:       f,
		enc:        wav.NewEncoder(f, sampleRate, RecordBitDepth, channels, wavFormatPCM),
		format:     &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		sampleRate: sampleRate,
	}, nil
}

// Write appends interleaved samples.
func (w *WAVWriter) Write(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{Format: w.format, Data: data, SourceBitDepth: RecordBitDepth}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	w.frames += len(samples) / w.format.NumChannels
	return nil
}

// Frames returns how many frames have been written so far.
func (w *WAVWriter) Frames() int {
	return w.frames
}

// Close finalizes the header and closes the file.
func (w *WAVWriter) Close() error {
	encErr := w.enc.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return fmt.Errorf("finalize wav: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("close wav: %w", fileErr)
	}
	return nil
}

// ReadWAV decodes a PCM WAV file into stereo float frames and its sample rate.
func ReadWAV(path string) ([][2]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, 0, fmt.Errorf("%s: no channels: %w", path, ErrInvalidWAV)
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = RecordBitDepth
	}
	scale := float64(int(1) << (bitDepth - 1))

	n := len(buf.Data) / channels
	frames := make([][2]float64, n)
	for i := 0; i < n; i++ {
		l := float64(buf.Data[i*channels]) / scale
		r := l
		if channels > 1 {
			r = float64(buf.Data[i*channels+1]) / scale
		}
		frames[i] = [2]float64{l, r}
	}

	return frames, buf.Format.SampleRate, nil
}
