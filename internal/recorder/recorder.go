// Package recorder captures pushed microphone PCM into the fixed-format
// recording file (stereo, 44.1 kHz, 16-bit linear PCM WAV).
package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/satindergrewal/earshot/internal/audio"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotRecording is returned when writing or stopping while idle.
	ErrNotRecording = errors.New("not recording")
	// ErrEmptyRecording is returned by Stop when no samples were captured.
	ErrEmptyRecording = errors.New("recording is empty")
)

// Recorder is a single-writer capture into one fixed file path. Starting a
// new capture deletes whatever the path held before.
type Recorder struct {
	path      string
	rate      int
	maxFrames int
	log       *logrus.Entry

	mu         sync.Mutex
	writer     *audio.WAVWriter
	resamplers map[int]*audio.Resampler
	id         string
	started    time.Time
	truncated  bool
}

// New creates a recorder writing to path at the given rate. A positive
// maxDuration caps how much audio one capture keeps.
func New(path string, rate int, maxDuration time.Duration) *Recorder {
	maxFrames := 0
	if maxDuration > 0 {
		maxFrames = int(maxDuration.Seconds() * float64(rate))
	}
	return &Recorder{
		path:      path,
		rate:      rate,
		maxFrames: maxFrames,
		log:       logrus.WithField("component", "recorder"),
	}
}

// Path returns the fixed recording destination.
func (r *Recorder) Path() string {
	return r.path
}

// SampleRate returns the recording sample rate.
func (r *Recorder) SampleRate() int {
	return r.rate
}

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer != nil
}

// Start opens a new capture, discarding any capture in progress and deleting
// the previous file. Returns the new recording ID.
func (r *Recorder) Start() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.abortLocked()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return "", fmt.Errorf("create recording directory: %w", err)
	}
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove previous recording: %w", err)
	}

	w, err := audio.CreateWAV(r.path, r.rate, audio.RecordChannels)
	if err != nil {
		return "", err
	}

	r.writer = w
	r.resamplers = make(map[int]*audio.Resampler)
	r.id = uuid.New().String()
	r.started = time.Now()
	r.truncated = false

	r.log.WithField("recording_id", r.id).Info("Recording started")
	return r.id, nil
}

// Write appends interleaved samples captured at rate with the given channel
// count. Input in another format is converted to stereo at the recorder rate.
func (r *Recorder) Write(rate, channels int, samples []int16) error {
	if channels < 1 || rate <= 0 {
		return fmt.Errorf("invalid capture format: %d Hz, %d channels", rate, channels)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return ErrNotRecording
	}

	var out []int16
	switch {
	case rate == r.rate && channels == audio.RecordChannels:
		out = samples[:len(samples)/2*2]
	case rate == r.rate && channels == 1:
		out = make([]int16, len(samples)*2)
		for i, s := range samples {
			out[i*2] = s
			out[i*2+1] = s
		}
	default:
		rs, ok := r.resamplers[rate]
		if !ok {
			rs = audio.NewResampler(rate, r.rate)
			r.resamplers[rate] = rs
		}
		out = audio.FromFrames(rs.Process(audio.ToFrames(samples, channels)))
	}

	if r.maxFrames > 0 {
		room := r.maxFrames - r.writer.Frames()
		if room <= 0 {
			if !r.truncated {
				r.truncated = true
				r.log.WithField("recording_id", r.id).Warn("Recording length limit reached, dropping input")
			}
			return nil
		}
		if len(out)/2 > room {
			out = out[:room*2]
		}
	}

	return r.writer.Write(out)
}

// Stop finalizes the capture and loads it back as a Recording.
func (r *Recorder) Stop() (*audio.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return nil, ErrNotRecording
	}

	frames := r.writer.Frames()
	err := r.writer.Close()
	r.writer = nil
	r.resamplers = nil
	if err != nil {
		return nil, err
	}

	log := r.log.WithFields(logrus.Fields{
		"recording_id": r.id,
		"frames":       frames,
		"elapsed":      time.Since(r.started).Round(time.Millisecond),
	})

	if frames == 0 {
		os.Remove(r.path)
		log.Warn("Recording stopped with no audio")
		return nil, ErrEmptyRecording
	}

	data, rate, err := audio.ReadWAV(r.path)
	if err != nil {
		return nil, fmt.Errorf("load recording: %w", err)
	}

	log.Info("Recording stopped")
	return &audio.Recording{
		ID:         r.id,
		Path:       r.path,
		SampleRate: rate,
		Frames:     data,
	}, nil
}

// Discard aborts any capture in progress and deletes the recording file.
func (r *Recorder) Discard() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.abortLocked()
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove recording: %w", err)
	}
	return nil
}

// abortLocked closes an in-progress capture without loading it. Must be called with mu held.
func (r *Recorder) abortLocked() {
	if r.writer == nil {
		return
	}
	if err := r.writer.Close(); err != nil {
		r.log.WithError(err).Warn("Closing aborted recording failed")
	}
	r.writer = nil
	r.resamplers = nil
	r.log.WithField("recording_id", r.id).Info("Recording aborted")
}
