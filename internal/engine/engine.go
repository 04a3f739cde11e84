// Package engine is the simulation pipeline facade. It owns the recorder, the
// current recording and the playback graph, and drives the output player.
// All operations are fire-and-forget: failures are logged, recorded in
// Status, and leave the engine in a consistent Idle state.
package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/satindergrewal/earshot/internal/audio"
	"github.com/satindergrewal/earshot/internal/graph"
	"github.com/satindergrewal/earshot/internal/recorder"
	"github.com/sirupsen/logrus"
)

// Failure classes. Every logged failure wraps one of these.
var (
	ErrSessionConfiguration = errors.New("audio session configuration failed")
	ErrFileIO               = errors.New("recording file i/o failed")
	ErrBufferAllocation     = errors.New("sample buffer allocation failed")
	ErrNoRecording          = errors.New("no recording available")
)

// State is the playback state.
type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Output is where playback graphs are rendered.
type Output interface {
	Play(s beep.Streamer, rate beep.SampleRate) uint64
	Stop()
	OnEnd(fn audio.EndFunc)
	Position() time.Duration
}

// VolumeSource supplies the stored volume setting.
type VolumeSource interface {
	Volume() float64
}

type fixedVolume float64

func (v fixedVolume) Volume() float64 { return float64(v) }

// Options configures an Engine.
type Options struct {
	Recorder  *recorder.Recorder
	Output    Output
	Volume    VolumeSource    // nil uses DefaultVolume
	Scheduler graph.Scheduler // nil uses graph.AfterFunc
	Rand      *rand.Rand      // nil seeds a fresh generator

	DefaultVolume float64
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	IsRecording      bool     `json:"is_recording"`
	HasRecording     bool     `json:"has_recording"`
	State            State    `json:"state"`
	Mode             string   `json:"mode,omitempty"`
	Stages           []string `json:"stages,omitempty"`
	RecordingID      string   `json:"recording_id,omitempty"`
	RecordingSeconds float64  `json:"recording_seconds,omitempty"`
	PositionSeconds  float64  `json:"position_seconds,omitempty"`
	LastError        string   `json:"last_error,omitempty"`
}

// Engine is the pipeline facade. Construct one with New and share the handle.
type Engine struct {
	rec    *recorder.Recorder
	out    Output
	volume VolumeSource
	sched  graph.Scheduler
	rng    *rand.Rand
	log    *logrus.Entry

	mu        sync.Mutex
	recording *audio.Recording
	graph     *graph.Graph
	state     State
	session   uint64 // output session of the current graph
	lastError string
}

// New creates an idle engine and registers for end-of-stream notifications.
func New(opts Options) *Engine {
	e := &Engine{
		rec:    opts.Recorder,
		out:    opts.Output,
		volume: opts.Volume,
		sched:  opts.Scheduler,
		rng:    opts.Rand,
		log:    logrus.WithField("component", "engine"),
	}
	if e.volume == nil {
		e.volume = fixedVolume(min(max(opts.DefaultVolume, 0), 1))
	}
	if e.sched == nil {
		e.sched = graph.AfterFunc
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	e.out.OnEnd(e.handleEnd)
	return e
}

// StartRecording stops playback, drops the current recording and begins a new capture.
func (e *Engine) StartRecording() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	e.recording = nil

	id, err := e.rec.Start()
	if err != nil {
		e.failLocked(fmt.Errorf("%w: start recording: %w", ErrSessionConfiguration, err))
		return
	}
	e.log.WithField("recording_id", id).Info("Recording started")
}

// StopRecording finalizes the capture. On success the recording becomes available.
func (e *Engine) StopRecording() {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.rec.Stop()
	switch {
	case errors.Is(err, recorder.ErrNotRecording):
		e.log.Debug("Stop recording ignored, not recording")
		return
	case errors.Is(err, recorder.ErrEmptyRecording):
		e.failLocked(fmt.Errorf("%w: %w", ErrNoRecording, err))
		return
	case err != nil:
		e.failLocked(fmt.Errorf("%w: stop recording: %w", ErrFileIO, err))
		return
	}

	e.recording = rec
	e.log.WithFields(logrus.Fields{
		"recording_id": rec.ID,
		"seconds":      rec.Seconds(),
	}).Info("Recording available")
}

// WriteCapture pushes captured PCM into the active recording.
func (e *Engine) WriteCapture(rate, channels int, samples []int16) error {
	return e.rec.Write(rate, channels, samples)
}

// PlaySimulation tears down any current playback and plays the recording
// through a freshly built graph for mode. Without a recording it is a no-op.
func (e *Engine) PlaySimulation(mode graph.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()

	if e.recording == nil {
		e.failLocked(fmt.Errorf("play %s: %w", mode, ErrNoRecording))
		return
	}

	g, err := graph.Build(mode, graph.Input{
		Recording: e.recording,
		Volume:    e.volume.Volume(),
		Rand:      e.rng,
	})
	switch {
	case errors.Is(err, graph.ErrUnknownMode):
		e.failLocked(fmt.Errorf("play %s: %w", mode, err))
		return
	case err != nil:
		e.failLocked(fmt.Errorf("%w: build %s graph: %w", ErrBufferAllocation, mode, err))
		return
	}

	session := e.out.Play(g.Streamer(), g.Format.SampleRate)
	e.graph = g
	e.session = session
	e.state = Playing

	if g.Params.AutoStop {
		g.Schedule(e.sched, g.Duration, func() { e.autoStop(session) })
	}

	e.log.WithFields(logrus.Fields{
		"mode":     mode.String(),
		"stages":   g.Stages(),
		"duration": g.Duration.Round(time.Millisecond),
	}).Info("Playback started")
}

// StopAudio stops playback and cancels any pending auto-stop.
func (e *Engine) StopAudio() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopLocked() {
		e.log.Info("Playback stopped")
	}
}

// ResetRecording stops audio and discards the recording and its file.
func (e *Engine) ResetRecording() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	e.recording = nil
	if err := e.rec.Discard(); err != nil {
		e.failLocked(fmt.Errorf("%w: reset: %w", ErrFileIO, err))
		return
	}
	e.log.Info("Recording reset")
}

// IsRecording reports whether a capture is in progress.
func (e *Engine) IsRecording() bool {
	return e.rec.Recording()
}

// HasRecording reports whether a recording is available for playback.
func (e *Engine) HasRecording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording != nil
}

// State returns the playback state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Recording returns the current recording, or nil.
func (e *Engine) Recording() *audio.Recording {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording
}

// Params returns the stage parameters of the current graph.
func (e *Engine) Params() (graph.Params, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.graph == nil {
		return graph.Params{}, false
	}
	return e.graph.Params, true
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	recording := e.rec.Recording()

	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		IsRecording:  recording,
		HasRecording: e.recording != nil,
		State:        e.state,
		LastError:    e.lastError,
	}
	if e.recording != nil {
		st.RecordingID = e.recording.ID
		st.RecordingSeconds = e.recording.Seconds()
	}
	if e.graph != nil && e.state == Playing {
		st.Mode = e.graph.Mode.String()
		st.Stages = e.graph.Stages()
		st.PositionSeconds = e.out.Position().Seconds()
	}
	return st
}

// autoStop ends a playback after its scheduled duration. A task that belongs
// to an earlier session is ignored.
func (e *Engine) autoStop(session uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Playing || e.session != session {
		e.log.WithField("session", session).Debug("Ignoring stale auto-stop")
		return
	}
	e.stopLocked()
	e.log.Info("Playback auto-stopped")
}

// handleEnd is called by the output when a session drains on its own.
func (e *Engine) handleEnd(session uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Playing || e.session != session {
		return
	}
	e.teardownLocked()
	e.log.Info("Playback finished")
}

// stopLocked stops the output and tears the graph down. Reports whether
// anything was playing.
func (e *Engine) stopLocked() bool {
	if e.graph == nil && e.state == Idle {
		return false
	}
	e.out.Stop()
	e.teardownLocked()
	return true
}

func (e *Engine) teardownLocked() {
	if e.graph != nil {
		e.graph.Close()
		e.graph = nil
	}
	e.state = Idle
}

func (e *Engine) failLocked(err error) {
	e.lastError = err.Error()
	e.log.WithError(err).Error("Pipeline operation failed")
}
