// Package graph builds the playback graph for a simulation mode: the chain of
// source, overlay, pitch, rate and gain stages that turns a recording into the
// stream handed to the output player. A graph is built fresh for every
// playback and never reused.
package graph

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/satindergrewal/earshot/internal/audio"
	"github.com/satindergrewal/earshot/internal/synth"
)

// rateQuality is the beep resampler quality used by the rate stage.
const rateQuality = 4

var (
	// ErrNoSource is returned when building without a recording.
	ErrNoSource = errors.New("no source recording")
	// ErrEmptyBuffer is returned when the source or overlay has no frames.
	ErrEmptyBuffer = errors.New("empty sample buffer")
)

// Stage names, in signal order.
const (
	StageSource  = "source"
	StageOverlay = "overlay"
	StagePitch   = "pitch"
	StageRate    = "rate"
	StageGain    = "gain"
)

// Input holds what a graph is built from.
type Input struct {
	Recording *audio.Recording
	Volume    float64    // stored volume setting, used by the tinnitus overlay
	Rand      *rand.Rand // dropout window placement
}

// Graph is one playback's signal chain.
type Graph struct {
	Mode       Mode
	Params     Params
	Format     beep.Format
	Duration   time.Duration // natural playback length after the rate stage
	DropStarts []int         // dropout window starts, SuddenLoss only

	stages []string
	out    beep.Streamer

	mu     sync.Mutex
	task   *Task
	closed bool
}

// Build assembles the graph for mode from a fresh copy of every stage.
func Build(mode Mode, in Input) (*Graph, error) {
	rec := in.Recording
	if rec == nil {
		return nil, ErrNoSource
	}
	if rec.SampleRate <= 0 {
		return nil, fmt.Errorf("source sample rate %d: %w", rec.SampleRate, ErrEmptyBuffer)
	}
	if rec.Len() == 0 {
		return nil, fmt.Errorf("source: %w", ErrEmptyBuffer)
	}

	if !mode.Valid() {
		return nil, fmt.Errorf("build: %w", ErrUnknownMode)
	}

	p := ParamsFor(mode)
	g := &Graph{
		Mode:     mode,
		Params:   p,
		Format:   rec.Format(),
		Duration: time.Duration(float64(rec.Duration()) / p.Rate),
		stages:   []string{StageSource},
	}

	data := rec.Frames
	if p.Dropout {
		rng := in.Rand
		if rng == nil {
			rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
		data = rec.Copy()
		g.DropStarts = synth.DropoutMask(data, rec.SampleRate, rng)
	}
	var s beep.Streamer = audio.NewFrames(data)

	if p.Overlay {
		tone := synth.Tinnitus(rec.Seconds(), rec.SampleRate, in.Volume)
		if len(tone) == 0 {
			return nil, fmt.Errorf("tinnitus overlay: %w", ErrEmptyBuffer)
		}
		s = beep.Mix(s, beep.Loop(-1, audio.NewFrames(tone)))
		g.stages = append(g.stages, StageOverlay)
	}

	if cents := shifterCents(p); cents != 0 {
		s = NewPitchShifter(s, cents, g.Format.SampleRate)
		g.stages = append(g.stages, StagePitch)
	}

	if p.Rate != 1 {
		s = beep.ResampleRatio(rateQuality, p.Rate, s)
		g.stages = append(g.stages, StageRate)
	}

	if p.Gain != 1 {
		s = &effects.Gain{Streamer: s, Gain: p.Gain - 1}
		g.stages = append(g.stages, StageGain)
	}

	g.out = s
	return g, nil
}

// shifterCents is the shift the pitch stage applies so that, after the rate
// stage resamples by p.Rate, the net pitch change is p.PitchCents.
func shifterCents(p Params) float64 {
	if p.Rate == 1 {
		return p.PitchCents
	}
	return p.PitchCents - 1200*math.Log2(p.Rate)
}

// Streamer returns the graph output at Format.SampleRate.
func (g *Graph) Streamer() beep.Streamer {
	return g.out
}

// Stages returns the active stage names in signal order.
func (g *Graph) Stages() []string {
	return append([]string(nil), g.stages...)
}

// Schedule binds a fire-once task to the graph. Closing the graph cancels it.
// Scheduling on a closed graph is a no-op that returns nil.
func (g *Graph) Schedule(sched Scheduler, d time.Duration, fn func()) *Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	if g.task != nil {
		g.task.Cancel()
	}
	g.task = newTask(sched, d, fn)
	return g.task
}

// Close tears the graph down and cancels any pending task. Idempotent.
func (g *Graph) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if g.task != nil {
		g.task.Cancel()
		g.task = nil
	}
}
