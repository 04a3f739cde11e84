package audio

import (
	"context"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/sirupsen/logrus"
)

// resampleQuality is the beep resampler quality used for the output conversion.
const resampleQuality = 4

// EndFunc is called when the stream of a playback session drains on its own.
type EndFunc func(session uint64)

// Player pulls PCM from the active playback graph and outputs frames at real-time rate.
// When nothing is playing it outputs silence so listeners keep a steady clock.
type Player struct {
	frameCh chan []int16
	buf     [][2]float64

	mu       sync.Mutex
	current  beep.Streamer
	session  uint64
	fading   bool
	rendered int // output frames rendered for the current session
	onEnd    EndFunc
}

// NewPlayer creates an idle player.
func NewPlayer() *Player {
	return &Player{
		frameCh: make(chan []int16, 100),
		buf:     make([][2]float64, FrameSize),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Player) Frames() <-chan []int16 {
	return p.frameCh
}

// OnEnd registers the callback for natural end of a session.
func (p *Player) OnEnd(fn EndFunc) {
	p.mu.Lock()
	p.onEnd = fn
	p.mu.Unlock()
}

// Play replaces whatever is playing with s, which produces samples at rate.
// Returns the new session number.
func (p *Player) Play(s beep.Streamer, rate beep.SampleRate) uint64 {
	if rate != OutputSampleRate {
		s = beep.Resample(resampleQuality, rate, OutputSampleRate, s)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.session++
	p.current = s
	p.fading = false
	p.rendered = 0
	return p.session
}

// Stop ends the current session. The next rendered frame fades the tail out
// instead of cutting it.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.fading = true
	}
}

// Playing reports whether a session is active and not being stopped.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil && !p.fading
}

// Session returns the number of the most recent session.
func (p *Player) Session() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// Position returns how much of the current session has been output.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.rendered) * time.Second / OutputSampleRate
}

// Render produces the next interleaved output frame.
func (p *Player) Render() []int16 {
	frame := make([]int16, FrameSamples)

	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return frame
	}

	filled := 0
	for filled < FrameSize {
		n, ok := p.current.Stream(p.buf[filled:])
		filled += n
		if !ok || n == 0 {
			break
		}
	}
	for i := 0; i < filled; i++ {
		frame[i*2] = Clip16(p.buf[i][0])
		frame[i*2+1] = Clip16(p.buf[i][1])
	}
	p.rendered += filled

	var (
		onEnd   EndFunc
		session uint64
	)
	switch {
	case p.fading:
		RampFrame(frame[:filled*Channels], 1, 0)
		p.current = nil
		p.fading = false
	case filled < FrameSize:
		p.current = nil
		onEnd = p.onEnd
		session = p.session
	}
	p.mu.Unlock()

	if onEnd != nil {
		onEnd(session)
	}
	return frame
}

// Run outputs one frame per tick. Blocks until ctx is cancelled.
func (p *Player) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	logrus.WithField("component", "player").Info("Output pump started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case p.frameCh <- p.Render():
		case <-ctx.Done():
			return
		}
	}
}
