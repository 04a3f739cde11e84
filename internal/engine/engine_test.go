package engine

import (
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/satindergrewal/earshot/internal/audio"
	"github.com/satindergrewal/earshot/internal/graph"
	"github.com/satindergrewal/earshot/internal/recorder"
)

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) schedule(d time.Duration, fn func()) graph.Timer {
	t := &fakeTimer{d: d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func newTestEngine(t *testing.T) (*Engine, *audio.Player, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	player := audio.NewPlayer()
	rec := recorder.New(filepath.Join(t.TempDir(), "recording.wav"), audio.RecordSampleRate, 0)
	e := New(Options{
		Recorder:      rec,
		Output:        player,
		Scheduler:     clock.schedule,
		Rand:          rand.New(rand.NewPCG(1, 2)),
		DefaultVolume: 1,
	})
	return e, player, clock
}

// record captures frames of a constant stereo signal.
func record(t *testing.T, e *Engine, frames int) {
	t.Helper()
	e.StartRecording()
	samples := make([]int16, frames*2)
	for i := range samples {
		samples[i] = 8000
	}
	if err := e.WriteCapture(audio.RecordSampleRate, 2, samples); err != nil {
		t.Fatalf("WriteCapture: %v", err)
	}
	e.StopRecording()
	if !e.HasRecording() {
		t.Fatalf("no recording after stop: %s", e.Status().LastError)
	}
}

func TestPlayWithoutRecordingIsNoop(t *testing.T) {
	e, player, _ := newTestEngine(t)

	e.PlaySimulation(graph.Normal)

	if e.State() != Idle {
		t.Errorf("State = %v, want idle", e.State())
	}
	if player.Playing() {
		t.Error("player should not be playing")
	}
	if !strings.Contains(e.Status().LastError, ErrNoRecording.Error()) {
		t.Errorf("LastError = %q, want no recording", e.Status().LastError)
	}
}

func TestRecordAndPlayNormal(t *testing.T) {
	e, player, clock := newTestEngine(t)
	record(t, e, 44100)

	e.PlaySimulation(graph.Normal)

	if e.State() != Playing || !player.Playing() {
		t.Fatalf("State = %v, player playing = %v", e.State(), player.Playing())
	}
	p, ok := e.Params()
	if !ok || p != graph.ParamsFor(graph.Normal) {
		t.Errorf("Params = %+v, %v", p, ok)
	}
	if len(clock.timers) != 0 {
		t.Errorf("normal playback scheduled %d timers", len(clock.timers))
	}
	st := e.Status()
	if st.Mode != "normal" || st.RecordingSeconds != 1 || st.IsRecording {
		t.Errorf("Status = %+v", st)
	}
}

func TestResetThenPlayIsNoop(t *testing.T) {
	e, _, _ := newTestEngine(t)
	record(t, e, 4410)
	e.PlaySimulation(graph.Normal)

	e.ResetRecording()
	if e.HasRecording() || e.State() != Idle {
		t.Fatalf("after reset: has = %v, state = %v", e.HasRecording(), e.State())
	}

	e.PlaySimulation(graph.Tinnitus)
	if e.State() != Idle {
		t.Errorf("State = %v after play on reset engine", e.State())
	}
}

func TestTinnitusAutoStop(t *testing.T) {
	e, player, clock := newTestEngine(t)
	record(t, e, 22050)

	e.PlaySimulation(graph.Tinnitus)
	if len(clock.timers) != 1 {
		t.Fatalf("timers = %d, want 1", len(clock.timers))
	}
	if clock.timers[0].d != 500*time.Millisecond {
		t.Errorf("auto-stop after %v, want 500ms", clock.timers[0].d)
	}

	clock.timers[0].fn()
	if e.State() != Idle {
		t.Errorf("State = %v after auto-stop", e.State())
	}
	if player.Playing() {
		t.Error("player still playing after auto-stop")
	}
}

func TestTinnitusThenNormalIsClean(t *testing.T) {
	e, _, clock := newTestEngine(t)
	record(t, e, 22050)

	e.PlaySimulation(graph.Tinnitus)
	e.PlaySimulation(graph.Normal)

	p, _ := e.Params()
	if p.Overlay || p.PitchCents != 0 || p.Rate != 1 || p.Gain != 1 || p.AutoStop {
		t.Errorf("normal after tinnitus carried state: %+v", p)
	}
	if st := e.Status(); len(st.Stages) != 1 || st.Stages[0] != graph.StageSource {
		t.Errorf("Stages = %v, want source only", st.Stages)
	}
	if !clock.timers[0].stopped {
		t.Error("tinnitus auto-stop not canceled by rebuild")
	}

	// The old timer firing anyway must not stop the new playback.
	clock.timers[0].fn()
	if e.State() != Playing {
		t.Errorf("State = %v, stale auto-stop stopped playback", e.State())
	}
}

func TestStaleAutoStopIgnored(t *testing.T) {
	e, _, _ := newTestEngine(t)
	record(t, e, 4410)

	e.PlaySimulation(graph.Tinnitus)
	old := e.session
	e.PlaySimulation(graph.Tinnitus)

	e.autoStop(old)
	if e.State() != Playing {
		t.Errorf("State = %v, stale session stopped playback", e.State())
	}
	e.autoStop(e.session)
	if e.State() != Idle {
		t.Errorf("State = %v, current session did not stop", e.State())
	}
}

func TestStopAudioCancelsAutoStop(t *testing.T) {
	e, _, clock := newTestEngine(t)
	record(t, e, 4410)

	e.PlaySimulation(graph.Tinnitus)
	e.StopAudio()

	if e.State() != Idle {
		t.Errorf("State = %v after StopAudio", e.State())
	}
	if !clock.timers[0].stopped {
		t.Error("StopAudio did not cancel the auto-stop timer")
	}
	if !e.HasRecording() {
		t.Error("StopAudio should keep the recording")
	}
}

func TestNaturalEndReturnsToIdle(t *testing.T) {
	e, player, _ := newTestEngine(t)
	record(t, e, 441)

	e.PlaySimulation(graph.Normal)
	for i := 0; i < 10 && e.State() == Playing; i++ {
		player.Render()
	}
	if e.State() != Idle {
		t.Errorf("State = %v after the stream drained", e.State())
	}
}

func TestStopRecordingWithoutAudio(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.StartRecording()
	if !e.IsRecording() {
		t.Fatal("IsRecording = false after start")
	}
	e.StopRecording()

	if e.IsRecording() || e.HasRecording() {
		t.Errorf("recording = %v, has = %v", e.IsRecording(), e.HasRecording())
	}
	if e.Status().LastError == "" {
		t.Error("empty recording should be reported")
	}
}

func TestStopRecordingWhileIdleIsNoop(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.StopRecording()
	if e.Status().LastError != "" {
		t.Errorf("LastError = %q", e.Status().LastError)
	}
}

func TestStartRecordingDropsRecording(t *testing.T) {
	e, _, _ := newTestEngine(t)
	record(t, e, 4410)
	e.PlaySimulation(graph.SuddenLoss)

	e.StartRecording()
	if e.HasRecording() {
		t.Error("HasRecording = true while a new capture runs")
	}
	if e.State() != Idle {
		t.Errorf("State = %v, recording should stop playback", e.State())
	}
}

func TestPlayUnknownModeStaysIdle(t *testing.T) {
	e, player, _ := newTestEngine(t)
	record(t, e, 4410)

	e.PlaySimulation(graph.Mode(42))

	if e.State() != Idle || player.Playing() {
		t.Errorf("State = %v, player playing = %v", e.State(), player.Playing())
	}
	if !strings.Contains(e.Status().LastError, graph.ErrUnknownMode.Error()) {
		t.Errorf("LastError = %q, want unknown mode", e.Status().LastError)
	}
	if !e.HasRecording() {
		t.Error("unknown mode should keep the recording")
	}
}

func TestVolumeSourceFeedsOverlay(t *testing.T) {
	clock := &fakeClock{}
	player := audio.NewPlayer()
	rec := recorder.New(filepath.Join(t.TempDir(), "recording.wav"), audio.RecordSampleRate, 0)
	e := New(Options{
		Recorder:  rec,
		Output:    player,
		Volume:    fixedVolume(0),
		Scheduler: clock.schedule,
	})
	record(t, e, 4410)

	e.PlaySimulation(graph.Tinnitus)
	if e.State() != Playing {
		t.Errorf("State = %v, zero volume should still play", e.State())
	}
}
