package stream

import (
	"context"
	"testing"
	"time"

	"github.com/satindergrewal/earshot/internal/audio"
)

// feed returns a closed source holding n frames tagged with their index.
func feed(n int) <-chan []int16 {
	ch := make(chan []int16, n)
	for i := 0; i < n; i++ {
		ch <- []int16{int16(i), int16(i)}
	}
	close(ch)
	return ch
}

func drainListener(l *Listener) [][]int16 {
	var got [][]int16
	for {
		select {
		case f := <-l.C:
			got = append(got, f)
		default:
			return got
		}
	}
}

func TestPlayerFramesReachListener(t *testing.T) {
	player := audio.NewPlayer()
	b := NewBroadcaster()
	l := b.Subscribe()
	defer b.Unsubscribe(l)

	level := make([][2]float64, audio.OutputSampleRate)
	for i := range level {
		level[i] = [2]float64{0.5, -0.5}
	}
	player.Play(audio.NewFrames(level), audio.OutputSampleRate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go player.Run(ctx)
	go b.Run(ctx, player.Frames())

	select {
	case frame := <-l.C:
		if len(frame) != audio.FrameSamples {
			t.Fatalf("frame has %d samples, want %d", len(frame), audio.FrameSamples)
		}
		if frame[0] != audio.Clip16(0.5) || frame[1] != audio.Clip16(-0.5) {
			t.Errorf("first frame starts %v, want rendered level", frame[:2])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame from the player")
	}
}

func TestRunEndsWhenPlayerStops(t *testing.T) {
	player := audio.NewPlayer()
	b := NewBroadcaster()

	ctx, cancel := context.WithCancel(context.Background())
	go player.Run(ctx)

	done := make(chan struct{})
	go func() {
		b.Run(context.Background(), player.Frames())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the player closed its frames")
	}
}

func TestFullListenerCountsDrops(t *testing.T) {
	const extra = 25
	b := NewBroadcaster()
	l := b.Subscribe()
	defer b.Unsubscribe(l)

	b.Run(context.Background(), feed(listenerBuffer+extra))

	got := drainListener(l)
	if len(got) != listenerBuffer {
		t.Errorf("received %d frames, want buffer size %d", len(got), listenerBuffer)
	}
	if l.Dropped() != extra {
		t.Errorf("Dropped = %d, want %d", l.Dropped(), extra)
	}
	if b.FramesSent() != listenerBuffer+extra {
		t.Errorf("FramesSent = %d, want %d", b.FramesSent(), listenerBuffer+extra)
	}
	// The oldest frames are kept; the overflow is what gets dropped.
	if got[0][0] != 0 || got[len(got)-1][0] != listenerBuffer-1 {
		t.Errorf("kept frames %d..%d, want 0..%d", got[0][0], got[len(got)-1][0], listenerBuffer-1)
	}
}

func TestSlowListenerDoesNotStallOthers(t *testing.T) {
	b := NewBroadcaster()
	slow := b.Subscribe()
	fast := b.Subscribe()
	defer b.Unsubscribe(slow)
	defer b.Unsubscribe(fast)

	// Fill the slow listener first so every further frame overflows it.
	b.Run(context.Background(), feed(listenerBuffer))
	drainListener(fast)

	b.Run(context.Background(), feed(10))
	if got := len(drainListener(fast)); got != 10 {
		t.Errorf("fast listener got %d frames, want 10", got)
	}
	if slow.Dropped() != 10 || fast.Dropped() != 0 {
		t.Errorf("Dropped slow = %d fast = %d, want 10 and 0", slow.Dropped(), fast.Dropped())
	}
}

func TestUnsubscribedListenerGetsNothing(t *testing.T) {
	b := NewBroadcaster()
	gone := b.Subscribe()
	kept := b.Subscribe()
	b.Unsubscribe(gone)
	defer b.Unsubscribe(kept)

	b.Run(context.Background(), feed(3))

	if n := len(drainListener(gone)); n != 0 {
		t.Errorf("unsubscribed listener got %d frames", n)
	}
	if n := len(drainListener(kept)); n != 3 {
		t.Errorf("subscribed listener got %d frames, want 3", n)
	}
	if b.ListenerCount() != 1 {
		t.Errorf("ListenerCount = %d, want 1", b.ListenerCount())
	}
}

func TestUnsubscribeTwice(t *testing.T) {
	b := NewBroadcaster()
	l := b.Subscribe()

	b.Unsubscribe(l)
	b.Unsubscribe(l)

	select {
	case <-l.done:
	default:
		t.Error("done not closed after Unsubscribe")
	}
	if b.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d, want 0", b.ListenerCount())
	}
}

func TestListenerIDsUnique(t *testing.T) {
	b := NewBroadcaster()
	l1, l2 := b.Subscribe(), b.Subscribe()
	if l1.ID == "" || l1.ID == l2.ID {
		t.Errorf("listener IDs %q and %q should be unique", l1.ID, l2.ID)
	}
}
