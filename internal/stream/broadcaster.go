// Package stream carries audio between the service and remote peers: the
// output fan-out, the WAV and WebRTC listening endpoints, and the WebRTC
// microphone ingest.
package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// listenerBuffer is how many 20ms frames a listener may lag before drops (~3s).
const listenerBuffer = 150

// Broadcaster fans out output frames from one source to N listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	frames    atomic.Uint64
}

// Listener receives output frames from the broadcaster.
type Listener struct {
	ID      string
	C       chan []int16 // buffered channel of 20ms PCM frames
	done    chan struct{}
	dropped atomic.Uint64
}

// Dropped returns how many frames this listener missed for being too slow.
func (l *Listener) Dropped() uint64 {
	return l.dropped.Load()
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		ID:   uuid.NewString(),
		C:    make(chan []int16, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Safe to call twice.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[l]; !ok {
		return
	}
	delete(b.listeners, l)
	close(l.done)
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// FramesSent returns how many frames have been fanned out since start.
func (b *Broadcaster) FramesSent() uint64 {
	return b.frames.Load()
}

// Run fans out frames from source until ctx ends or source closes. A
// listener whose buffer is full misses the frame instead of stalling the
// others.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.fanOut(frame)
		}
	}
}

func (b *Broadcaster) fanOut(frame []int16) {
	b.frames.Add(1)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		l.deliver(frame)
	}
}

func (l *Listener) deliver(frame []int16) {
	select {
	case l.C <- frame:
	default:
		l.dropped.Add(1)
	}
}
