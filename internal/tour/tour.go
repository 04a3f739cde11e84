// Package tour walks a listener through the simulation chapters in order.
package tour

import (
	"errors"
	"fmt"
	"sync"

	"github.com/satindergrewal/earshot/internal/graph"
	"github.com/sirupsen/logrus"
)

// ErrNoChapter is returned when selecting an index outside the chapter list.
var ErrNoChapter = errors.New("no such chapter")

// Player is the part of the engine the tour drives.
type Player interface {
	PlaySimulation(mode graph.Mode)
	StopAudio()
}

// Tour holds the current chapter. Moving between chapters stops whatever is
// playing; moves only go one step at a time, except Select.
type Tour struct {
	player Player
	log    *logrus.Entry

	mu      sync.Mutex
	current int
}

// New starts a tour at the first chapter.
func New(p Player) *Tour {
	return &Tour{
		player: p,
		log:    logrus.WithField("component", "tour"),
	}
}

// Current returns the current chapter index and chapter.
func (t *Tour) Current() (int, Chapter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, Chapters[t.current]
}

// Next advances one chapter. At the last chapter it does nothing and
// reports false.
func (t *Tour) Next() bool {
	return t.step(1)
}

// Previous goes back one chapter. At the first chapter it does nothing and
// reports false.
func (t *Tour) Previous() bool {
	return t.step(-1)
}

// Select jumps to chapter i.
func (t *Tour) Select(i int) error {
	if i < 0 || i >= len(Chapters) {
		return fmt.Errorf("chapter %d: %w", i, ErrNoChapter)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if i != t.current {
		t.moveLocked(i)
	}
	return nil
}

// Play plays the recording through the current chapter's mode.
func (t *Tour) Play() Chapter {
	t.mu.Lock()
	ch := Chapters[t.current]
	t.mu.Unlock()

	t.player.PlaySimulation(ch.Mode)
	return ch
}

func (t *Tour) step(delta int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.current + delta
	if next < 0 || next >= len(Chapters) {
		return false
	}
	t.moveLocked(next)
	return true
}

func (t *Tour) moveLocked(i int) {
	t.player.StopAudio()
	t.current = i
	t.log.WithFields(logrus.Fields{
		"chapter": i,
		"mode":    Chapters[i].Mode.String(),
	}).Debug("Chapter changed")
}
