// Package settings persists user preferences in a badger key/value store.
// Each preference lives under its own key, JSON-encoded.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// VolumeWarningThreshold is the volume above which the hearing-safety warning applies.
const VolumeWarningThreshold = 0.49

// Storage keys.
const (
	keyAudioVolume          = "audioVolume"
	keyHapticIntensity      = "hapticIntensity"
	keyFontSize             = "fontSize"
	keyUITheme              = "uiTheme"
	keySimulationDifficulty = "simulationDifficulty"
	keyAccessibilityMode    = "accessibilityMode"
	keyShowGuidance         = "showGuidance"
	keyColorblindAssist     = "colorblindAssist"
)

// Theme values.
const (
	ThemeUnset = iota
	ThemeLight
	ThemeDark
	ThemeSystem
)

// Settings is the full set of user preferences.
type Settings struct {
	AudioVolume          float64 `json:"audio_volume"`
	HapticIntensity      float64 `json:"haptic_intensity"`
	FontSize             float64 `json:"font_size"`
	UITheme              int     `json:"ui_theme"`
	SimulationDifficulty int     `json:"simulation_difficulty"`
	AccessibilityMode    bool    `json:"accessibility_mode"`
	ShowGuidance         bool    `json:"show_guidance"`
	ColorblindAssist     bool    `json:"colorblind_assist"`
}

// Defaults returns the out-of-the-box preferences.
func Defaults() Settings {
	return Settings{
		AudioVolume:          1.0,
		HapticIntensity:      1.0,
		FontSize:             20,
		UITheme:              ThemeUnset,
		SimulationDifficulty: 1,
		ShowGuidance:         true,
	}
}

// VolumeWarning reports whether the volume is high enough to warrant the
// high-frequency hearing-safety warning.
func (s Settings) VolumeWarning() bool {
	return s.AudioVolume > VolumeWarningThreshold
}

// Clamped returns s with every value moved into its allowed range.
func (s Settings) Clamped() Settings {
	s.AudioVolume = clamp(s.AudioVolume, 0, 1)
	s.HapticIntensity = clamp(s.HapticIntensity, 0, 1)
	s.FontSize = math.Round(clamp(s.FontSize, 16, 30))
	s.UITheme = min(max(s.UITheme, ThemeUnset), ThemeSystem)
	s.SimulationDifficulty = max(s.SimulationDifficulty, 0)
	return s
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	AudioVolume          *float64 `json:"audio_volume"`
	HapticIntensity      *float64 `json:"haptic_intensity"`
	FontSize             *float64 `json:"font_size"`
	UITheme              *int     `json:"ui_theme"`
	SimulationDifficulty *int     `json:"simulation_difficulty"`
	AccessibilityMode    *bool    `json:"accessibility_mode"`
	ShowGuidance         *bool    `json:"show_guidance"`
	ColorblindAssist     *bool    `json:"colorblind_assist"`
}

// Store is a badger-backed settings store with an in-memory cache.
type Store struct {
	db  *badger.DB
	log *logrus.Entry

	mu    sync.RWMutex
	cache Settings
}

// Open opens (creating if needed) the store in dir. Keys never stored take
// their value from base.
func Open(dir string, base Settings) (*Store, error) {
	return open(badger.DefaultOptions(dir).WithLogger(nil), base)
}

// OpenInMemory opens a store that is not persisted.
func OpenInMemory(base Settings) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil), base)
}

func open(opts badger.Options, base Settings) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	s := &Store{
		db:  db,
		log: logrus.WithField("component", "settings"),
	}
	if err := s.load(base); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}

// Volume returns the stored audio volume in [0, 1].
func (s *Store) Volume() float64 {
	return s.Get().AudioVolume
}

// Update applies a patch, clamping values to their ranges, and persists the
// changed keys. Returns the resulting settings.
func (s *Store) Update(p Patch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cache
	changed := map[string]any{}

	if p.AudioVolume != nil {
		next.AudioVolume = clamp(*p.AudioVolume, 0, 1)
		changed[keyAudioVolume] = next.AudioVolume
	}
	if p.HapticIntensity != nil {
		next.HapticIntensity = clamp(*p.HapticIntensity, 0, 1)
		changed[keyHapticIntensity] = next.HapticIntensity
	}
	if p.FontSize != nil {
		next.FontSize = math.Round(clamp(*p.FontSize, 16, 30))
		changed[keyFontSize] = next.FontSize
	}
	if p.UITheme != nil {
		next.UITheme = min(max(*p.UITheme, ThemeUnset), ThemeSystem)
		changed[keyUITheme] = next.UITheme
	}
	if p.SimulationDifficulty != nil {
		next.SimulationDifficulty = max(*p.SimulationDifficulty, 0)
		changed[keySimulationDifficulty] = next.SimulationDifficulty
	}
	if p.AccessibilityMode != nil {
		next.AccessibilityMode = *p.AccessibilityMode
		changed[keyAccessibilityMode] = next.AccessibilityMode
	}
	if p.ShowGuidance != nil {
		next.ShowGuidance = *p.ShowGuidance
		changed[keyShowGuidance] = next.ShowGuidance
	}
	if p.ColorblindAssist != nil {
		next.ColorblindAssist = *p.ColorblindAssist
		changed[keyColorblindAssist] = next.ColorblindAssist
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for key, value := range changed {
			data, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", key, err)
			}
			if err := txn.Set([]byte(key), data); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return s.cache, fmt.Errorf("save settings: %w", err)
	}

	s.cache = next
	if p.AudioVolume != nil && next.VolumeWarning() {
		s.log.WithField("volume", next.AudioVolume).Warn("Audio volume above hearing-safety threshold")
	}
	return next, nil
}

// load fills the cache from the database, falling back to base for
// missing or unreadable keys. The result is clamped, so an out-of-range base
// never reaches the cache.
func (s *Store) load(base Settings) error {
	cfg := base
	targets := map[string]any{
		keyAudioVolume:          &cfg.AudioVolume,
		keyHapticIntensity:      &cfg.HapticIntensity,
		keyFontSize:             &cfg.FontSize,
		keyUITheme:              &cfg.UITheme,
		keySimulationDifficulty: &cfg.SimulationDifficulty,
		keyAccessibilityMode:    &cfg.AccessibilityMode,
		keyShowGuidance:         &cfg.ShowGuidance,
		keyColorblindAssist:     &cfg.ColorblindAssist,
	}

	err := s.db.View(func(txn *badger.Txn) error {
		for key, dst := range targets {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", key, err)
			}
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, dst)
			})
			if err != nil {
				s.log.WithError(err).WithField("key", key).Warn("Ignoring unreadable setting")
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	s.mu.Lock()
	s.cache = cfg.Clamped()
	s.mu.Unlock()
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
