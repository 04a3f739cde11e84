package tour

import "github.com/satindergrewal/earshot/internal/graph"

// Chapter is one step of the guided simulation. Each chapter plays the
// recording through one simulation mode.
type Chapter struct {
	Title     string     `json:"title"`
	Narrative string     `json:"narrative"`
	Warning   string     `json:"warning,omitempty"`
	Mode      graph.Mode `json:"mode"`
}

// Chapters is the guided sequence, in order.
var Chapters = []Chapter{
	{
		Title:     "Chapter 1: Normal Hearing",
		Narrative: "Begin your journey with pristine audio clarity. This recording creates our baseline, capturing the full spectrum of sound as nature intended: every whisper, every subtle detail in perfect fidelity.",
		Mode:      graph.Normal,
	},
	{
		Title:     "Chapter 2: Sudden Hearing Loss",
		Narrative: "Experience the unsettling reality of intermittent hearing loss. Notice how sounds fade unexpectedly, creating moments of silence that can be both confusing and disorienting.",
		Mode:      graph.SuddenLoss,
	},
	{
		Title:     "Chapter 3: Presbycusis",
		Narrative: "Step into the world of age-related hearing loss. High frequencies become distant memories, while conversations transform into a challenge of understanding through muffled tones.",
		Mode:      graph.Presbycusis,
	},
	{
		Title:     "Chapter 4: Tinnitus",
		Narrative: "Discover the persistent companion of millions: the eternal whistle of tinnitus. This simulation reveals how a constant internal sound can overlay every moment of daily life.",
		Warning:   "High-pitched frequencies can lead to lasting ear damage after frequent or prolonged use. Please exercise caution.",
		Mode:      graph.Tinnitus,
	},
}
