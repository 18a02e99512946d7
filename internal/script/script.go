// Package script holds the authored story model consumed read-only by the
// playback core, and the content parser that turns scene text or beat parts
// into speaker-tagged, voice-resolved lines.
package script

// Scene is one node of the story graph. Either Content carries unstructured
// scene text, or Beats subdivides the scene into ordered steps. Choices are
// the outgoing edges followed when the scene ends.
type Scene struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	Content string   `yaml:"content"`
	Beats   []Beat   `yaml:"beats"`
	Choices []Choice `yaml:"choices"`
}

// Beat is a single authored step of a subdivided scene. When Parts is
// non-empty the beat text is pre-split into speaker/text pairs; otherwise
// Text is treated as one narrator line.
type Beat struct {
	ID       string     `yaml:"id"`
	Order    int        `yaml:"order"`
	Text     string     `yaml:"text"`
	Parts    []BeatPart `yaml:"parts"`
	ImageRef string     `yaml:"image"`
	VideoRef string     `yaml:"video"`
}

// BeatPart is one pre-split speaker/text pair within a beat.
type BeatPart struct {
	Speaker string `yaml:"speaker"`
	Text    string `yaml:"text"`
}

// Choice is an outgoing edge of a scene.
type Choice struct {
	ID     string `yaml:"id"`
	Target string `yaml:"target"`
	Label  string `yaml:"label"`
}

// Line is the speaker-tagged unit of content playback operates on. Lines are
// immutable once produced for a scene or beat visit and replaced wholesale
// when the active beat or scene changes.
type Line struct {
	// ID identifies this line for the duration of the visit.
	ID string

	// Text is the spoken/displayed content.
	Text string

	// Speaker is the attributed character name, "Narrator" for narration.
	Speaker string

	// VoiceID is the resolved voice, empty when no voice applies.
	VoiceID string

	// IsSpoken holds iff Text is non-empty and a voice was resolved.
	IsSpoken bool
}

// NarratorName is the speaker attributed to non-dialogue scene text.
const NarratorName = "Narrator"
