package playback

import "github.com/sversen/novella/internal/script"

// State is the playback state machine's current phase.
type State int

const (
	// StateIdle means no scene is loaded.
	StateIdle State = iota

	// StateLineActive means a line is displayed and waiting to be played
	// or advanced past.
	StateLineActive

	// StateGenerating means fresh audio synthesis is in flight for the
	// current line.
	StateGenerating

	// StateCacheHit means cached audio was found and playback is starting.
	StateCacheHit

	// StatePlaying means audio for the current line is playing.
	StatePlaying

	// StateEnded means the current line's audio finished. Advancement is
	// manual from here.
	StateEnded

	// StateChoicesShown means the scene is exhausted and multiple outgoing
	// choices await the player's pick.
	StateChoicesShown

	// StateSceneEnded means the scene is exhausted with no outgoing choices.
	StateSceneEnded
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLineActive:
		return "line-active"
	case StateGenerating:
		return "generating"
	case StateCacheHit:
		return "cache-hit"
	case StatePlaying:
		return "playing"
	case StateEnded:
		return "ended"
	case StateChoicesShown:
		return "choices-shown"
	case StateSceneEnded:
		return "scene-ended"
	}
	return "unknown"
}

// AudioSource identifies where the current line's audio came from.
type AudioSource string

const (
	// SourceNone means no audio is associated with the current line.
	SourceNone AudioSource = ""

	// SourceCache means the audio was recovered from the cache ladder.
	SourceCache AudioSource = "cache"

	// SourceFresh means the audio was synthesised by the provider.
	SourceFresh AudioSource = "fresh"
)

// Snapshot is a point-in-time copy of the controller's observable state.
// It is safe to retain: slices are copies.
type Snapshot struct {
	State       State
	SceneID     string
	BeatIndex   int
	LineIndex   int
	Lines       []script.Line
	Choices     []script.Choice
	AudioSource AudioSource
	AudioError  string
	WordIndex   int
	Locked      bool
}

// CurrentLine returns the active line, or a zero Line when none exists.
func (s Snapshot) CurrentLine() (script.Line, bool) {
	if s.LineIndex < 0 || s.LineIndex >= len(s.Lines) {
		return script.Line{}, false
	}
	return s.Lines[s.LineIndex], true
}
