package script

import (
	"strings"
	"testing"
)

func testResolver(lang string) *Resolver {
	return NewResolver(
		VoiceTable{
			"Mira":    {VoiceID: "voice-mira"},
			"Old Tom": {VoiceID: "voice-tom"},
		},
		NarratorChain{
			ByLanguage: map[string]string{"en": "voice-narrator-en"},
			Global:     "voice-narrator",
			Default:    "voice-default",
		},
		lang,
	)
}

func TestParseScene_DialogueAndNarration(t *testing.T) {
	t.Parallel()

	content := "Mira: Did you hear that?\n\nA wave crashes against the rocks.\nOld Tom: Just the sea, lass.\n"
	lines := ParseScene(content, testResolver("en"))

	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}

	if lines[0].Speaker != "Mira" || lines[0].Text != "Did you hear that?" {
		t.Errorf("line 0 = %q/%q, want Mira dialogue", lines[0].Speaker, lines[0].Text)
	}
	if lines[0].VoiceID != "voice-mira" || !lines[0].IsSpoken {
		t.Errorf("line 0 voice = %q spoken=%v, want voice-mira spoken", lines[0].VoiceID, lines[0].IsSpoken)
	}

	if lines[1].Speaker != NarratorName {
		t.Errorf("line 1 speaker = %q, want %q", lines[1].Speaker, NarratorName)
	}
	if lines[1].VoiceID != "voice-narrator-en" {
		t.Errorf("line 1 voice = %q, want language narrator voice", lines[1].VoiceID)
	}

	if lines[2].Speaker != "Old Tom" || lines[2].VoiceID != "voice-tom" {
		t.Errorf("line 2 = %q/%q, want Old Tom with voice-tom", lines[2].Speaker, lines[2].VoiceID)
	}

	for i, l := range lines {
		if l.ID == "" {
			t.Errorf("line %d has empty id", i)
		}
	}
}

func TestParseScene_UnknownSpeakerGetsDefaultVoice(t *testing.T) {
	t.Parallel()

	lines := ParseScene("Stranger: Who goes there?", testResolver("en"))
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0].VoiceID != "voice-default" {
		t.Errorf("voice = %q, want default fallback", lines[0].VoiceID)
	}
	if !lines[0].IsSpoken {
		t.Error("line with default voice should be spoken")
	}
}

func TestParseScene_NoVoiceMeansUnspoken(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(VoiceTable{}, NarratorChain{}, "en")
	lines := ParseScene("Stranger: Who goes there?", resolver)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0].IsSpoken {
		t.Error("line without any resolvable voice must not be spoken")
	}
	if lines[0].VoiceID != "" {
		t.Errorf("voice = %q, want empty", lines[0].VoiceID)
	}
}

func TestResolver_NarratorChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		chain NarratorChain
		lang  string
		want  string
	}{
		{
			name:  "language narrator wins over global",
			chain: NarratorChain{ByLanguage: map[string]string{"es": "voice-es"}, Global: "voice-global"},
			lang:  "es",
			want:  "voice-es",
		},
		{
			name:  "global narrator when language missing",
			chain: NarratorChain{ByLanguage: map[string]string{"en": "voice-en"}, Global: "voice-global"},
			lang:  "es",
			want:  "voice-global",
		},
		{
			name:  "default when no narrator voices",
			chain: NarratorChain{Default: "voice-default"},
			lang:  "es",
			want:  "voice-default",
		},
		{
			name:  "nothing set resolves to nothing",
			chain: NarratorChain{},
			lang:  "es",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewResolver(VoiceTable{}, tt.chain, tt.lang)
			if got := r.Resolve(NarratorName); got != tt.want {
				t.Errorf("Resolve(Narrator) = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolver_MatchTiers(t *testing.T) {
	t.Parallel()

	r := NewResolver(
		VoiceTable{"Evangeline": {VoiceID: "voice-eva"}},
		NarratorChain{Default: "voice-default"},
		"en",
	)

	if got := r.Resolve("Evangeline"); got != "voice-eva" {
		t.Errorf("exact match = %q, want voice-eva", got)
	}
	if got := r.Resolve("EVANGELINE"); got != "voice-eva" {
		t.Errorf("case-insensitive match = %q, want voice-eva", got)
	}
	// One transposition away — recovered by the fuzzy tier.
	if got := r.Resolve("Evangelien"); got != "voice-eva" {
		t.Errorf("fuzzy match = %q, want voice-eva", got)
	}
	// A different name entirely falls through to the default.
	if got := r.Resolve("Bartholomew"); got != "voice-default" {
		t.Errorf("unrelated name = %q, want voice-default", got)
	}
}

func TestParseBeat_PartsVerbatim(t *testing.T) {
	t.Parallel()

	beat := Beat{
		ID: "b1",
		Parts: []BeatPart{
			{Speaker: "Mira", Text: "Look out!"},
			{Speaker: "", Text: "The lantern gutters."},
		},
	}
	lines := ParseBeat(beat, testResolver("en"))

	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Speaker != "Mira" {
		t.Errorf("part 0 speaker = %q, want Mira", lines[0].Speaker)
	}
	if lines[1].Speaker != NarratorName {
		t.Errorf("empty part speaker = %q, want narrator", lines[1].Speaker)
	}
}

func TestParseBeat_WholeTextIsNarration(t *testing.T) {
	t.Parallel()

	// Beat text never goes through speaker inference, even when it looks
	// like dialogue.
	beat := Beat{ID: "b1", Text: "Mira: this colon stays in the text."}
	lines := ParseBeat(beat, testResolver("en"))

	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0].Speaker != NarratorName {
		t.Errorf("speaker = %q, want narrator", lines[0].Speaker)
	}
	if lines[0].Text != "Mira: this colon stays in the text." {
		t.Errorf("text = %q, want beat text verbatim", lines[0].Text)
	}
}

func TestLoadStory_Validation(t *testing.T) {
	t.Parallel()

	const valid = `
story:
  title: "Test"
  start: intro
  language: en
scenes:
  - id: intro
    content: "Mira: hello"
    choices:
      - id: c1
        target: end
        label: "Onward"
  - id: end
    beats:
      - id: b2
        order: 2
        text: "Later."
      - id: b1
        order: 1
        text: "First."
`
	story, err := LoadStoryFromReader(strings.NewReader(valid))
	if err != nil {
		t.Fatalf("LoadStoryFromReader() error: %v", err)
	}

	scene, ok := story.Scene("end")
	if !ok {
		t.Fatal("scene \"end\" not found")
	}
	if scene.Beats[0].ID != "b1" || scene.Beats[1].ID != "b2" {
		t.Errorf("beats not ordered by Order field: %q, %q", scene.Beats[0].ID, scene.Beats[1].ID)
	}

	if _, ok := story.StartScene(); !ok {
		t.Error("StartScene() did not find the start scene")
	}

	const badTarget = `
story:
  start: intro
scenes:
  - id: intro
    choices:
      - id: c1
        target: nowhere
`
	if _, err := LoadStoryFromReader(strings.NewReader(badTarget)); err == nil {
		t.Error("expected error for choice targeting unknown scene")
	}
}
