package script

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// dialogueRe matches a speaker-attributed dialogue line: a speaker name,
// a colon, then the spoken text.
var dialogueRe = regexp.MustCompile(`^([^:]+):\s*(.+)$`)

// ParseScene splits unstructured scene content into speaker-tagged lines.
//
// Each newline-delimited, non-empty line either matches the dialogue shape
// "Name: text" and is attributed to Name, or is treated as narration. Voice
// resolution never fails: a line whose speaker resolves to no voice simply
// has IsSpoken=false and is displayed without audio.
func ParseScene(content string, resolver *Resolver) []Line {
	var lines []Line
	for _, raw := range strings.Split(content, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}

		speaker := NarratorName
		if m := dialogueRe.FindStringSubmatch(text); m != nil {
			speaker = strings.TrimSpace(m[1])
			text = strings.TrimSpace(m[2])
		}
		lines = append(lines, newLine(text, speaker, resolver))
	}
	return lines
}

// ParseBeat produces the lines for one beat. Explicit parts are used
// verbatim; otherwise the whole beat text becomes a single narrator line.
// No speaker inference happens inside beat text.
func ParseBeat(beat Beat, resolver *Resolver) []Line {
	if len(beat.Parts) > 0 {
		lines := make([]Line, 0, len(beat.Parts))
		for _, part := range beat.Parts {
			speaker := strings.TrimSpace(part.Speaker)
			if speaker == "" {
				speaker = NarratorName
			}
			lines = append(lines, newLine(strings.TrimSpace(part.Text), speaker, resolver))
		}
		return lines
	}

	text := strings.TrimSpace(beat.Text)
	if text == "" {
		return nil
	}
	return []Line{newLine(text, NarratorName, resolver)}
}

// newLine builds a Line, resolving the voice only for non-empty text.
func newLine(text, speaker string, resolver *Resolver) Line {
	line := Line{
		ID:      uuid.NewString(),
		Text:    text,
		Speaker: speaker,
	}
	if text != "" && resolver != nil {
		line.VoiceID = resolver.Resolve(speaker)
		line.IsSpoken = line.VoiceID != ""
	}
	return line
}
