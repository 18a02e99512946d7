// Package align converts raw provider alignment payloads into word-level
// timing segments for highlight scheduling.
//
// The converter is pure and deterministic: the same raw payload always
// yields the same segments, and no global state is touched. This matters
// because the output feeds a real-time scheduler — conversion happens every
// time a line's audio is obtained, fresh or cached, and must be repeatable.
//
// Malformed payloads (mismatched array lengths, nil input) yield an empty
// result, never an error. The playback layer treats an empty result as "no
// timing available" and falls back to interpolated highlighting.
package align

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sversen/novella/pkg/speech"
)

// WordTimestamp is one highlightable segment of a spoken line.
//
// For any converted list, StartMS is non-decreasing across segments and
// EndMS >= StartMS within each segment. Segments partition the clip but are
// not necessarily contiguous (inter-word silence belongs to no segment).
type WordTimestamp struct {
	// Word is the segment text as spoken, including trailing punctuation.
	Word string

	// StartMS is the start of the segment's first character, in
	// milliseconds from clip start.
	StartMS int64

	// EndMS is the end of the segment's last character.
	EndMS int64
}

// ToWordTimestamps converts a raw alignment payload into ordered word
// timing segments.
//
// Character-synchronised payloads are validated first: the three parallel
// arrays must have equal lengths, otherwise the payload is discarded and
// nil is returned. Legacy word-array payloads map one entry to one segment.
// A nil or empty payload returns nil.
func ToWordTimestamps(raw *speech.RawAlignment) []WordTimestamp {
	if raw == nil {
		return nil
	}
	if len(raw.Characters) > 0 {
		return fromCharacters(raw)
	}
	if len(raw.Legacy) > 0 {
		return fromLegacy(raw.Legacy)
	}
	return nil
}

// fromCharacters segments a character-synchronised payload into words using
// the script-aware rules in segment.go. Each segment takes the start time
// of its first character and the end time of its last.
func fromCharacters(raw *speech.RawAlignment) []WordTimestamp {
	n := len(raw.Characters)
	if len(raw.CharStart) != n || len(raw.CharEnd) != n {
		return nil
	}

	ranges := boundaries(raw.Characters)
	out := make([]WordTimestamp, 0, len(ranges))
	for _, rg := range ranges {
		first, last := rg[0], rg[1]-1
		out = append(out, WordTimestamp{
			Word:    strings.Join(raw.Characters[first:last+1], ""),
			StartMS: toMillis(raw.CharStart[first]),
			EndMS:   toMillis(raw.CharEnd[last]),
		})
	}
	return out
}

// fromLegacy maps pre-segmented word entries directly to segments.
func fromLegacy(words []speech.LegacyWord) []WordTimestamp {
	out := make([]WordTimestamp, 0, len(words))
	for _, w := range words {
		out = append(out, WordTimestamp{
			Word:    w.Word,
			StartMS: toMillis(w.Start),
			EndMS:   toMillis(w.End),
		})
	}
	return out
}

// toMillis converts provider seconds to integer milliseconds, rounding half
// away from zero. Going through decimal keeps values like 0.615 from landing
// on the wrong side of the boundary after float multiplication.
func toMillis(seconds float64) int64 {
	return decimal.NewFromFloat(seconds).Mul(decimal.NewFromInt(1000)).Round(0).IntPart()
}
