package script

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultFuzzyThreshold is the minimum Jaro-Winkler similarity for a speaker
// name to match a character entry when no exact or case-insensitive match
// exists. Tight enough that only typos match, not different characters.
const defaultFuzzyThreshold = 0.85

// VoiceAssignment binds a character to a voice and an optional portrait.
type VoiceAssignment struct {
	// VoiceID is the provider voice used for this character's lines.
	VoiceID string

	// ImageRef is an optional media id for the character's portrait.
	ImageRef string
}

// VoiceTable maps character names to their voice assignments. It is a
// read-only snapshot taken when the player opens.
type VoiceTable map[string]VoiceAssignment

// NarratorChain is the ordered voice preference used when no explicit
// character voice applies: language-specific narrator voice, then the
// global narrator voice, then the default voice.
type NarratorChain struct {
	// ByLanguage maps a language code (e.g. "es") to a narrator voice.
	ByLanguage map[string]string

	// Global is the narrator voice used when ByLanguage has no entry for
	// the active language.
	Global string

	// Default is the last-resort voice for any speaker without a better
	// match. Empty means such lines stay unspoken.
	Default string
}

// ResolverOption is a functional option for configuring a [Resolver].
type ResolverOption func(*Resolver)

// WithFuzzyThreshold overrides the Jaro-Winkler threshold for fuzzy speaker
// matching. Default: 0.85.
func WithFuzzyThreshold(threshold float64) ResolverOption {
	return func(r *Resolver) {
		r.fuzzyThreshold = threshold
	}
}

// Resolver maps speaker names to voice ids. It is read-only after
// construction and safe for concurrent use.
type Resolver struct {
	table          VoiceTable
	narrator       NarratorChain
	language       string
	fuzzyThreshold float64
}

// NewResolver builds a Resolver for one player session. table and chain are
// snapshots; later mutations by the caller are not observed.
func NewResolver(table VoiceTable, chain NarratorChain, language string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		table:          table,
		narrator:       chain,
		language:       language,
		fuzzyThreshold: defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the voice id for speaker, or "" when no voice applies.
//
// Resolution order: exact table match, case-insensitive table match, fuzzy
// table match, then the narrator chain for the narrator speaker or the
// default voice for anyone else.
func (r *Resolver) Resolve(speaker string) string {
	if a, ok := r.table[speaker]; ok && a.VoiceID != "" {
		return a.VoiceID
	}

	for name, a := range r.table {
		if a.VoiceID != "" && strings.EqualFold(name, speaker) {
			return a.VoiceID
		}
	}

	if v := r.fuzzyMatch(speaker); v != "" {
		return v
	}

	if speaker == NarratorName {
		if v, ok := r.narrator.ByLanguage[r.language]; ok && v != "" {
			return v
		}
		if r.narrator.Global != "" {
			return r.narrator.Global
		}
	}
	return r.narrator.Default
}

// fuzzyMatch returns the voice of the closest character name scoring at or
// above the fuzzy threshold, "" when none qualifies.
func (r *Resolver) fuzzyMatch(speaker string) string {
	lower := strings.ToLower(speaker)
	best := ""
	bestScore := r.fuzzyThreshold
	for name, a := range r.table {
		if a.VoiceID == "" {
			continue
		}
		score := matchr.JaroWinkler(lower, strings.ToLower(name), false)
		if score >= bestScore {
			best = a.VoiceID
			bestScore = score
		}
	}
	return best
}
