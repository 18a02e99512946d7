package align

// This file implements script-aware word segmentation. Space-delimited
// scripts split on whitespace only; CJK text, which carries no spaces, is
// split at script transitions, script-internal punctuation, and a fixed
// length cap so that highlighting stays granular in unsegmented runs.

import (
	"unicode"
	"unicode/utf8"
)

// maxCJKSegment caps how many characters a CJK segment accumulates before a
// boundary is forced.
const maxCJKSegment = 3

// scriptClass is the coarse script bucket a character belongs to.
type scriptClass int

const (
	classOther scriptClass = iota
	classHiragana
	classKatakana
	classKanji
	classFullwidth
)

// classOf buckets a rune into its script class.
func classOf(r rune) scriptClass {
	switch {
	case r >= 0x3040 && r <= 0x309F:
		return classHiragana
	case (r >= 0x30A0 && r <= 0x30FF) || (r >= 0x31F0 && r <= 0x31FF):
		return classKatakana
	case (r >= 0x4E00 && r <= 0x9FFF) || (r >= 0x3400 && r <= 0x4DBF):
		return classKanji
	case r >= 0xFF00 && r <= 0xFFEF:
		return classFullwidth
	default:
		return classOther
	}
}

// cjkPunct reports whether r is script-internal CJK punctuation such as
// 、。！？ or their full-width forms. The ideographic space U+3000 is
// excluded; it counts as whitespace.
func cjkPunct(r rune) bool {
	return r >= 0x3000 && r <= 0xFFEF && (unicode.IsPunct(r) || unicode.IsSymbol(r))
}

// breaksBefore reports whether a boundary separates a character of class
// next from a preceding character of class prev. Any script transition
// breaks except Kanji followed by Hiragana, which is typically a stem plus
// its okurigana and reads as one word.
func breaksBefore(prev, next scriptClass) bool {
	if prev == next {
		return false
	}
	if prev == classKanji && next == classHiragana {
		return false
	}
	return true
}

// boundaries splits a character sequence into word segments, returned as
// half-open [start, end) index ranges. Whitespace characters belong to no
// segment.
func boundaries(chars []string) [][2]int {
	var ranges [][2]int

	start := -1 // index of the current segment's first char, -1 when none
	count := 0  // chars accumulated in the current segment
	prev := classOther

	flush := func(end int) {
		if start >= 0 {
			ranges = append(ranges, [2]int{start, end})
			start = -1
			count = 0
		}
	}

	for i, ch := range chars {
		r, _ := utf8.DecodeRuneInString(ch)
		if ch == "" || unicode.IsSpace(r) {
			flush(i)
			continue
		}

		c := classOf(r)
		if start >= 0 && breaksBefore(prev, c) {
			flush(i)
		}
		if start < 0 {
			start = i
		}
		count++
		prev = c

		if cjkPunct(r) || (c != classOther && count >= maxCJKSegment) {
			flush(i + 1)
		}
	}
	flush(len(chars))
	return ranges
}

// Segments splits plain text into the same word segments the alignment
// converter would produce for it. The playback layer uses this to count
// words when no per-character timing exists and highlighting has to be
// interpolated.
func Segments(text string) []string {
	runes := []rune(text)
	chars := make([]string, len(runes))
	for i, r := range runes {
		chars[i] = string(r)
	}

	ranges := boundaries(chars)
	out := make([]string, 0, len(ranges))
	for _, rg := range ranges {
		out = append(out, string(runes[rg[0]:rg[1]]))
	}
	return out
}
