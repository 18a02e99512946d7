package align

import (
	"reflect"
	"strings"
	"testing"
	"unicode"

	"github.com/sversen/novella/pkg/speech"
)

// charAlignment builds a character-synchronised payload where character i
// spans [i*step, (i+1)*step) seconds.
func charAlignment(text string, step float64) *speech.RawAlignment {
	runes := []rune(text)
	raw := &speech.RawAlignment{
		Characters: make([]string, len(runes)),
		CharStart:  make([]float64, len(runes)),
		CharEnd:    make([]float64, len(runes)),
	}
	for i, r := range runes {
		raw.Characters[i] = string(r)
		raw.CharStart[i] = float64(i) * step
		raw.CharEnd[i] = float64(i+1) * step
	}
	return raw
}

func TestToWordTimestamps_SpaceDelimited(t *testing.T) {
	t.Parallel()

	raw := &speech.RawAlignment{
		Characters: []string{"H", "i", " ", "B", "o", "b", "."},
		CharStart:  []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
		CharEnd:    []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7},
	}

	got := ToWordTimestamps(raw)
	want := []WordTimestamp{
		{Word: "Hi", StartMS: 0, EndMS: 200},
		{Word: "Bob.", StartMS: 300, EndMS: 700},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToWordTimestamps = %+v, want %+v", got, want)
	}
}

func TestToWordTimestamps_MismatchedLengths(t *testing.T) {
	t.Parallel()

	raw := &speech.RawAlignment{
		Characters: []string{"a", "b", "c", "d", "e"},
		CharStart:  []float64{0, 0.1, 0.2, 0.3},
		CharEnd:    []float64{0.1, 0.2, 0.3, 0.4, 0.5},
	}

	if got := ToWordTimestamps(raw); len(got) != 0 {
		t.Errorf("mismatched arrays should yield no timestamps, got %+v", got)
	}
}

func TestToWordTimestamps_NilAndEmpty(t *testing.T) {
	t.Parallel()

	if got := ToWordTimestamps(nil); got != nil {
		t.Errorf("nil payload = %+v, want nil", got)
	}
	if got := ToWordTimestamps(&speech.RawAlignment{}); got != nil {
		t.Errorf("empty payload = %+v, want nil", got)
	}
}

func TestToWordTimestamps_Legacy(t *testing.T) {
	t.Parallel()

	raw := &speech.RawAlignment{
		Legacy: []speech.LegacyWord{
			{Word: "Hello", Start: 0, End: 0.42},
			{Word: "world", Start: 0.5, End: 1.015},
		},
	}

	got := ToWordTimestamps(raw)
	want := []WordTimestamp{
		{Word: "Hello", StartMS: 0, EndMS: 420},
		{Word: "world", StartMS: 500, EndMS: 1015},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToWordTimestamps = %+v, want %+v", got, want)
	}
}

func TestToWordTimestamps_CJKRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			// Kanji stem plus okurigana does not break; the length cap
			// forces a boundary after three characters.
			name: "kanji to hiragana joins",
			text: "食べます",
			want: []string{"食べま", "す"},
		},
		{
			name: "katakana run capped at three",
			text: "カタカナ",
			want: []string{"カタカ", "ナ"},
		},
		{
			name: "hiragana to katakana breaks",
			text: "これはテスト",
			want: []string{"これは", "テスト"},
		},
		{
			name: "script-internal punctuation breaks",
			text: "はい。そう",
			want: []string{"はい", "。", "そう"},
		},
		{
			name: "latin run embedded in cjk",
			text: "答えはYes",
			want: []string{"答えは", "Yes"},
		},
		{
			name: "ideographic space is whitespace",
			text: "はい　そう",
			want: []string{"はい", "そう"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ToWordTimestamps(charAlignment(tt.text, 0.1))
			words := make([]string, len(got))
			for i, w := range got {
				words[i] = w.Word
			}
			if !reflect.DeepEqual(words, tt.want) {
				t.Errorf("segments = %v, want %v", words, tt.want)
			}
		})
	}
}

func TestToWordTimestamps_MonotonicTiming(t *testing.T) {
	t.Parallel()

	samples := []string{
		"The quick brown fox jumps over the lazy dog.",
		"こんにちは、世界。今日はいい天気ですね。",
		"Mixing English と日本語 in one line works too.",
	}

	for _, text := range samples {
		got := ToWordTimestamps(charAlignment(text, 0.08))
		for i, w := range got {
			if w.EndMS < w.StartMS {
				t.Errorf("%q: segment %d has EndMS %d < StartMS %d", text, i, w.EndMS, w.StartMS)
			}
			if i > 0 && w.StartMS < got[i-1].StartMS {
				t.Errorf("%q: segment %d StartMS %d < previous StartMS %d", text, i, w.StartMS, got[i-1].StartMS)
			}
		}
	}
}

func TestToWordTimestamps_ConservesCharacters(t *testing.T) {
	t.Parallel()

	samples := []string{
		"Hello there, General Kenobi!",
		"それは秘密です。",
		"Multi  spaced   text",
	}

	for _, text := range samples {
		got := ToWordTimestamps(charAlignment(text, 0.05))

		var joined strings.Builder
		for _, w := range got {
			joined.WriteString(w.Word)
		}
		want := strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, text)
		if joined.String() != want {
			t.Errorf("%q: joined segments = %q, want all non-whitespace characters %q", text, joined.String(), want)
		}
	}
}

func TestToWordTimestamps_Deterministic(t *testing.T) {
	t.Parallel()

	raw := charAlignment("Same input, same output. 必ず同じ。", 0.07)
	first := ToWordTimestamps(raw)
	second := ToWordTimestamps(raw)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated conversion differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestSegments_MatchesConverter(t *testing.T) {
	t.Parallel()

	text := "Word counting 数えてみる test"
	raw := charAlignment(text, 0.05)

	fromAlignment := ToWordTimestamps(raw)
	fromText := Segments(text)
	if len(fromAlignment) != len(fromText) {
		t.Fatalf("Segments produced %d words, converter produced %d", len(fromText), len(fromAlignment))
	}
	for i := range fromText {
		if fromText[i] != fromAlignment[i].Word {
			t.Errorf("segment %d: Segments = %q, converter = %q", i, fromText[i], fromAlignment[i].Word)
		}
	}
}
