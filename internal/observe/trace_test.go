package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestStartLineSpan_TagsStoryPosition(t *testing.T) {
	_, _, exp := testSetup(t)

	_, span := StartLineSpan(context.Background(), "shore", "b2", "Eva")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	got := spans[0]
	if got.Name != "playback.line" {
		t.Errorf("span name = %q, want playback.line", got.Name)
	}

	want := map[attribute.Key]string{
		AttrScene:   "shore",
		AttrBeat:    "b2",
		AttrSpeaker: "Eva",
	}
	found := map[attribute.Key]string{}
	for _, kv := range got.Attributes {
		found[kv.Key] = kv.Value.AsString()
	}
	for k, v := range want {
		if found[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, found[k], v)
		}
	}
}
