package consent

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func boolPtr(b bool) *bool { return &b }

// TestMerge_NecessaryAlwaysTrue verifies every partial yields necessary=true.
func TestMerge_NecessaryAlwaysTrue(t *testing.T) {
	partials := []Partial{
		{},
		{Analytics: boolPtr(true)},
		{Marketing: boolPtr(false), YouTubeVideos: boolPtr(true)},
		PartialOf(AcceptAll()),
		PartialOf(Decision{}),
	}
	for i, p := range partials {
		if d := Merge(p); !d.Necessary {
			t.Errorf("partial %d: expected necessary=true", i)
		}
	}
}

// TestMerge_OmittedCategoriesDenied verifies omitted keys resolve to false.
func TestMerge_OmittedCategoriesDenied(t *testing.T) {
	d := Merge(Partial{Analytics: boolPtr(true)})
	if !d.Analytics {
		t.Error("expected analytics granted")
	}
	if d.Marketing || d.YouTubeVideos {
		t.Errorf("expected omitted categories denied, got %+v", d)
	}
	if Merge(Partial{}) != DefaultDeny() {
		t.Error("expected empty partial to equal default-deny")
	}
}

// TestGrant_OnlyThatCategory verifies Grant grants exactly one category.
func TestGrant_OnlyThatCategory(t *testing.T) {
	p, err := Grant(CategoryYouTubeVideos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Decision{Necessary: true, YouTubeVideos: true}
	if got := Merge(p); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if _, err := Grant("necessary"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

// TestParseCategory verifies known and unknown category names.
func TestParseCategory(t *testing.T) {
	if c, err := ParseCategory("marketing"); err != nil || c != CategoryMarketing {
		t.Errorf("ParseCategory(marketing) = %q, %v", c, err)
	}
	if _, err := ParseCategory("vendors"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

// TestDecision_UnmarshalForcesNecessary verifies decoding cannot switch necessary off.
func TestDecision_UnmarshalForcesNecessary(t *testing.T) {
	var d Decision
	if err := json.Unmarshal([]byte(`{"necessary":false,"analytics":true}`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Necessary || !d.Analytics || d.Marketing {
		t.Errorf("unexpected decision %+v", d)
	}
}

// TestPersistedRecord_RoundTrip verifies a record decodes back to the same choice.
func TestPersistedRecord_RoundTrip(t *testing.T) {
	saved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := PersistedRecord{Decision: Decision{Analytics: true, YouTubeVideos: true}, SavedAt: saved}
	b, err := rec.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRecord(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Decision{Necessary: true, Analytics: true, YouTubeVideos: true}
	if got.Decision != want {
		t.Errorf("decision = %+v, want %+v", got.Decision, want)
	}
	if !got.SavedAt.Equal(saved) {
		t.Errorf("savedAt = %v, want %v", got.SavedAt, saved)
	}
}

// TestDecodeRecord_Malformed verifies bad local content is rejected.
func TestDecodeRecord_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `{{{`,
		"array":           `[true,false]`,
		"null":            `null`,
		"missing field":   `{"analytics":true,"marketing":false}`,
		"string boolean":  `{"analytics":"yes","marketing":false,"youtubeVideos":false}`,
		"number category": `{"analytics":1,"marketing":false,"youtubeVideos":false}`,
	}
	for name, raw := range cases {
		if _, err := DecodeRecord([]byte(raw)); !errors.Is(err, ErrMalformedRecord) {
			t.Errorf("%s: expected ErrMalformedRecord, got %v", name, err)
		}
	}
}

// TestVisitorRecord_CurrentFor verifies policy version comparison.
func TestVisitorRecord_CurrentFor(t *testing.T) {
	r, err := NewVisitorRecord("v-1", Decision{Analytics: true}, "2026-01", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Decision.Necessary {
		t.Error("expected normalized decision")
	}
	if !r.CurrentFor("2026-01") || r.CurrentFor("2026-06") {
		t.Error("unexpected policy version result")
	}
	if _, err := NewVisitorRecord("", DefaultDeny(), "", time.Now()); !errors.Is(err, ErrEmptyVisitor) {
		t.Errorf("expected ErrEmptyVisitor, got %v", err)
	}
}

// TestEvent_Validate verifies audit event validation.
func TestEvent_Validate(t *testing.T) {
	e := Event{ID: "e1", VisitorID: "v1", Action: ActionSave, RecordedAt: time.Now()}
	if err := e.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.Action = "erase"
	if err := e.Validate(); err == nil {
		t.Error("expected error for invalid action")
	}
}
