package consent

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StorageKey is the local persistence slot that holds a PersistedRecord.
const StorageKey = "sm_cookie_consent_v1"

// Category names an optional consent category.
type Category string

const (
	CategoryAnalytics     Category = "analytics"
	CategoryMarketing     Category = "marketing"
	CategoryYouTubeVideos Category = "youtubeVideos"
)

// Categories lists every optional category in display order.
var Categories = []Category{CategoryAnalytics, CategoryMarketing, CategoryYouTubeVideos}

// ErrUnknownCategory is returned when a category name is not one of Categories.
var ErrUnknownCategory = errors.New("unknown consent category")

// ErrMalformedRecord is returned when persisted consent cannot be decoded.
var ErrMalformedRecord = errors.New("malformed consent record")

// ParseCategory validates a category name.
// PRE: none
// POST: Returns the category or ErrUnknownCategory
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Decision is the canonical record of a visitor's choice.
// INVARIANT: Necessary is always true
type Decision struct {
	Necessary     bool `json:"necessary"`
	Analytics     bool `json:"analytics"`
	Marketing     bool `json:"marketing"`
	YouTubeVideos bool `json:"youtubeVideos"`
}

// DefaultDeny returns the baseline decision with every optional category denied.
func DefaultDeny() Decision {
	return Decision{Necessary: true}
}

// AcceptAll returns the decision granting every category.
func AcceptAll() Decision {
	return Decision{Necessary: true, Analytics: true, Marketing: true, YouTubeVideos: true}
}

// Granted reports whether the given category is allowed.
// PRE: c is one of Categories
// POST: Returns false for unknown categories
func (d Decision) Granted(c Category) bool {
	switch c {
	case CategoryAnalytics:
		return d.Analytics
	case CategoryMarketing:
		return d.Marketing
	case CategoryYouTubeVideos:
		return d.YouTubeVideos
	}
	return false
}

// Normalize forces Necessary on.
func (d Decision) Normalize() Decision {
	d.Necessary = true
	return d
}

// UnmarshalJSON decodes a decision and forces Necessary on whatever the input says.
func (d *Decision) UnmarshalJSON(b []byte) error {
	type plain Decision
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = Decision(p).Normalize()
	return nil
}

// Partial is a possibly incomplete restatement of consent. Nil fields are omitted.
type Partial struct {
	Analytics     *bool `json:"analytics,omitempty"`
	Marketing     *bool `json:"marketing,omitempty"`
	YouTubeVideos *bool `json:"youtubeVideos,omitempty"`
}

// PartialOf returns the partial that states every category of d explicitly.
func PartialOf(d Decision) Partial {
	a, m, y := d.Analytics, d.Marketing, d.YouTubeVideos
	return Partial{Analytics: &a, Marketing: &m, YouTubeVideos: &y}
}

// Grant returns a partial that grants only the given category.
// PRE: c is one of Categories
// POST: Returns ErrUnknownCategory for anything else
func Grant(c Category) (Partial, error) {
	yes := true
	switch c {
	case CategoryAnalytics:
		return Partial{Analytics: &yes}, nil
	case CategoryMarketing:
		return Partial{Marketing: &yes}, nil
	case CategoryYouTubeVideos:
		return Partial{YouTubeVideos: &yes}, nil
	}
	return Partial{}, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
}

// Merge overlays p on the default-deny baseline. It never reads previous state:
// every commit is a full restatement and omitted categories are denied.
// POST: Necessary is true; categories absent from p are false
func Merge(p Partial) Decision {
	d := DefaultDeny()
	if p.Analytics != nil {
		d.Analytics = *p.Analytics
	}
	if p.Marketing != nil {
		d.Marketing = *p.Marketing
	}
	if p.YouTubeVideos != nil {
		d.YouTubeVideos = *p.YouTubeVideos
	}
	return d
}

// PersistedRecord is a Decision stamped with the time it was written locally.
type PersistedRecord struct {
	Decision
	SavedAt time.Time `json:"savedAt"`
}

// Encode serializes the record for the local slot.
func (r PersistedRecord) Encode() ([]byte, error) {
	r.Decision = r.Decision.Normalize()
	return json.Marshal(r)
}

// DecodeRecord parses a local slot value. Anything that is not a JSON object with
// boolean analytics, marketing and youtubeVideos fields is rejected.
// POST: Returns ErrMalformedRecord on parse failure or wrong shape
func DecodeRecord(b []byte) (PersistedRecord, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil || raw == nil {
		return PersistedRecord{}, ErrMalformedRecord
	}

	var rec PersistedRecord
	for _, c := range Categories {
		v, ok := raw[string(c)]
		if !ok {
			return PersistedRecord{}, fmt.Errorf("%w: missing %s", ErrMalformedRecord, c)
		}
		var granted bool
		if err := json.Unmarshal(v, &granted); err != nil {
			return PersistedRecord{}, fmt.Errorf("%w: %s is not a boolean", ErrMalformedRecord, c)
		}
		switch c {
		case CategoryAnalytics:
			rec.Analytics = granted
		case CategoryMarketing:
			rec.Marketing = granted
		case CategoryYouTubeVideos:
			rec.YouTubeVideos = granted
		}
	}
	rec.Decision = rec.Decision.Normalize()

	if v, ok := raw["savedAt"]; ok {
		// savedAt is informational; a bad timestamp does not invalidate the choice.
		_ = json.Unmarshal(v, &rec.SavedAt)
	}
	return rec, nil
}

// UnmarshalJSON routes through DecodeRecord so the embedded Decision decoder does
// not swallow savedAt.
func (r *PersistedRecord) UnmarshalJSON(b []byte) error {
	rec, err := DecodeRecord(b)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}
