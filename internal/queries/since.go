package queries

import (
	"time"

	"github.com/olebedev/when"

	"github.com/skillmeat/skillmeat/internal/types"
)

// sinceLayouts are tried before handing the string to the natural
// language parser, so unambiguous dates never depend on it.
var sinceLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	time.RFC3339,
}

// ParseSince turns a --deployed-since argument into a cutoff time.
// Accepts absolute dates first, then natural language ("yesterday",
// "last friday", "3 days ago") relative to now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	for _, layout := range sinceLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}

	r, err := when.EN.Parse(s, now)
	if err != nil || r == nil {
		return time.Time{}, types.NewDetailError(types.KindValidation, "queries.ParseSince", "bad_since",
			"cannot interpret %q as a date", s)
	}
	return r.Time, nil
}
