package appointment

import (
	"strings"
	"time"
)

// searchDateLayouts are the date forms accepted by the staff listing search.
var searchDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
}

// ParseSearchDate interprets a search term as a calendar date. It accepts
// dd/mm/yyyy, d-m-yyyy and yyyy-mm-dd input forms; anything else is not a
// date and should be matched against names instead.
func ParseSearchDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range searchDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
