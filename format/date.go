package format

import (
	"fmt"
	"strings"
	"time"
)

// cmsLayout is the timestamp form the content API emits, e.g.
// 2021-03-15T19:25:28+0000.
const cmsLayout = "2006-01-02T15:04:05-0700"

var dateLayouts = []string{time.RFC3339, cmsLayout, "2006-01-02"}

// FormatError reports a timestamp that could not be parsed.
type FormatError struct {
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format: unparseable date %q", e.Input)
}

// ParseTimestamp parses the timestamp shapes the content API produces.
func ParseTimestamp(ts string) (time.Time, error) {
	s := strings.TrimSpace(ts)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &FormatError{Input: ts}
}

// DisplayDate renders ts as "dd Mon yyyy" using loc's month abbreviations.
// The date is taken in UTC.
func DisplayDate(ts string, loc Locale) (string, error) {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return "", err
	}
	t = t.UTC()
	return fmt.Sprintf("%02d %s %d", t.Day(), loc.Months[t.Month()-1], t.Year()), nil
}
