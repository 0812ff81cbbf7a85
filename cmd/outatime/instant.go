package main

import (
	"strings"
	"time"

	"github.com/envato-archive/outatime/errors"
)

// instantLayouts are tried in order; all but RFC3339 are read in the local zone.
var instantLayouts = []string{
	time.RFC3339Nano,
	time.DateTime,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// parseInstant turns a --from value into an instant. "now" yields now.
func parseInstant(value string, now time.Time, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "now") {
		return now, nil
	}

	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.NewError("parseInstant", errors.ErrInvalidInstant).
		WithMessage("cannot parse " + `"` + value + `"`)
}
