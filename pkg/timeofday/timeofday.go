// Package timeofday is a wall-clock time without a date, at minute precision.
package timeofday

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// TimeOfDay counts minutes since midnight. 1440 is accepted as an end-of-day bound.
type TimeOfDay int

const EndOfDay TimeOfDay = 24 * 60

func New(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

// Parse accepts "HH:MM" (24h).
func Parse(s string) (TimeOfDay, error) {
	var h, m int
	if n, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || n != 2 || len(s) != 5 {
		return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	t := New(h, m)
	if h < 0 || m < 0 || m > 59 || !t.Valid() {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

func (t TimeOfDay) Valid() bool { return t >= 0 && t <= EndOfDay }

func (t TimeOfDay) Minutes() int { return int(t) }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On returns the instant t on date in loc.
func (t TimeOfDay) On(date civil.Date, loc *time.Location) time.Time {
	return time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, loc).Add(time.Duration(t) * time.Minute)
}

// Of returns the wall-clock time of instant in loc.
func Of(instant time.Time, loc *time.Location) TimeOfDay {
	local := instant.In(loc)
	return New(local.Hour(), local.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}
