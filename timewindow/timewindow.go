/*
Package timewindow decides whether a weekly schedule is active at an instant.

PURPOSE:
  Promotional rules ("happy hour") are scheduled per weekday with a
  time-of-day window and optional calendar bounds. This package answers a
  single question: is the schedule active at time t?

ACTIVITY RULE:
  A schedule is active at t iff BOTH hold:
    (a) t lies within [StartDate 00:00:00, EndDate 23:59:59.999] for every
        bound that is present, AND
    (b) the entry for t's weekday exists, is Active, and t's time of day
        lies in [Start, End).

  When End < Start the window crosses midnight and matches
  time >= Start OR time < End. Start == End is an empty window.

  The weekday used is always t's own weekday: at 01:00 on Tuesday a
  22:00-02:00 window is looked up in Tuesday's entry, not Monday's.

EVALUATION LOCATION:
  Resolver.Location is the business timezone. Instants are converted into
  it before weekday and clock are read. A nil Location uses t's own zone.

PURITY:
  No clock reads. Callers pass `at` explicitly, so the same inputs always
  produce the same answer.

SEE ALSO:
  - pricing/resolver.go: uses this to pick happy-hour rules
*/
package timewindow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CLOCK - "HH:MM" time of day
// =============================================================================

// ErrInvalidClock is returned for time strings that are not "HH:MM".
var ErrInvalidClock = errors.New("invalid clock value")

// Clock is a time of day with minute precision.
type Clock struct {
	Minutes int // minutes since midnight, 0..1439
}

// ParseClock parses "HH:MM" (24h). "9:30" is accepted; "24:00" is not.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock{Minutes: h*60 + m}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Minutes/60, c.Minutes%60)
}

// seconds returns the clock as seconds since midnight.
func (c Clock) seconds() int { return c.Minutes * 60 }

// =============================================================================
// SCHEDULE
// =============================================================================

// DaySchedule is the window for one weekday.
type DaySchedule struct {
	Active bool
	Start  string // "HH:MM"
	End    string // "HH:MM", exclusive
}

// Schedule is a weekly schedule with optional inclusive calendar bounds.
// Only the calendar date of StartDate/EndDate is used.
type Schedule struct {
	StartDate *time.Time
	EndDate   *time.Time
	Days      map[time.Weekday]DaySchedule
}

// BoundsValid reports false when both bounds are set and StartDate falls
// on a later calendar day than EndDate. Such a schedule never matches.
func (s Schedule) BoundsValid() bool {
	if s.StartDate == nil || s.EndDate == nil {
		return true
	}
	return !dateOnly(*s.StartDate).After(dateOnly(*s.EndDate))
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver evaluates schedules in a business location.
type Resolver struct {
	Location *time.Location
}

// NewResolver creates a resolver for the given location (nil = instant's zone).
func NewResolver(loc *time.Location) *Resolver {
	return &Resolver{Location: loc}
}

// IsActive reports whether s is active at `at`.
//
// An error is returned only when the weekday entry that would decide the
// outcome carries an unparsable clock; the error wraps ErrInvalidClock.
// Date bounds are checked first, so an out-of-range schedule never errors.
func (r *Resolver) IsActive(s Schedule, at time.Time) (bool, error) {
	if r != nil && r.Location != nil {
		at = at.In(r.Location)
	}

	if !withinBounds(s, at) {
		return false, nil
	}

	day, ok := s.Days[at.Weekday()]
	if !ok || !day.Active {
		return false, nil
	}

	start, err := ParseClock(day.Start)
	if err != nil {
		return false, fmt.Errorf("%s start: %w", at.Weekday(), err)
	}
	end, err := ParseClock(day.End)
	if err != nil {
		return false, fmt.Errorf("%s end: %w", at.Weekday(), err)
	}

	return InWindow(start, end, at), nil
}

// InWindow reports whether the time of day of t lies in [start, end).
// end < start wraps past midnight; start == end never matches.
func InWindow(start, end Clock, t time.Time) bool {
	tod := t.Hour()*3600 + t.Minute()*60 + t.Second()
	s, e := start.seconds(), end.seconds()
	if e < s {
		return tod >= s || tod < e
	}
	return tod >= s && tod < e
}

func withinBounds(s Schedule, at time.Time) bool {
	if s.StartDate != nil {
		if at.Before(StartOfDay(*s.StartDate, at.Location())) {
			return false
		}
	}
	if s.EndDate != nil {
		if at.After(EndOfDay(*s.EndDate, at.Location())) {
			return false
		}
	}
	return true
}

// =============================================================================
// DATE UTILITIES
// =============================================================================

// StartOfDay returns 00:00:00.000 of d's calendar date in loc.
func StartOfDay(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns 23:59:59.999 of d's calendar date in loc.
func EndOfDay(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
}

func dateOnly(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseWeekday accepts English names in any case ("monday", "Mon") or
// the digits 0-6 with 0 = Sunday.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 0 && n <= 6 {
			return time.Weekday(n), true
		}
		return 0, false
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && s == name[:3]) {
			return d, true
		}
	}
	return 0, false
}
