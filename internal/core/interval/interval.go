// Package interval implements the minute-level splitting primitives the
// overtime rules are built on: the 07:00-17:00 norm window, the 06:00-18:00
// day window and the 12:00 noon boundary
package interval

import (
	"fmt"

	perr "overtid/internal/platform/errors"
)

// Boundaries in minutes since midnight
const (
	NormStart = 7 * 60  // 07:00
	NormEnd   = 17 * 60 // 17:00

	DayStart = 6 * 60  // 06:00
	DayEnd   = 18 * 60 // 18:00

	Noon = 12 * 60 // 12:00

	EndOfDay = 24 * 60
)

// Span is a half-open [Start, End) interval in minutes since midnight
type Span struct {
	Start int
	End   int
}

// New validates and constructs a Span. Midnight-crossing intervals
// (end <= start) are rejected; callers must split them beforehand
func New(start, end int) (Span, error) {
	if start < 0 || end > EndOfDay || end <= start {
		return Span{}, perr.InvalidInputf("invalid interval %s-%s", Format(start), Format(end))
	}
	return Span{Start: start, End: end}, nil
}

// Minutes returns the span length in minutes
func (s Span) Minutes() int { return s.End - s.Start }

// Hours returns the span length in hours
func (s Span) Hours() float64 { return float64(s.Minutes()) / 60 }

// Within returns the hours of s that fall inside [lo, hi)
func (s Span) Within(lo, hi int) float64 {
	start := max(s.Start, lo)
	end := min(s.End, hi)
	if end <= start {
		return 0
	}
	return float64(end-start) / 60
}

// Outside returns the hours of s that fall outside [lo, hi)
func (s Span) Outside(lo, hi int) float64 { return s.Hours() - s.Within(lo, hi) }

// Before returns the hours of s strictly before boundary b
func (s Span) Before(b int) float64 { return s.Within(0, b) }

// After returns the hours of s at or after boundary b
func (s Span) After(b int) float64 { return s.Within(b, EndOfDay) }

// Norm returns (hours inside the 07:00-17:00 norm window, hours outside)
func (s Span) Norm() (in, out float64) {
	in = s.Within(NormStart, NormEnd)
	return in, s.Hours() - in
}

// DayNight returns (hours inside 06:00-18:00, hours outside)
func (s Span) DayNight() (day, night float64) {
	day = s.Within(DayStart, DayEnd)
	return day, s.Hours() - day
}

// NoonSplit returns (hours before 12:00, hours at or after)
func (s Span) NoonSplit() (before, after float64) {
	before = s.Before(Noon)
	return before, s.Hours() - before
}

// Tail returns the final `hours` worth of s as a sub-span. If hours covers
// the whole span, s itself is returned
func (s Span) Tail(hours float64) Span {
	m := int(hours*60 + 0.5)
	if m >= s.Minutes() {
		return s
	}
	return Span{Start: s.End - m, End: s.End}
}

// ParseClock parses "HH:MM" into minutes since midnight
func ParseClock(v string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
		return 0, perr.InvalidInputf("invalid clock time %q", v)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, perr.InvalidInputf("invalid clock time %q", v)
	}
	return h*60 + m, nil
}

// Format renders minutes since midnight as "HH:MM"
func Format(m int) string { return fmt.Sprintf("%02d:%02d", m/60, m%60) }
