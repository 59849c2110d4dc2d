// Package callout flags days where a qualifying early or late start earns the
// fixed call-out bonus
package callout

import (
	"sort"

	"overtid/internal/core/interval"
	"overtid/internal/core/timereg"
)

// Qualification boundaries in minutes since midnight
const (
	morningCutoff  = interval.NormStart // starts before 07:00 qualify
	eveningCutoff  = 15*60 + 30         // starts at or after 15:30 qualify
	continuationAt = 16 * 60            // starts at or after 16:00 may be continuations
)

// Payment is the fixed bonus in DKK paid per confirmed call-out day
const Payment = 750.0

// Annotate sets CallOutEligible and CallOutStartTimes on each record.
//
// A start at or after 16:00 does not qualify when any earlier entry on the
// same day ended at or after 15:30: the worker never left, so the late entry
// is a continuation. Gaps between the entries are irrelevant. Starts in
// [15:30, 16:00) always qualify, as do morning starts before 07:00
func Annotate(records []timereg.DailyRecord) []timereg.DailyRecord {
	for i := range records {
		starts := qualifyingStarts(records[i].Entries)
		records[i].CallOutEligible = len(starts) > 0
		records[i].CallOutStartTimes = starts
	}
	return records
}

func qualifyingStarts(entries []timereg.TimeEntry) []string {
	if len(entries) == 0 {
		return nil
	}

	sorted := make([]timereg.TimeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Start < sorted[b].Start })

	var starts []string
	for idx, e := range sorted {
		switch {
		case e.Start < morningCutoff:
			starts = append(starts, interval.Format(e.Start))
		case e.Start >= continuationAt:
			if !continuesEarlierWork(sorted[:idx]) {
				starts = append(starts, interval.Format(e.Start))
			}
		case e.Start >= eveningCutoff:
			starts = append(starts, interval.Format(e.Start))
		}
	}
	return starts
}

func continuesEarlierWork(earlier []timereg.TimeEntry) bool {
	for _, e := range earlier {
		if e.End >= eveningCutoff {
			return true
		}
	}
	return false
}
