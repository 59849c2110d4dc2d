// Package absence tags daily records with an absence category based on the
// activity text of their entries
package absence

import (
	"strings"

	"overtid/internal/core/timereg"
)

// Keyword sets are matched case-insensitively as substrings. The first match
// wins, checked in the order vacation, sick, holiday. Kursus has no keywords;
// it is only ever set explicitly by the user
var (
	vacationKeywords = []string{"ferie", "vacation", "afspadsering", "fridag"}

	sickKeywords = []string{"syg", "sygdom", "sick", "barns sygedag", "barnets første sygedag"}

	holidayKeywords = []string{
		"helligdag", "holiday", "juledag", "nytårsdag", "påske",
		"pinse", "store bededag", "kr. himmelfartsdag", "grundlovsdag",
	}
)

// Classify scans each record's entries and sets AbsentType on the first
// keyword hit. Records with an AbsentType already set are left alone, so the
// pass is idempotent and user-set values survive re-runs
func Classify(records []timereg.DailyRecord) []timereg.DailyRecord {
	for i := range records {
		if records[i].AbsentType != timereg.AbsenceNone {
			continue
		}
		records[i].AbsentType = detect(records[i].Entries)
	}
	return records
}

func detect(entries []timereg.TimeEntry) timereg.AbsenceType {
	for _, e := range entries {
		activity := strings.ToLower(e.Activity)
		if matchesAny(activity, vacationKeywords) {
			return timereg.AbsenceVacation
		}
		if matchesAny(activity, sickKeywords) {
			return timereg.AbsenceSick
		}
		if matchesAny(activity, holidayKeywords) {
			return timereg.AbsencePublicHoliday
		}
	}
	return timereg.AbsenceNone
}

func matchesAny(activity string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(activity, k) {
			return true
		}
	}
	return false
}
