// Package ftzcsv parses the vendor's semicolon-delimited time registration
// export: a title line, the worker name, then day-header blocks of entry rows
// with Danish duration phrasing
package ftzcsv

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"overtid/internal/core/interval"
	"overtid/internal/core/timereg"

	perr "overtid/internal/platform/errors"
)

var danishDays = map[string]timereg.DayType{
	"mandag":  timereg.DayTypeWeekday,
	"tirsdag": timereg.DayTypeWeekday,
	"onsdag":  timereg.DayTypeWeekday,
	"torsdag": timereg.DayTypeWeekday,
	"fredag":  timereg.DayTypeWeekday,
	"lørdag":  timereg.DayTypeSaturday,
	"søndag":  timereg.DayTypeSunday,
}

var (
	durationRe = regexp.MustCompile(`(?i)(\d+)\s*Timer(?:\s*(\d+)\s*Minutter)?`)
	minutesRe  = regexp.MustCompile(`(?i)^\s*(\d+)\s*Minutter`)
	dateRe     = regexp.MustCompile(`(\d{2})-(\d{2})-(\d{4})`)
	caseRe     = regexp.MustCompile(`(?i)Arbejdskort\s+Sag\s+Nr\.\s*(\d+)`)
	activityRe = regexp.MustCompile(`(?i)Aktivitet:\s*(.+)`)
)

// Parse decodes and parses a raw vendor CSV into daily records. Entry hour
// fields are left unset; the splitter fills them in downstream
func Parse(raw []byte) ([]timereg.DailyRecord, error) {
	content, err := decode(raw)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) < 3 {
		return nil, perr.InvalidInputf("file too short to be a time registration export")
	}

	// line 1 is the "Tidsregistrering" title; line 2 carries the worker name
	worker := strings.TrimSpace(strings.SplitN(lines[1], ";", 2)[0])
	if worker == "" {
		return nil, perr.InvalidInputf("missing worker name on line 2")
	}

	var (
		records []timereg.DailyRecord
		current *timereg.DailyRecord
	)
	flush := func() {
		if current != nil && len(current.Entries) > 0 {
			records = append(records, *current)
		}
		current = nil
	}

	for _, line := range lines[2:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.Trim(trimmed, ";") == "" {
			continue
		}

		if date, dayType, ok := parseDayHeader(trimmed); ok {
			flush()
			y, w := date.ISOWeek()
			current = &timereg.DailyRecord{
				Worker:  worker,
				Date:    date,
				DayName: timereg.DanishDayName(date),
				DayType: dayType,
				Week:    w,
				Year:    y,
			}
			continue
		}

		if isNoise(trimmed) || current == nil {
			continue
		}

		if e, ok := parseEntryRow(trimmed); ok {
			current.Entries = append(current.Entries, e)
		}
	}
	flush()

	if len(records) == 0 {
		return nil, perr.InvalidInputf("no time registrations found in file")
	}
	return records, nil
}

// parseDayHeader matches lines like "Mandag 12-01-2026"
func parseDayHeader(line string) (time.Time, timereg.DayType, bool) {
	lower := strings.ToLower(line)
	var dayType timereg.DayType
	found := false
	for name, dt := range danishDays {
		if strings.HasPrefix(lower, name) {
			dayType = dt
			found = true
			break
		}
	}
	if !found {
		return time.Time{}, "", false
	}

	m := dateRe.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, "", false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day || int(date.Month()) != month {
		return time.Time{}, "", false
	}
	return date, dayType, true
}

// isNoise filters column headers, totals and footer lines
func isNoise(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "aktivitet:") && strings.Contains(lower, "start tid:"):
		return true
	case strings.Contains(lower, "total tid for dagen:"):
		return true
	case strings.Contains(lower, "total tid i alt:"):
		return true
	case strings.Contains(lower, "fordelt p"):
		return true
	case strings.HasSuffix(strings.TrimSpace(lower), "1/1"):
		return true
	}
	return false
}

// parseEntryRow parses "activity;start;;end;duration;..." rows. Rows without
// a valid start, end and positive duration are ignored, matching the export's
// habit of emitting partial lines
func parseEntryRow(line string) (timereg.TimeEntry, bool) {
	parts := strings.Split(line, ";")
	if len(parts) < 5 || strings.TrimSpace(parts[0]) == "" {
		return timereg.TimeEntry{}, false
	}

	start, err := interval.ParseClock(strings.TrimSpace(parts[1]))
	if err != nil {
		return timereg.TimeEntry{}, false
	}
	end, err := interval.ParseClock(strings.TrimSpace(parts[3]))
	if err != nil {
		return timereg.TimeEntry{}, false
	}
	if parseDuration(strings.TrimSpace(parts[4])) <= 0 {
		return timereg.TimeEntry{}, false
	}

	activity, caseNumber := splitActivity(strings.TrimSpace(parts[0]))
	return timereg.TimeEntry{
		Activity:   activity,
		CaseNumber: caseNumber,
		Start:      start,
		End:        end,
	}, true
}

// parseDuration parses "X Timer Y Minutter", bare "X Timer" and bare
// "Y Minutter" into decimal hours
func parseDuration(v string) float64 {
	if m := durationRe.FindStringSubmatch(v); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes := 0
		if m[2] != "" {
			minutes, _ = strconv.Atoi(m[2])
		}
		return float64(hours) + float64(minutes)/60
	}
	if m := minutesRe.FindStringSubmatch(v); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		return float64(minutes) / 60
	}
	return 0
}

// splitActivity extracts the case number from "Arbejdskort Sag Nr. 33511"
// rows and the activity name from "Aktivitet: Rengøring" rows
func splitActivity(v string) (activity, caseNumber string) {
	if m := caseRe.FindStringSubmatch(v); m != nil {
		return "Arbejdskort", m[1]
	}
	if m := activityRe.FindStringSubmatch(v); m != nil {
		return strings.TrimSpace(m[1]), ""
	}
	return v, ""
}
