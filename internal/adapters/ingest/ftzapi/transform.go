package ftzapi

import (
	"fmt"
	"sort"
	"time"

	"overtid/internal/core/timereg"

	perr "overtid/internal/platform/errors"
)

// copenhagen is loaded once; the zone is compiled into the binary via the
// platform's tzdata and cannot realistically fail at runtime
var copenhagen = mustZone("Europe/Copenhagen")

func mustZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// LocalWindowUTC converts an inclusive local date range into the UTC query
// bounds the search endpoint expects: local midnight through end of day
func LocalWindowUTC(from, to time.Time) (time.Time, time.Time) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, copenhagen)
	end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, copenhagen)
	return start.UTC(), end.UTC()
}

// ToRecords groups the registrations by Danish local date and converts each
// group into a DailyRecord. Entry hour fields are left for the splitter.
// Registrations crossing local midnight are rejected rather than silently
// zeroed
func ToRecords(regs []TimeRegistration, worker string) ([]timereg.DailyRecord, error) {
	byDate := map[string][]TimeRegistration{}
	for _, r := range regs {
		local := r.StartTimeUtc.In(copenhagen)
		byDate[local.Format("2006-01-02")] = append(byDate[local.Format("2006-01-02")], r)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var records []timereg.DailyRecord
	for _, d := range dates {
		group := byDate[d]
		sort.Slice(group, func(a, b int) bool {
			return group[a].StartTimeUtc.Before(group[b].StartTimeUtc)
		})

		first := group[0].StartTimeUtc.In(copenhagen)
		date := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
		y, w := date.ISOWeek()

		rec := timereg.DailyRecord{
			Worker:  worker,
			Date:    date,
			DayName: timereg.DanishDayName(date),
			DayType: timereg.DayTypeOf(date),
			Week:    w,
			Year:    y,
		}

		for _, r := range group {
			start := r.StartTimeUtc.In(copenhagen)
			end := r.EndTimeUtc.In(copenhagen)
			if end.Format("2006-01-02") != start.Format("2006-01-02") {
				return nil, perr.InvalidInputf(
					"registration for %s crosses midnight (%s - %s)",
					worker, start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"))
			}

			activity := "Diverse"
			caseNumber := ""
			if r.CaseNo > 0 {
				activity = fmt.Sprintf("Sag %d", r.CaseNo)
				caseNumber = fmt.Sprint(r.CaseNo)
			}

			rec.Entries = append(rec.Entries, timereg.TimeEntry{
				Activity:   activity,
				CaseNumber: caseNumber,
				Start:      start.Hour()*60 + start.Minute(),
				End:        end.Hour()*60 + end.Minute(),
			})
		}
		records = append(records, rec)
	}
	return records, nil
}
