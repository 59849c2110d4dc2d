// Package overtime implements the DBR 2026 weekly categorization rules: the
// 37-hour norm, cumulative hourly tiers, time-of-day splits and the weekend
// and Sunday-noon buckets
package overtime

import (
	"sort"

	"overtid/internal/core/interval"
	"overtid/internal/core/timereg"
)

// Collective agreement constants
const (
	// WeeklyNormHours is the regular hours per ISO week before overtime
	WeeklyNormHours = 37.0

	// CreditedDailyHours is what an absence day contributes toward the norm
	CreditedDailyHours = WeeklyNormHours / 5 // 7.4
)

// ApplyCredits credits absence days with the standard daily hours and marks
// them as day-off so any hours actually worked use day-off buckets
func ApplyCredits(records []timereg.DailyRecord) []timereg.DailyRecord {
	for i := range records {
		if records[i].AbsentType != timereg.AbsenceNone {
			records[i].CreditedHours = CreditedDailyHours
			records[i].IsDayOff = true
		}
	}
	return records
}

// Process groups the records by (worker, ISO year, ISO week) and runs each
// week through the categorization rules in date order. Returns per-day
// outputs and one summary per week, both sorted by (worker, date)
func Process(records []timereg.DailyRecord) ([]timereg.DailyOutput, []timereg.WeeklySummary) {
	type weekKey struct {
		worker     string
		year, week int
	}

	grouped := map[weekKey][]timereg.DailyRecord{}
	for _, r := range records {
		y, w := r.Date.ISOWeek()
		grouped[weekKey{r.Worker, y, w}] = append(grouped[weekKey{r.Worker, y, w}], r)
	}

	keys := make([]weekKey, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].worker != keys[b].worker {
			return keys[a].worker < keys[b].worker
		}
		if keys[a].year != keys[b].year {
			return keys[a].year < keys[b].year
		}
		return keys[a].week < keys[b].week
	})

	var outputs []timereg.DailyOutput
	var summaries []timereg.WeeklySummary
	for _, k := range keys {
		week := grouped[k]
		sort.Slice(week, func(a, b int) bool { return week[a].Date.Before(week[b].Date) })

		out, sum := processWeek(k.worker, k.year, k.week, week)
		outputs = append(outputs, out...)
		summaries = append(summaries, sum)
	}
	return outputs, summaries
}

func processWeek(worker string, year, week int, records []timereg.DailyRecord) ([]timereg.DailyOutput, timereg.WeeklySummary) {
	var (
		weeklyTotal    float64
		normUsed       float64
		otHoursUsed    float64
		weekBreakdown  timereg.OvertimeBreakdown
		outputs        = make([]timereg.DailyOutput, 0, len(records))
	)

	for _, rec := range records {
		dayTotal := rec.TotalHours + rec.CreditedHours

		normThisDay := min(dayTotal, max(0, WeeklyNormHours-normUsed))
		otThisDay := dayTotal - normThisDay

		breakdown := categorizeDay(rec, otThisDay, otHoursUsed)

		weeklyTotal += dayTotal
		normUsed += normThisDay
		otHoursUsed += otThisDay
		weekBreakdown.Add(breakdown)

		ot1, ot2, ot3 := legacyTiers(breakdown)

		var inNorm, outNorm float64
		for _, e := range rec.Entries {
			inNorm += e.HoursInNorm
			outNorm += e.HoursOutsideNorm
		}

		outputs = append(outputs, timereg.DailyOutput{
			Worker:           worker,
			Date:             rec.Date,
			DayName:          rec.DayName,
			DayType:          rec.DayType,
			Week:             week,
			Year:             year,
			TotalHours:       timereg.Round2(dayTotal),
			HoursInNorm:      timereg.Round2(inNorm),
			HoursOutsideNorm: timereg.Round2(outNorm),
			CreditedHours:    timereg.Round2(rec.CreditedHours),
			AbsentType:       rec.AbsentType,
			WeeklyTotal:      timereg.Round2(weeklyTotal),
			NormalHours:      timereg.Round2(normThisDay),
			Breakdown:        breakdown,
			Overtime1:        timereg.Round2(ot1),
			Overtime2:        timereg.Round2(ot2),
			Overtime3:        timereg.Round2(ot3),
			CallOutEligible:  rec.CallOutEligible,
			CallOutApplied:   rec.CallOutConfirmed,
			Entries:          rec.Entries,
		})
	}

	wOt1, wOt2, wOt3 := legacyTiers(weekBreakdown)
	summary := timereg.WeeklySummary{
		Worker:      worker,
		Year:        year,
		Week:        week,
		TotalHours:  timereg.Round2(weeklyTotal),
		NormalHours: timereg.Round2(normUsed),
		Breakdown:   weekBreakdown,
		Overtime1:   timereg.Round2(wOt1),
		Overtime2:   timereg.Round2(wOt2),
		Overtime3:   timereg.Round2(wOt3),
	}
	return outputs, summary
}

// categorizeDay places otHours into the breakdown buckets for one day.
//
// The norm is allocated to the earliest worked minutes, so the overtime is
// the tail of the day's intervals. Splitting only that tail keeps the bucket
// sum equal to the day's overtime. Credited hours carry no intervals; any
// overtime not covered by worked minutes falls back to the tiered view (for
// weekdays) or the day-side bucket
func categorizeDay(rec timereg.DailyRecord, otHours, otHoursUsed float64) timereg.OvertimeBreakdown {
	var b timereg.OvertimeBreakdown
	if otHours <= 0 {
		return b
	}

	// Credited day with no actual work: only the hourly tiers apply
	if rec.TotalHours == 0 && rec.CreditedHours > 0 {
		b.Hour12, b.Hour34, b.Hour5Plus = hourlyTiers(otHours, otHoursUsed)
		return b
	}

	tail := otTail(rec.Entries, otHours)
	var covered float64
	for _, span := range tail {
		covered += span.Hours()
	}
	uncovered := otHours - covered

	switch {
	case rec.DayType == timereg.DayTypeSunday:
		for _, span := range tail {
			before, after := span.NoonSplit()
			b.SundayBeforeNoon += before
			b.SundayAfterNoon += after
		}
		if uncovered > 0 {
			b.SundayBeforeNoon += uncovered
		}

	case rec.DayType == timereg.DayTypeSaturday:
		for _, span := range tail {
			day, night := span.DayNight()
			b.SaturdayDay += day
			b.SaturdayNight += night
		}
		if uncovered > 0 {
			b.SaturdayDay += uncovered
		}

	case rec.IsDayOff:
		for _, span := range tail {
			day, night := span.DayNight()
			b.DayOffDay += day
			b.DayOffNight += night
		}
		if uncovered > 0 {
			b.DayOffDay += uncovered
		}

	default:
		// Ordinary weekday: tiered view and time-of-day view in parallel
		b.Hour12, b.Hour34, b.Hour5Plus = hourlyTiers(otHours, otHoursUsed)
		for _, span := range tail {
			day, night := span.DayNight()
			b.ScheduledDay += day
			b.ScheduledNight += night
		}
		if uncovered > 0 {
			b.ScheduledDay += uncovered
		}
	}
	return b
}

// hourlyTiers fills the cumulative weekly thresholds [0,2) -> hour_1_2,
// [2,4) -> hour_3_4, then hour_5_plus
func hourlyTiers(otHours, otHoursUsed float64) (h12, h34, h5 float64) {
	remaining := otHours
	used := otHoursUsed

	if used < 2 && remaining > 0 {
		h12 = min(remaining, 2-used)
		remaining -= h12
		used += h12
	}
	if used < 4 && remaining > 0 {
		h34 = min(remaining, 4-used)
		remaining -= h34
	}
	h5 = remaining
	return h12, h34, max(0, h5)
}

// otTail returns sub-spans covering the final otHours of the day's worked
// intervals, latest minutes first in source order
func otTail(entries []timereg.TimeEntry, otHours float64) []interval.Span {
	if len(entries) == 0 || otHours <= 0 {
		return nil
	}

	sorted := make([]timereg.TimeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Start < sorted[b].Start })

	want := int(otHours*60 + 0.5)
	var tail []interval.Span
	for i := len(sorted) - 1; i >= 0 && want > 0; i-- {
		span := interval.Span{Start: sorted[i].Start, End: sorted[i].End}
		if span.Minutes() > want {
			span.Start = span.End - want
		}
		want -= span.Minutes()
		tail = append([]interval.Span{span}, tail...)
	}
	return tail
}

// legacyTiers compresses a breakdown into the historical three-tier shape.
// The scheduled day/night pair is a parallel view of the tiered weekday
// hours and is deliberately not counted
func legacyTiers(b timereg.OvertimeBreakdown) (ot1, ot2, ot3 float64) {
	ot1 = b.Hour12
	ot2 = b.Hour34
	ot3 = b.Hour5Plus +
		b.SaturdayDay + b.SaturdayNight +
		b.SundayBeforeNoon + b.SundayAfterNoon +
		b.DayOffDay + b.DayOffNight
	return ot1, ot2, ot3
}
