// Package datefill backfills missing weekdays per worker so exports show an
// unbroken Monday-Friday sequence across the observed date range
package datefill

import (
	"sort"
	"time"

	"overtid/internal/core/timereg"
)

// Fill emits one DailyOutput per worker for every date in that worker's
// observed [min, max] range. Missing dates become zeroed outputs when they
// are weekdays; missing Saturdays and Sundays are added only when some
// original record existed on that calendar date. The result is sorted by
// (worker, date) and the pass is idempotent
func Fill(outputs []timereg.DailyOutput) []timereg.DailyOutput {
	if len(outputs) == 0 {
		return outputs
	}

	type workerRange struct{ min, max time.Time }
	ranges := map[string]workerRange{}
	present := map[string]map[string]timereg.DailyOutput{}
	datesSeen := map[string]bool{} // any worker, keyed by date

	for _, o := range outputs {
		key := o.Date.Format("2006-01-02")
		datesSeen[key] = true

		if present[o.Worker] == nil {
			present[o.Worker] = map[string]timereg.DailyOutput{}
		}
		present[o.Worker][key] = o

		r, ok := ranges[o.Worker]
		if !ok {
			ranges[o.Worker] = workerRange{o.Date, o.Date}
			continue
		}
		if o.Date.Before(r.min) {
			r.min = o.Date
		}
		if o.Date.After(r.max) {
			r.max = o.Date
		}
		ranges[o.Worker] = r
	}

	var filled []timereg.DailyOutput
	for worker, r := range ranges {
		for d := r.min; !d.After(r.max); d = d.AddDate(0, 0, 1) {
			key := d.Format("2006-01-02")
			if o, ok := present[worker][key]; ok {
				filled = append(filled, o)
				continue
			}

			dayType := timereg.DayTypeOf(d)
			if dayType != timereg.DayTypeWeekday && !datesSeen[key] {
				continue
			}
			filled = append(filled, zeroOutput(worker, d, dayType))
		}
	}

	sort.Slice(filled, func(a, b int) bool {
		if filled[a].Worker != filled[b].Worker {
			return filled[a].Worker < filled[b].Worker
		}
		return filled[a].Date.Before(filled[b].Date)
	})
	return filled
}

func zeroOutput(worker string, d time.Time, dayType timereg.DayType) timereg.DailyOutput {
	y, w := d.ISOWeek()
	return timereg.DailyOutput{
		Worker:  worker,
		Date:    d,
		DayName: timereg.DanishDayName(d),
		DayType: dayType,
		Week:    w,
		Year:    y,
	}
}
