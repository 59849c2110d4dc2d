package interval

import (
	"overtid/internal/core/timereg"

	perr "overtid/internal/platform/errors"
)

// AnnotateRecords validates every entry's interval and fills in the derived
// per-entry and per-record hour fields: total, in-norm and outside-norm.
// The first invalid interval aborts with its location in the message
func AnnotateRecords(records []timereg.DailyRecord) ([]timereg.DailyRecord, error) {
	for i := range records {
		rec := &records[i]
		rec.TotalHours = 0
		for j := range rec.Entries {
			e := &rec.Entries[j]
			span, err := New(e.Start, e.End)
			if err != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeInvalidInput,
					"%s %s entry %d", rec.Worker, rec.Date.Format("02-01-2006"), j+1)
			}
			e.TotalHours = span.Hours()
			e.HoursInNorm, e.HoursOutsideNorm = span.Norm()
			rec.TotalHours += e.TotalHours
		}
	}
	return records, nil
}
