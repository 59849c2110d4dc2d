package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"overtid/internal/core/overtime"
	"overtid/internal/core/timereg"
	perr "overtid/internal/platform/errors"
	"overtid/internal/services/api/preview/domain"
)

// utf8BOM keeps Excel from guessing a legacy codepage on Danish characters
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var dailyHeader = []string{
	"Medarbejder", "Dato", "Dag", "Dagtype",
	"TotalTimer", "TimerNormtid", "TimerUdenforNorm",
	"UgeNummer", "UgeTotal", "NormaleTimer",
	"Overtid1", "Overtid2", "Overtid3", "CallOutBetaling",
}

var breakdownHeader = []string{
	"Time1-2", "Time3-4", "Time5Plus",
	"SkemaDag", "SkemaNat",
	"FridagDag", "FridagNat",
	"LørdagDag", "LørdagNat",
	"SøndagFørKl12", "SøndagEfterKl12",
	"OvertidBeløbDKK",
}

var weeklyHeader = []string{
	"Medarbejder", "År", "UgeNummer",
	"TotalTimer", "NormaleTimer",
	"Overtid1", "Overtid2", "Overtid3",
}

// render produces the selected CSV format over the computed outputs
func render(format string, outputs []timereg.DailyOutput, summaries []timereg.WeeklySummary) (domain.ExportFile, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	w.Comma = ';'

	switch format {
	case "daily", "":
		format = "daily"
		writeDaily(w, outputs, false)
	case "detailed":
		writeDaily(w, outputs, true)
	case "weekly":
		writeWeekly(w, summaries, false)
	case "weekly_detailed":
		writeWeekly(w, summaries, true)
	case "combined":
		writeDaily(w, outputs, false)
		_ = w.Write([]string{})
		_ = w.Write([]string{"UGENTLIG OPSUMMERING"})
		writeWeekly(w, summaries, false)
	default:
		return domain.ExportFile{}, perr.InvalidInputf("unknown output format %q", format)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return domain.ExportFile{}, perr.Wrap(err, perr.ErrorCodeUnknown, "write csv")
	}

	name := fmt.Sprintf("overtid_%s_%s.csv", format, time.Now().Format("20060102_150405"))
	return domain.ExportFile{Filename: name, Content: buf.Bytes()}, nil
}

func writeDaily(w *csv.Writer, outputs []timereg.DailyOutput, detailed bool) {
	header := dailyHeader
	if detailed {
		header = append(append([]string{}, dailyHeader...), breakdownHeader...)
	}
	_ = w.Write(header)

	for _, o := range outputs {
		row := []string{
			o.Worker,
			o.Date.Format(domain.DateLayout),
			o.DayName,
			string(o.DayType),
			num(o.TotalHours),
			num(o.HoursInNorm),
			num(o.HoursOutsideNorm),
			fmt.Sprint(o.Week),
			num(o.WeeklyTotal),
			num(o.NormalHours),
			num(o.Overtime1),
			num(o.Overtime2),
			num(o.Overtime3),
			num(o.CallOutPayment),
		}
		if detailed {
			row = append(row, breakdownCols(o.Breakdown, overtime.RatesFor(o.Date))...)
		}
		_ = w.Write(row)
	}
}

func writeWeekly(w *csv.Writer, summaries []timereg.WeeklySummary, detailed bool) {
	header := weeklyHeader
	if detailed {
		header = append(append([]string{}, weeklyHeader...), breakdownHeader...)
	}
	_ = w.Write(header)

	for _, s := range summaries {
		row := []string{
			s.Worker,
			fmt.Sprint(s.Year),
			fmt.Sprint(s.Week),
			num(s.TotalHours),
			num(s.NormalHours),
			num(s.Overtime1),
			num(s.Overtime2),
			num(s.Overtime3),
		}
		if detailed {
			// rate band keyed by the Monday of the ISO week
			row = append(row, breakdownCols(s.Breakdown, overtime.RatesFor(isoWeekStart(s.Year, s.Week)))...)
		}
		_ = w.Write(row)
	}
}

// breakdownCols renders the eleven buckets plus the total supplement amount.
// Rates touch hours only here, at the rendering edge
func breakdownCols(b timereg.OvertimeBreakdown, r overtime.Rates) []string {
	amount := decimal.Zero.
		Add(amt(b.Hour12, r.WeekdayHour12)).
		Add(amt(b.Hour34, r.WeekdayHour34)).
		Add(amt(b.Hour5Plus, r.WeekdayHour5Plus)).
		Add(amt(b.DayOffDay, r.DayOffDay)).
		Add(amt(b.DayOffNight, r.DayOffNight)).
		Add(amt(b.SaturdayDay, r.SaturdayDay)).
		Add(amt(b.SaturdayNight, r.SaturdayNight)).
		Add(amt(b.SundayBeforeNoon, r.SundayBeforeNoon)).
		Add(amt(b.SundayAfterNoon, r.SundayAfterNoon))

	return []string{
		num(b.Hour12), num(b.Hour34), num(b.Hour5Plus),
		num(b.ScheduledDay), num(b.ScheduledNight),
		num(b.DayOffDay), num(b.DayOffNight),
		num(b.SaturdayDay), num(b.SaturdayNight),
		num(b.SundayBeforeNoon), num(b.SundayAfterNoon),
		amount.StringFixed(2),
	}
}

func amt(hours float64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(timereg.Round2(hours)).Mul(rate)
}

func num(v float64) string { return fmt.Sprintf("%.2f", timereg.Round2(v)) }

// isoWeekStart returns the Monday of the given ISO (year, week)
func isoWeekStart(year, week int) time.Time {
	// Jan 4 is always in ISO week 1
	t := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	for t.Weekday() != time.Monday {
		t = t.AddDate(0, 0, -1)
	}
	return t.AddDate(0, 0, (week-1)*7)
}
