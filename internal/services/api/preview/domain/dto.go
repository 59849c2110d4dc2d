// Package domain holds DTOs for preview http and service contracts
package domain

import (
	"fmt"
	"time"

	"overtid/internal/core/timereg"
)

// DateLayout is the wire format for dates in payloads and selection maps
const DateLayout = "02-01-2006"

// EntryJSON is one work interval as presented to the frontend
type EntryJSON struct {
	Activity         string  `json:"activity"`
	CaseNumber       string  `json:"case_number,omitempty"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	TotalHours       float64 `json:"total_hours"`
	HoursInNorm      float64 `json:"hours_in_norm"`
	HoursOutsideNorm float64 `json:"hours_outside_norm"`
}

// DailyJSON is one categorized day
type DailyJSON struct {
	Worker  string `json:"worker"`
	Date    string `json:"date"`
	DayName string `json:"day_name"`
	DayType string `json:"day_type"`
	Week    int    `json:"week_number"`
	Year    int    `json:"year"`

	TotalHours       float64 `json:"total_hours"`
	HoursInNorm      float64 `json:"hours_in_norm"`
	HoursOutsideNorm float64 `json:"hours_outside_norm"`
	CreditedHours    float64 `json:"credited_hours"`
	AbsentType       string  `json:"absent_type,omitempty"`

	WeeklyTotal float64                   `json:"weekly_total"`
	NormalHours float64                   `json:"normal_hours"`
	Breakdown   timereg.OvertimeBreakdown `json:"overtime_breakdown"`

	Overtime1 float64 `json:"overtime_1"`
	Overtime2 float64 `json:"overtime_2"`
	Overtime3 float64 `json:"overtime_3"`

	CallOutEligible bool    `json:"call_out_eligible"`
	CallOutApplied  bool    `json:"call_out_applied"`
	CallOutPayment  float64 `json:"call_out_payment"`

	Entries []EntryJSON `json:"entries"`
}

// WeeklyJSON is one weekly summary
type WeeklyJSON struct {
	Worker string `json:"worker"`
	Year   int    `json:"year"`
	Week   int    `json:"week_number"`

	TotalHours  float64                   `json:"total_hours"`
	NormalHours float64                   `json:"normal_hours"`
	Breakdown   timereg.OvertimeBreakdown `json:"overtime_breakdown"`

	Overtime1 float64 `json:"overtime_1"`
	Overtime2 float64 `json:"overtime_2"`
	Overtime3 float64 `json:"overtime_3"`
}

// PreviewPayload is the response shape shared by preview, mark-absence and
// the upstream fetch
type PreviewPayload struct {
	SessionID           string       `json:"session_id"`
	Daily               []DailyJSON  `json:"daily"`
	Weekly              []WeeklyJSON `json:"weekly"`
	CallOutEligibleDays []string     `json:"call_out_eligible_days"`
	TotalRecords        int          `json:"total_records"`
	TotalWeeks          int          `json:"total_weeks"`
}

// FetchInput asks the upstream workshop API for one employee's registrations
type FetchInput struct {
	EmployeeID int    `json:"employee_id" validate:"required,min=1" example:"7"`
	StartDate  string `json:"start_date" validate:"required" example:"01-01-2026"`
	EndDate    string `json:"end_date" validate:"required" example:"31-01-2026"`
}

// ExportInput selects an output format and carries confirmed call-out days
type ExportInput struct {
	Format            string          `json:"output_format"`
	CallOutSelections map[string]bool `json:"call_out_selections"`
}

// ExportFile is a rendered CSV ready for download
type ExportFile struct {
	Filename string
	Content  []byte
}

// ParseWireDate accepts the DD-MM-YYYY wire layout with an ISO fallback
func ParseWireDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// DailyFromOutput converts an engine output row to its wire shape
func DailyFromOutput(o timereg.DailyOutput) DailyJSON {
	entries := make([]EntryJSON, 0, len(o.Entries))
	for _, e := range o.Entries {
		entries = append(entries, EntryJSON{
			Activity:         e.Activity,
			CaseNumber:       e.CaseNumber,
			StartTime:        clock(e.Start),
			EndTime:          clock(e.End),
			TotalHours:       timereg.Round2(e.TotalHours),
			HoursInNorm:      timereg.Round2(e.HoursInNorm),
			HoursOutsideNorm: timereg.Round2(e.HoursOutsideNorm),
		})
	}
	return DailyJSON{
		Worker:           o.Worker,
		Date:             o.Date.Format(DateLayout),
		DayName:          o.DayName,
		DayType:          string(o.DayType),
		Week:             o.Week,
		Year:             o.Year,
		TotalHours:       o.TotalHours,
		HoursInNorm:      o.HoursInNorm,
		HoursOutsideNorm: o.HoursOutsideNorm,
		CreditedHours:    o.CreditedHours,
		AbsentType:       string(o.AbsentType),
		WeeklyTotal:      o.WeeklyTotal,
		NormalHours:      o.NormalHours,
		Breakdown:        roundBreakdown(o.Breakdown),
		Overtime1:        o.Overtime1,
		Overtime2:        o.Overtime2,
		Overtime3:        o.Overtime3,
		CallOutEligible:  o.CallOutEligible,
		CallOutApplied:   o.CallOutApplied,
		CallOutPayment:   o.CallOutPayment,
		Entries:          entries,
	}
}

// WeeklyFromSummary converts an engine summary to its wire shape
func WeeklyFromSummary(s timereg.WeeklySummary) WeeklyJSON {
	return WeeklyJSON{
		Worker:      s.Worker,
		Year:        s.Year,
		Week:        s.Week,
		TotalHours:  s.TotalHours,
		NormalHours: s.NormalHours,
		Breakdown:   roundBreakdown(s.Breakdown),
		Overtime1:   s.Overtime1,
		Overtime2:   s.Overtime2,
		Overtime3:   s.Overtime3,
	}
}

func roundBreakdown(b timereg.OvertimeBreakdown) timereg.OvertimeBreakdown {
	return timereg.OvertimeBreakdown{
		Hour12:           timereg.Round2(b.Hour12),
		Hour34:           timereg.Round2(b.Hour34),
		Hour5Plus:        timereg.Round2(b.Hour5Plus),
		ScheduledDay:     timereg.Round2(b.ScheduledDay),
		ScheduledNight:   timereg.Round2(b.ScheduledNight),
		DayOffDay:        timereg.Round2(b.DayOffDay),
		DayOffNight:      timereg.Round2(b.DayOffNight),
		SaturdayDay:      timereg.Round2(b.SaturdayDay),
		SaturdayNight:    timereg.Round2(b.SaturdayNight),
		SundayBeforeNoon: timereg.Round2(b.SundayBeforeNoon),
		SundayAfterNoon:  timereg.Round2(b.SundayAfterNoon),
	}
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
