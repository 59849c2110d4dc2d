// Package timereg holds the record types the calculation pipeline operates on.
// Everything here is plain data; the engine packages annotate these records in
// place as they move through the pipeline.
package timereg

import "time"

// AbsenceType classifies why a day has no (or reduced) worked hours
type AbsenceType string

// Absence categories. Kursus is never inferred from activity text; it can only
// be set explicitly by the user
const (
	AbsenceNone          AbsenceType = ""
	AbsenceVacation      AbsenceType = "Vacation"
	AbsenceSick          AbsenceType = "Sick"
	AbsencePublicHoliday AbsenceType = "PublicHoliday"
	AbsenceKursus        AbsenceType = "Kursus"
)

// DayType partitions dates for overtime classification
type DayType string

// Day types
const (
	DayTypeWeekday  DayType = "Weekday"
	DayTypeSaturday DayType = "Saturday"
	DayTypeSunday   DayType = "Sunday"
)

// DayTypeOf derives the DayType from a date
func DayTypeOf(d time.Time) DayType {
	switch d.Weekday() {
	case time.Saturday:
		return DayTypeSaturday
	case time.Sunday:
		return DayTypeSunday
	default:
		return DayTypeWeekday
	}
}

// Danish weekday names indexed by time.Weekday (Sunday first)
var danishDayNames = [7]string{"Søndag", "Mandag", "Tirsdag", "Onsdag", "Torsdag", "Fredag", "Lørdag"}

// DanishDayName returns the Danish name for the date's weekday
func DanishDayName(d time.Time) string { return danishDayNames[int(d.Weekday())] }

// TimeEntry is one contiguous work interval on a single local date.
// Start and End are minutes since midnight; End is exclusive and must be
// greater than Start (intervals never cross midnight)
type TimeEntry struct {
	Activity   string
	CaseNumber string
	Start      int
	End        int

	TotalHours       float64
	HoursInNorm      float64
	HoursOutsideNorm float64
}

// DailyRecord is every entry for one (worker, local date) pair plus the
// derived per-day annotations added by the pipeline
type DailyRecord struct {
	Worker  string
	Date    time.Time
	DayName string
	DayType DayType
	Week    int
	Year    int

	Entries    []TimeEntry
	TotalHours float64

	AbsentType    AbsenceType
	IsDayOff      bool
	CreditedHours float64

	CallOutEligible   bool
	CallOutStartTimes []string
	CallOutConfirmed  bool
}

// OvertimeBreakdown carries every overtime bucket for a day or a week.
//
// The weekday buckets exist in two parallel views of the same hours: the
// cumulative-weekly tier (Hour12/Hour34/Hour5Plus) and the time-of-day split
// (ScheduledDay/ScheduledNight). Total sums the tiered view plus the weekend
// and day-off buckets; the scheduled pair is excluded so the sum equals the
// actual overtime hours exactly once. Only the tiered view feeds payroll
type OvertimeBreakdown struct {
	Hour12    float64 `json:"hour_1_2"`
	Hour34    float64 `json:"hour_3_4"`
	Hour5Plus float64 `json:"hour_5_plus"`

	ScheduledDay   float64 `json:"scheduled_day"`
	ScheduledNight float64 `json:"scheduled_night"`

	DayOffDay   float64 `json:"dayoff_day"`
	DayOffNight float64 `json:"dayoff_night"`

	SaturdayDay   float64 `json:"saturday_day"`
	SaturdayNight float64 `json:"saturday_night"`

	SundayBeforeNoon float64 `json:"sunday_before_noon"`
	SundayAfterNoon  float64 `json:"sunday_after_noon"`
}

// Total returns the overtime hours counted exactly once (tiered weekday view
// plus weekend/day-off buckets; the scheduled pair is a parallel view)
func (b OvertimeBreakdown) Total() float64 {
	return b.Hour12 + b.Hour34 + b.Hour5Plus +
		b.DayOffDay + b.DayOffNight +
		b.SaturdayDay + b.SaturdayNight +
		b.SundayBeforeNoon + b.SundayAfterNoon
}

// Add accumulates other into b
func (b *OvertimeBreakdown) Add(other OvertimeBreakdown) {
	b.Hour12 += other.Hour12
	b.Hour34 += other.Hour34
	b.Hour5Plus += other.Hour5Plus
	b.ScheduledDay += other.ScheduledDay
	b.ScheduledNight += other.ScheduledNight
	b.DayOffDay += other.DayOffDay
	b.DayOffNight += other.DayOffNight
	b.SaturdayDay += other.SaturdayDay
	b.SaturdayNight += other.SaturdayNight
	b.SundayBeforeNoon += other.SundayBeforeNoon
	b.SundayAfterNoon += other.SundayAfterNoon
}

// DailyOutput is the per-day result emitted by the overtime engine
type DailyOutput struct {
	Worker  string
	Date    time.Time
	DayName string
	DayType DayType
	Week    int
	Year    int

	TotalHours       float64
	HoursInNorm      float64
	HoursOutsideNorm float64
	CreditedHours    float64
	AbsentType       AbsenceType

	WeeklyTotal float64
	NormalHours float64
	Breakdown   OvertimeBreakdown

	// Legacy back-projection of the breakdown into three compressed tiers
	Overtime1 float64
	Overtime2 float64
	Overtime3 float64

	CallOutEligible bool
	CallOutApplied  bool
	CallOutPayment  float64

	Entries []TimeEntry
}

// WeeklySummary aggregates one (worker, ISO year, ISO week)
type WeeklySummary struct {
	Worker string
	Year   int
	Week   int

	TotalHours  float64
	NormalHours float64
	Breakdown   OvertimeBreakdown

	Overtime1 float64
	Overtime2 float64
	Overtime3 float64
}

// Round2 rounds to two decimals; the engine works on raw floats and rounds
// only when a number leaves the pipeline
func Round2(v float64) float64 {
	if v < 0 {
		return -Round2(-v)
	}
	return float64(int64(v*100+0.5)) / 100
}
