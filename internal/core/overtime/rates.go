package overtime

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rates holds the DKK/hour overtime supplements of one effective band of the
// DBR 2026 collective agreement. Rates never enter the categorization engine;
// they are applied only when amounts are rendered
type Rates struct {
	WeekdayHour12    decimal.Decimal `json:"weekday_hour_1_2"`
	WeekdayHour34    decimal.Decimal `json:"weekday_hour_3_4"`
	WeekdayHour5Plus decimal.Decimal `json:"weekday_hour_5_plus"`

	ScheduledDay   decimal.Decimal `json:"scheduled_day"`
	ScheduledNight decimal.Decimal `json:"scheduled_night"`

	DayOffDay   decimal.Decimal `json:"day_off_day"`
	DayOffNight decimal.Decimal `json:"day_off_night"`

	SaturdayDay   decimal.Decimal `json:"saturday_day"`
	SaturdayNight decimal.Decimal `json:"saturday_night"`

	SundayBeforeNoon decimal.Decimal `json:"sunday_before_noon"`
	SundayAfterNoon  decimal.Decimal `json:"sunday_after_noon"`

	InsufficientNotice decimal.Decimal `json:"insufficient_notice"`
	LunchBreak         decimal.Decimal `json:"lunch_break"`
}

func dkk(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// Effective May 1, 2025 through February 28, 2026
var rates2025 = Rates{
	WeekdayHour12:      dkk("46.70"),
	WeekdayHour34:      dkk("74.55"),
	WeekdayHour5Plus:   dkk("139.50"),
	ScheduledDay:       dkk("46.70"),
	ScheduledNight:     dkk("139.50"),
	DayOffDay:          dkk("74.55"),
	DayOffNight:        dkk("139.50"),
	SaturdayDay:        dkk("74.55"),
	SaturdayNight:      dkk("139.50"),
	SundayBeforeNoon:   dkk("92.95"),
	SundayAfterNoon:    dkk("139.50"),
	InsufficientNotice: dkk("119.10"),
	LunchBreak:         dkk("33.05"),
}

// Effective March 1, 2026 through February 28, 2027
var rates2026 = Rates{
	WeekdayHour12:      dkk("48.10"),
	WeekdayHour34:      dkk("76.80"),
	WeekdayHour5Plus:   dkk("143.70"),
	ScheduledDay:       dkk("48.10"),
	ScheduledNight:     dkk("143.70"),
	DayOffDay:          dkk("76.80"),
	DayOffNight:        dkk("143.70"),
	SaturdayDay:        dkk("76.80"),
	SaturdayNight:      dkk("143.70"),
	SundayBeforeNoon:   dkk("95.75"),
	SundayAfterNoon:    dkk("143.70"),
	InsufficientNotice: dkk("122.70"),
	LunchBreak:         dkk("34.05"),
}

// Effective March 1, 2027 onwards
var rates2027 = Rates{
	WeekdayHour12:      dkk("49.55"),
	WeekdayHour34:      dkk("79.10"),
	WeekdayHour5Plus:   dkk("148.00"),
	ScheduledDay:       dkk("49.55"),
	ScheduledNight:     dkk("148.00"),
	DayOffDay:          dkk("79.10"),
	DayOffNight:        dkk("148.00"),
	SaturdayDay:        dkk("79.10"),
	SaturdayNight:      dkk("148.00"),
	SundayBeforeNoon:   dkk("98.60"),
	SundayAfterNoon:    dkk("148.00"),
	InsufficientNotice: dkk("126.35"),
	LunchBreak:         dkk("35.10"),
}

var (
	rates2026From = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	rates2027From = time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC)
)

// RatesFor returns the rate band effective on the given date
func RatesFor(d time.Time) Rates {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case !day.Before(rates2027From):
		return rates2027
	case !day.Before(rates2026From):
		return rates2026
	default:
		return rates2025
	}
}
