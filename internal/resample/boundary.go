package resample

import (
	"time"

	"github.com/lox/energybill/internal/models"
)

// HourStart returns the start of the wall-clock hour containing t. Minutes
// are removed from the instant itself, so two instants in different
// occurrences of a repeated fall-back hour keep different starts.
func HourStart(t time.Time) time.Time {
	return t.Add(-time.Duration(t.Minute())*time.Minute -
		time.Duration(t.Second())*time.Second -
		time.Duration(t.Nanosecond()))
}

// DayStart returns local midnight of the day containing t.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStart returns Monday 00:00 local of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	back := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-back, 0, 0, 0, 0, t.Location())
}

// PeriodStart returns the start of the g-sized calendar period containing t.
func PeriodStart(t time.Time, g models.Granularity) (time.Time, error) {
	switch g {
	case models.Hourly:
		return HourStart(t), nil
	case models.Daily:
		return DayStart(t), nil
	case models.Weekly:
		return WeekStart(t), nil
	}
	return time.Time{}, &models.UnknownGranularityError{Value: string(g)}
}
