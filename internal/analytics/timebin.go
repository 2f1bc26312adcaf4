package analytics

import "time"

// Weekdays are the day-of-week labels, indexed by time.Weekday.
var Weekdays = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// HourBin is a half-open [Start, End) range of clock hours.
type HourBin struct {
	Label string
	Start int
	End   int
}

// HourBins are the six fixed time-of-day ranges, in chronological order.
var HourBins = []HourBin{
	{Label: "0-3", Start: 0, End: 3},
	{Label: "3-6", Start: 3, End: 6},
	{Label: "6-11", Start: 6, End: 11},
	{Label: "11-15", Start: 11, End: 15},
	{Label: "15-18", Start: 15, End: 18},
	{Label: "18-24", Start: 18, End: 24},
}

// DayOfWeekLabel returns the weekday label for t.
func DayOfWeekLabel(t time.Time) string {
	return Weekdays[t.Weekday()]
}

// HourBinIndex returns the index into HourBins for an hour, or -1.
func HourBinIndex(hour int) int {
	for i, b := range HourBins {
		if hour >= b.Start && hour < b.End {
			return i
		}
	}
	return -1
}

// HourBinFor returns the hour bin label for t.
func HourBinFor(t time.Time) string {
	if i := HourBinIndex(t.Hour()); i >= 0 {
		return HourBins[i].Label
	}
	return ""
}

// dayKey formats the calendar date of t.
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// civilDaysBetween counts calendar days from a to b in a's location.
func civilDaysBetween(a, b time.Time) int {
	b = b.In(a.Location())
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
