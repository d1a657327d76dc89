package types

import (
	"time"
)

// DateOnly truncates a timestamp to midnight UTC. All billing period
// boundaries are stored as UTC dates.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextDay returns the day after the given date.
func NextDay(t time.Time) time.Time {
	return DateOnly(t).AddDate(0, 0, 1)
}

// AddClampedDate adds the given years, months and days to t while clamping
// the day of month to the last valid day of the target month. Plain
// time.AddDate would normalize Jan 31 + 1 month to Mar 2/3; billing periods
// must land on Feb 28/29 instead.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Find the last valid day of the new month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.Add(-24 * time.Hour).Day()

	newD := d + days
	if newD > lastDay {
		newD = lastDay
	}

	return time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
}

// FormatDate renders a date the way it appears on invoice line items.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
