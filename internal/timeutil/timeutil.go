// ABOUTME: Named time periods for report filtering.
// ABOUTME: Maps "today"/"yesterday"/"week"/"month" to RFC-3339 UTC cutoffs.

package timeutil

import "time"

// StartOfToday returns midnight UTC of the current day.
func StartOfToday() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfYesterday returns midnight UTC of the previous day.
func StartOfYesterday() time.Time {
	return StartOfToday().AddDate(0, 0, -1)
}

// StartOfWeek returns midnight UTC of the most recent Sunday.
func StartOfWeek() time.Time {
	today := StartOfToday()
	return today.AddDate(0, 0, -int(today.Weekday()))
}

// StartOfMonth returns midnight UTC of the first of the current month.
func StartOfMonth() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParsePeriod resolves a period name to its cutoff time. The second
// return is false for unknown names.
func ParsePeriod(period string) (time.Time, bool) {
	switch period {
	case "today":
		return StartOfToday(), true
	case "yesterday":
		return StartOfYesterday(), true
	case "week":
		return StartOfWeek(), true
	case "month":
		return StartOfMonth(), true
	default:
		return time.Time{}, false
	}
}

// SinceString resolves a period name to the RFC-3339 string the read
// model filters on. Unknown names yield "" (no filter).
func SinceString(period string) string {
	cutoff, ok := ParsePeriod(period)
	if !ok {
		return ""
	}
	return cutoff.Format(time.RFC3339)
}
