package chat

import (
	"fmt"
	"time"
)

// naiveLayouts are tried when a timestamp carries no zone offset; they are
// interpreted in local time. Fractional seconds are accepted by the parser
// even though the layouts do not spell them out.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseTime parses an export timestamp. The second result is false for
// empty or malformed input.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	// Date-only strings are UTC midnight.
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Millis returns the timestamp as unix milliseconds, or 0 when it cannot be
// parsed. Zero doubles as the "oldest" sentinel when sorting.
func Millis(s string) int64 {
	t, ok := ParseTime(s)
	if !ok {
		return 0
	}
	return t.UnixMilli()
}

// FormatCreated renders a timestamp as "2 Jan 15:04" in local time.
func FormatCreated(s string) string {
	t, ok := ParseTime(s)
	if !ok {
		return "Invalid date"
	}
	return t.Local().Format("2 Jan 15:04")
}

// Relative describes how long ago s was, e.g. "3 days ago". Unparsable
// input is returned as-is.
func Relative(s string, now time.Time) string {
	t, ok := ParseTime(s)
	if !ok {
		return s
	}

	diff := now.Sub(t)
	minutes := int(diff.Minutes())
	hours := int(diff.Hours())
	days := hours / 24
	weeks := days / 7
	months := days / 30
	years := days / 365

	switch {
	case minutes < 60:
		if minutes <= 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	case hours < 24:
		return plural(hours, "hour")
	case days < 7:
		return plural(days, "day")
	case weeks < 4:
		return plural(weeks, "week")
	case months < 12:
		return plural(months, "month")
	default:
		return plural(years, "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// Ago is the compact form used in file lists: "Just now", "5m ago", "3h ago",
// "2d ago", then a plain date.
func Ago(s string, now time.Time) string {
	t, ok := ParseTime(s)
	if !ok {
		return s
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours())/24)
	}
	return t.Local().Format("2 Jan 2006")
}
