package core

import "time"

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate formats t as a YYYY-MM-DD date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Today returns the current date as YYYY-MM-DD.
func Today() string {
	return FormatDate(NowFunc())
}
