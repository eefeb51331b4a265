// Package dateparse normalizes the date and time expressions users type into
// chat (relative words, weekday names, several delimiter variants) into the
// fixed YYYY-MM-DD / H:MM representation the rest of the module works with.
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical date representation.
const Layout = "2006-01-02"

var (
	dayFirst  = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{4})$`)
	yearFirst = regexp.MustCompile(`^(\d{4})[./-](\d{1,2})[./-](\d{1,2})$`)
	isoDate   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clock     = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
)

var relativeDays = map[string]int{
	"heute":     0,
	"today":     0,
	"morgen":    1,
	"tomorrow":  1,
	"gestern":   -1,
	"yesterday": -1,
}

var weekdays = map[string]time.Weekday{
	"montag":     time.Monday,
	"dienstag":   time.Tuesday,
	"mittwoch":   time.Wednesday,
	"donnerstag": time.Thursday,
	"freitag":    time.Friday,
	"samstag":    time.Saturday,
	"sonntag":    time.Sunday,
	"monday":     time.Monday,
	"tuesday":    time.Tuesday,
	"wednesday":  time.Wednesday,
	"thursday":   time.Thursday,
	"friday":     time.Friday,
	"saturday":   time.Saturday,
	"sunday":     time.Sunday,
}

// Normalize converts a relative day word or an absolute date in day-month-year
// or year-month-day order (delimiters '.', '/', '-') into YYYY-MM-DD.
// It reports false when the input is not a recognizable calendar date.
func Normalize(text string, now time.Time) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if offset, ok := relativeDays[s]; ok {
		return now.AddDate(0, 0, offset).Format(Layout), true
	}
	if m := dayFirst.FindStringSubmatch(s); m != nil {
		return build(m[3], m[2], m[1])
	}
	if m := yearFirst.FindStringSubmatch(s); m != nil {
		return build(m[1], m[2], m[3])
	}
	return "", false
}

func build(year, month, day string) (string, bool) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return t.Format(Layout), true
}

// IsDate reports whether s is already in canonical form.
func IsDate(s string) bool {
	return isoDate.MatchString(s)
}

// IsClock reports whether s is a H:MM or HH:MM time of day.
func IsClock(s string) bool {
	return clock.MatchString(strings.TrimSpace(s))
}

// Weekday resolves a weekday name.
func Weekday(word string) (time.Weekday, bool) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(word))]
	return wd, ok
}

// IsDateWord reports whether word is a relative day or weekday name.
func IsDateWord(word string) bool {
	w := strings.ToLower(strings.TrimSpace(word))
	if _, ok := relativeDays[w]; ok {
		return true
	}
	_, ok := weekdays[w]
	return ok
}

// Resolve turns a date word used in a free-form request into YYYY-MM-DD.
// Weekday names resolve to their next occurrence strictly after today.
// Canonical and absolute dates pass through Normalize.
func Resolve(word string, now time.Time) (string, bool) {
	if wd, ok := Weekday(word); ok {
		add := (int(wd) - int(now.Weekday()) + 7) % 7
		if add == 0 {
			add = 7
		}
		return now.AddDate(0, 0, add).Format(Layout), true
	}
	return Normalize(word, now)
}
