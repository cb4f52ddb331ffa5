// Package timeslot holds the wall-clock arithmetic used by booking and lab
// rules: "HH:MM" parsing, half-open intervals and calendar-day math.
//
// Booking times are local to the lab's day and carry no zone. Days are
// stored as UTC midnight so that equality on a date is exact.
package timeslot

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	MinutesPerHour = 60
)

var (
	ErrInvalidTime  = errors.New("time must be in HH:MM 24-hour format")
	ErrInvalidDate  = errors.New("date must be in YYYY-MM-DD or RFC3339 format")
	ErrInvalidRange = errors.New("end time must be after start time")

	clockRegex = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)
)

// Valid reports whether s is an H:MM or HH:MM 24-hour clock time.
func Valid(s string) bool {
	return clockRegex.MatchString(strings.TrimSpace(s))
}

// Minutes converts a clock time to minutes since midnight.
func Minutes(s string) (int, error) {
	m := clockRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*MinutesPerHour + minutes, nil
}

// Format renders minutes since midnight as zero-padded HH:MM.
func Format(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/MinutesPerHour, minutes%MinutesPerHour)
}

// Normalize zero-pads a clock time so lexicographic order matches
// chronological order ("9:00" becomes "09:00").
func Normalize(s string) (string, error) {
	m, err := Minutes(s)
	if err != nil {
		return "", err
	}
	return Format(m), nil
}

// Duration is the length of [start, end) in minutes.
func Duration(start, end string) (int, error) {
	r, err := ParseRange(start, end)
	if err != nil {
		return 0, err
	}
	return r.Minutes(), nil
}

// Range is a half-open interval of minutes since midnight.
type Range struct {
	Start int
	End   int
}

func ParseRange(start, end string) (Range, error) {
	s, err := Minutes(start)
	if err != nil {
		return Range{}, err
	}
	e, err := Minutes(end)
	if err != nil {
		return Range{}, err
	}
	if e <= s {
		return Range{}, ErrInvalidRange
	}
	return Range{Start: s, End: e}, nil
}

// Within reports whether r lies entirely inside outer.
func (r Range) Within(outer Range) bool {
	return r.Start >= outer.Start && r.End <= outer.End
}

func (r Range) Minutes() int {
	return r.End - r.Start
}

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp and returns the UTC
// midnight of that calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Day(t), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Day truncates t to UTC midnight of its calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// At combines a calendar day with a clock time into an absolute instant.
func At(day time.Time, clock string) (time.Time, error) {
	m, err := Minutes(clock)
	if err != nil {
		return time.Time{}, err
	}
	return Day(day).Add(time.Duration(m) * time.Minute), nil
}

// DaysInclusive counts calendar days in [from, to]. Returns 0 when to is
// before from.
func DaysInclusive(from, to time.Time) int {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
