// Package calendar advances the simulated date and reports the day-of-month
// triggers used by payroll, billing and aging.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"lifesim/internal/apperr"
)

const layout = "2006-01-02"

// Tick describes the date reached by one daily advance.
type Tick struct {
	Date           time.Time
	IsFirstOfMonth bool
	IsPayday       bool
	YearChanged    bool
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func Parse(s string) (time.Time, error) {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", apperr.ErrValidation, s, err)
	}
	return t, nil
}

func Key(t time.Time) string {
	return t.Format(layout)
}

// Advance moves current forward by exactly one day.
func Advance(current time.Time) (Tick, error) {
	if current.IsZero() {
		return Tick{}, fmt.Errorf("%w: current date is unset", apperr.ErrInvalidState)
	}
	current = Day(current)
	next := current.AddDate(0, 0, 1)
	return Tick{
		Date:           next,
		IsFirstOfMonth: next.Day() == 1,
		IsPayday:       IsPayday(next),
		YearChanged:    next.Year() != current.Year(),
	}, nil
}

func IsPayday(t time.Time) bool {
	return t.Day() == 1 || t.Day() == 14
}

// AddMonth returns the same day of the following month, clamped to that
// month's last day.
func AddMonth(t time.Time) time.Time {
	t = Day(t)
	first := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// PeriodLabel formats t as "Jan 2009".
func PeriodLabel(t time.Time) string {
	return t.Format("Jan 2006")
}

// FormatDate formats t as "January 2, 2009".
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}
