// Package sendwindow holds the calendar math for business-hours sending:
// whether a moment falls inside the configured window, when the window next
// opens, and the day/hour boundaries the limits reset on.
package sendwindow

import (
	"fmt"
	"time"
)

// Window is a daily [StartHour, EndHour) sending window in a business timezone.
type Window struct {
	loc       *time.Location
	startHour int
	endHour   int
}

func New(tz string, startHour, endHour int) (*Window, error) {
	if startHour < 0 || startHour > 23 || endHour < 1 || endHour > 24 || startHour >= endHour {
		return nil, fmt.Errorf("invalid business hours %d-%d", startHour, endHour)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load business timezone %q: %w", tz, err)
	}
	return &Window{loc: loc, startHour: startHour, endHour: endHour}, nil
}

func (w *Window) Location() *time.Location { return w.loc }

// Contains reports whether t falls inside the sending window.
func (w *Window) Contains(t time.Time) bool {
	h := t.In(w.loc).Hour()
	return h >= w.startHour && h < w.endHour
}

// NextOpen returns the next window start strictly after t: today's start hour
// if the window has not opened yet, otherwise tomorrow's.
func (w *Window) NextOpen(t time.Time) time.Time {
	lt := t.In(w.loc)
	open := time.Date(lt.Year(), lt.Month(), lt.Day(), w.startHour, 0, 0, 0, w.loc)
	if !lt.Before(open) {
		open = open.AddDate(0, 0, 1)
	}
	return open
}

// NextDayStart is the start of the next business day's window, used as the
// resume time when a daily limit is exhausted.
func (w *Window) NextDayStart(t time.Time) time.Time {
	lt := t.In(w.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), w.startHour, 0, 0, 0, w.loc).AddDate(0, 0, 1)
}

// DayStart is local midnight in the business timezone; daily send counts are
// aggregated from this boundary.
func (w *Window) DayStart(t time.Time) time.Time {
	lt := t.In(w.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, w.loc)
}

// HourBucket derives the rate-limiter bucket key from the current calendar
// hour (UTC), so the hourly ceiling resets deterministically at hour
// boundaries across all workers.
func HourBucket(t time.Time) string {
	return "send-hour:" + t.UTC().Format("2006-01-02T15")
}

// NextHour is the start of the next calendar hour, the resume time for a
// rate_per_hour deferral.
func NextHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour).Add(time.Hour)
}
