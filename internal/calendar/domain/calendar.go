package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// maxBusinessHours is the largest span whose nanosecond count fits a
// time.Duration.
var maxBusinessHours = decimal.NewFromInt(int64(math.MaxInt64 / time.Hour))

type openWindow struct {
	open  bool
	start time.Duration
	end   time.Duration
}

// Calendar is an immutable business-hours snapshot in a fixed location.
type Calendar struct {
	loc  *time.Location
	days [7]openWindow
	// weekly open time, zero when no window can ever make progress
	weekly time.Duration
}

// NewCalendar builds a calendar from weekday windows. Missing weekdays are closed.
func NewCalendar(windows []BusinessHourWindow, loc *time.Location) (*Calendar, error) {
	if loc == nil {
		return nil, ErrInvalidTimezone
	}
	cal := &Calendar{loc: loc}
	seen := map[int]bool{}
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return nil, err
		}
		if seen[w.DayOfWeek] {
			return nil, ErrDuplicateWeekday
		}
		seen[w.DayOfWeek] = true
		if !w.IsOpen {
			continue
		}
		start, _ := ParseTimeOfDay(w.StartTime)
		end, _ := ParseTimeOfDay(w.EndTime)
		cal.days[w.DayOfWeek] = openWindow{open: true, start: start, end: end}
		cal.weekly += end - start
	}
	return cal, nil
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsOpen reports whether t falls inside its weekday's [start, end) window.
func (c *Calendar) IsOpen(t time.Time) bool {
	local := t.In(c.loc)
	w := c.days[int(local.Weekday())]
	if !w.open {
		return false
	}
	offset := local.Sub(midnight(local))
	return offset >= w.start && offset < w.end
}

// AddBusinessHours advances from by hours of open time. Zero hours yields the
// next open instant at or after from.
func (c *Calendar) AddBusinessHours(from time.Time, hours decimal.Decimal) (time.Time, error) {
	if hours.IsNegative() {
		return time.Time{}, ErrNegativeHours
	}
	if hours.GreaterThan(maxBusinessHours) {
		return time.Time{}, ErrHoursOutOfRange
	}
	if c.weekly <= 0 {
		return time.Time{}, ErrNoOpenWindows
	}

	remaining := time.Duration(hours.Mul(decimal.NewFromInt(int64(time.Hour))).Round(0).IntPart())

	cursor := from.In(c.loc)

	// skip whole weeks so large SLAs stay cheap
	if weeks := remaining / c.weekly; weeks > 1 {
		remaining -= (weeks - 1) * c.weekly
		cursor = cursor.AddDate(0, 0, int(weeks-1)*7)
	}

	for {
		day := midnight(cursor)
		w := c.days[int(cursor.Weekday())]
		if w.open {
			windowStart := day.Add(w.start)
			windowEnd := day.Add(w.end)
			if cursor.Before(windowStart) {
				cursor = windowStart
			}
			if cursor.Before(windowEnd) {
				available := windowEnd.Sub(cursor)
				if remaining <= available {
					return cursor.Add(remaining).UTC(), nil
				}
				remaining -= available
			}
		}
		cursor = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, c.loc)
	}
}

// ElapsedBusinessHours counts open hours between from and to.
func (c *Calendar) ElapsedBusinessHours(from, to time.Time) decimal.Decimal {
	if !to.After(from) || c.weekly <= 0 {
		return decimal.Zero
	}

	var elapsed time.Duration
	cursor := from.In(c.loc)
	end := to.In(c.loc)
	for cursor.Before(end) {
		day := midnight(cursor)
		w := c.days[int(cursor.Weekday())]
		if w.open {
			windowStart := day.Add(w.start)
			windowEnd := day.Add(w.end)
			start := maxTime(cursor, windowStart)
			stop := minTime(end, windowEnd)
			if start.Before(stop) {
				elapsed += stop.Sub(start)
			}
		}
		cursor = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, c.loc)
	}
	return decimal.NewFromInt(int64(elapsed)).Div(decimal.NewFromInt(int64(time.Hour)))
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
