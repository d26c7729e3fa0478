package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var brt = time.FixedZone("BRT", -3*3600)

func weekdayWindows(start, end string) []BusinessHourWindow {
	windows := make([]BusinessHourWindow, 0, 7)
	for day := 0; day < 7; day++ {
		windows = append(windows, BusinessHourWindow{
			DayOfWeek: day,
			StartTime: start,
			EndTime:   end,
			IsOpen:    day >= 1 && day <= 5,
		})
	}
	return windows
}

func newTestCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := NewCalendar(weekdayWindows("08:00", "18:00"), brt)
	require.NoError(t, err)
	return cal
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.October, day, hour, minute, 0, 0, brt)
}

func TestAddBusinessHoursSkipsWeekend(t *testing.T) {
	cal := newTestCalendar(t)

	// Friday 19:00 + 2h lands Monday 10:00
	got, err := cal.AddBusinessHours(at(16, 19, 0), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, got.Equal(at(19, 10, 0)), "got %s", got.In(brt))
}

func TestAddBusinessHoursWithinSameDay(t *testing.T) {
	cal := newTestCalendar(t)

	got, err := cal.AddBusinessHours(at(14, 9, 30), decimal.NewFromFloat(1.5))
	require.NoError(t, err)
	assert.True(t, got.Equal(at(14, 11, 0)))
}

func TestAddBusinessHoursCarriesAcrossClose(t *testing.T) {
	cal := newTestCalendar(t)

	// Wednesday 17:00 + 3h: 1h today, 2h Thursday
	got, err := cal.AddBusinessHours(at(14, 17, 0), decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.True(t, got.Equal(at(15, 10, 0)))
}

func TestAddBusinessHoursZeroReturnsNextOpenInstant(t *testing.T) {
	cal := newTestCalendar(t)

	got, err := cal.AddBusinessHours(at(17, 12, 0), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, got.Equal(at(19, 8, 0)))

	open := at(14, 10, 0)
	got, err = cal.AddBusinessHours(open, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, got.Equal(open))
}

func TestAddBusinessHoursLongSLA(t *testing.T) {
	cal := newTestCalendar(t)

	// 120 open hours is twelve 10h business days
	got, err := cal.AddBusinessHours(at(12, 8, 0), decimal.NewFromInt(120))
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, time.October, 27, 18, 0, 0, 0, brt)), "got %s", got.In(brt))
}

func TestAddBusinessHoursIsMonotonic(t *testing.T) {
	cal := newTestCalendar(t)

	start := at(12, 0, 0)
	var previous time.Time
	for i := 0; i < 7*24*4; i++ {
		from := start.Add(time.Duration(i) * 15 * time.Minute)
		got, err := cal.AddBusinessHours(from, decimal.NewFromInt(5))
		require.NoError(t, err)
		assert.False(t, got.Before(previous), "non-monotonic at %s", from)
		previous = got
	}

	from := at(14, 10, 0)
	var last time.Time
	for h := 0; h <= 40; h++ {
		got, err := cal.AddBusinessHours(from, decimal.NewFromInt(int64(h)))
		require.NoError(t, err)
		assert.False(t, got.Before(last))
		last = got
	}
}

func TestAddBusinessHoursAllClosed(t *testing.T) {
	windows := weekdayWindows("08:00", "18:00")
	for i := range windows {
		windows[i].IsOpen = false
	}
	cal, err := NewCalendar(windows, brt)
	require.NoError(t, err)

	_, err = cal.AddBusinessHours(at(14, 10, 0), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNoOpenWindows)
}

func TestAddBusinessHoursRejectsNegative(t *testing.T) {
	cal := newTestCalendar(t)
	_, err := cal.AddBusinessHours(at(14, 10, 0), decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrNegativeHours)
}

func TestIsOpen(t *testing.T) {
	cal := newTestCalendar(t)

	assert.True(t, cal.IsOpen(at(14, 8, 0)))
	assert.True(t, cal.IsOpen(at(14, 17, 59)))
	assert.False(t, cal.IsOpen(at(14, 18, 0)))
	assert.False(t, cal.IsOpen(at(14, 7, 59)))
	assert.False(t, cal.IsOpen(at(17, 10, 0)))
	// 13:00 UTC is 10:00 in BRT
	assert.True(t, cal.IsOpen(time.Date(2026, time.October, 14, 13, 0, 0, 0, time.UTC)))
}

func TestElapsedBusinessHours(t *testing.T) {
	cal := newTestCalendar(t)

	got := cal.ElapsedBusinessHours(at(16, 17, 0), at(19, 9, 30))
	assert.True(t, got.Equal(decimal.NewFromFloat(2.5)), "got %s", got)
	assert.True(t, cal.ElapsedBusinessHours(at(19, 9, 0), at(16, 9, 0)).IsZero())
}

func TestNewCalendarValidation(t *testing.T) {
	_, err := NewCalendar([]BusinessHourWindow{{DayOfWeek: 7, StartTime: "08:00", EndTime: "18:00", IsOpen: true}}, brt)
	assert.ErrorIs(t, err, ErrInvalidDayOfWeek)

	_, err = NewCalendar([]BusinessHourWindow{{DayOfWeek: 1, StartTime: "18:00", EndTime: "08:00", IsOpen: true}}, brt)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewCalendar([]BusinessHourWindow{{DayOfWeek: 1, StartTime: "8am", EndTime: "18:00", IsOpen: true}}, brt)
	assert.ErrorIs(t, err, ErrInvalidTimeOfDay)

	_, err = NewCalendar([]BusinessHourWindow{
		{DayOfWeek: 1, StartTime: "08:00", EndTime: "18:00", IsOpen: true},
		{DayOfWeek: 1, StartTime: "08:00", EndTime: "12:00", IsOpen: true},
	}, brt)
	assert.ErrorIs(t, err, ErrDuplicateWeekday)
}

func TestAddBusinessHoursRejectsOverflowingSpan(t *testing.T) {
	cal := newTestCalendar(t)
	from := at(14, 12, 0)

	_, err := cal.AddBusinessHours(from, decimal.NewFromInt(3_000_000))
	assert.ErrorIs(t, err, ErrHoursOutOfRange)

	// the largest accepted span still lands after from
	got, err := cal.AddBusinessHours(from, decimal.NewFromInt(1_000_000))
	require.NoError(t, err)
	assert.True(t, got.After(from), "got %s", got)
}
