package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// BusinessHourWindow is one weekday's opening hours. Day 0 is Sunday.
type BusinessHourWindow struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	DayOfWeek int          `gorm:"column:day_of_week;not null;uniqueIndex"`
	StartTime string       `gorm:"column:start_time;type:text;not null"`
	EndTime   string       `gorm:"column:end_time;type:text;not null"`
	IsOpen    bool         `gorm:"column:is_open;not null;default:true"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (BusinessHourWindow) TableName() string { return "business_hours" }

func (w BusinessHourWindow) Validate() error {
	if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
		return ErrInvalidDayOfWeek
	}
	start, err := ParseTimeOfDay(w.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseTimeOfDay(w.EndTime)
	if err != nil {
		return err
	}
	if w.IsOpen && end <= start {
		return ErrInvalidWindow
	}
	return nil
}

// ParseTimeOfDay parses "HH:MM" (or "HH:MM:SS") into an offset from midnight.
func ParseTimeOfDay(raw string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
	}
	values := make([]int, 3)
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
		}
		values[i] = v
	}
	h, m, s := values[0], values[1], values[2]
	if h > 24 || m > 59 || s > 59 || (h == 24 && (m > 0 || s > 0)) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, nil
}
