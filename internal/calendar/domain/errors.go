package domain

import "github.com/smallbiznis/sellerflow/internal/errs"

var (
	ErrNegativeHours    = errs.New(errs.ErrValidation, "negative_business_hours")
	ErrHoursOutOfRange  = errs.New(errs.ErrValidation, "business_hours_out_of_range")
	ErrInvalidDayOfWeek = errs.New(errs.ErrValidation, "invalid_day_of_week")
	ErrInvalidTimeOfDay = errs.New(errs.ErrValidation, "invalid_time_of_day")
	ErrInvalidWindow    = errs.New(errs.ErrValidation, "invalid_business_hour_window")
	ErrDuplicateWeekday = errs.New(errs.ErrValidation, "duplicate_business_hour_weekday")
	ErrNoOpenWindows    = errs.New(errs.ErrConfiguration, "no_open_business_hours")
	ErrInvalidTimezone  = errs.New(errs.ErrConfiguration, "invalid_business_timezone")
)
