package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Repository interface {
	List(ctx context.Context) ([]BusinessHourWindow, error)
	ReplaceAll(ctx context.Context, windows []BusinessHourWindow) error
}

type Service interface {
	Current(ctx context.Context) (*Calendar, error)
	IsOpen(ctx context.Context, t time.Time) (bool, error)
	AddBusinessHours(ctx context.Context, from time.Time, hours decimal.Decimal) (time.Time, error)
	ListWindows(ctx context.Context) ([]BusinessHourWindow, error)
	ReplaceWindows(ctx context.Context, req []WindowRequest) ([]BusinessHourWindow, error)
}

type WindowRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsOpen    bool   `json:"is_open"`
}
