package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	calendardomain "github.com/smallbiznis/sellerflow/internal/calendar/domain"
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Cfg      config.Config
	Defaults *config.PricingDefaultsHolder
	Repo     calendardomain.Repository
}

type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	loc      *time.Location
	defaults *config.PricingDefaultsHolder
	repo     calendardomain.Repository
}

func NewService(p Params) (calendardomain.Service, error) {
	tz := strings.TrimSpace(p.Cfg.Business.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, calendardomain.ErrInvalidTimezone
	}
	return &Service{
		log:      p.Log.Named("calendar.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		loc:      loc,
		defaults: p.Defaults,
		repo:     p.Repo,
	}, nil
}

// Current returns the calendar snapshot, falling back to the configured
// defaults while no windows have been stored.
func (s *Service) Current(ctx context.Context) (*calendardomain.Calendar, error) {
	windows, err := s.ListWindows(ctx)
	if err != nil {
		return nil, err
	}
	return calendardomain.NewCalendar(windows, s.loc)
}

func (s *Service) IsOpen(ctx context.Context, t time.Time) (bool, error) {
	cal, err := s.Current(ctx)
	if err != nil {
		return false, err
	}
	return cal.IsOpen(t), nil
}

func (s *Service) AddBusinessHours(ctx context.Context, from time.Time, hours decimal.Decimal) (time.Time, error) {
	cal, err := s.Current(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return cal.AddBusinessHours(from, hours)
}

func (s *Service) ListWindows(ctx context.Context) ([]calendardomain.BusinessHourWindow, error) {
	windows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(windows) > 0 {
		return windows, nil
	}

	var fallback []calendardomain.BusinessHourWindow
	if s.defaults != nil {
		for _, d := range s.defaults.Get().BusinessHours {
			fallback = append(fallback, calendardomain.BusinessHourWindow{
				DayOfWeek: d.DayOfWeek,
				StartTime: d.StartTime,
				EndTime:   d.EndTime,
				IsOpen:    d.IsOpen,
			})
		}
	}
	return fallback, nil
}

func (s *Service) ReplaceWindows(ctx context.Context, req []calendardomain.WindowRequest) ([]calendardomain.BusinessHourWindow, error) {
	now := s.clock.Now().UTC()
	windows := make([]calendardomain.BusinessHourWindow, 0, len(req))
	for _, item := range req {
		windows = append(windows, calendardomain.BusinessHourWindow{
			ID:        s.genID.Generate(),
			DayOfWeek: item.DayOfWeek,
			StartTime: strings.TrimSpace(item.StartTime),
			EndTime:   strings.TrimSpace(item.EndTime),
			IsOpen:    item.IsOpen,
			UpdatedAt: now,
		})
	}

	// reject sets that would leave SLA computation without forward progress
	cal, err := calendardomain.NewCalendar(windows, s.loc)
	if err != nil {
		return nil, err
	}
	if _, err := cal.AddBusinessHours(now, decimal.Zero); err != nil {
		return nil, err
	}

	if err := s.repo.ReplaceAll(ctx, windows); err != nil {
		return nil, err
	}
	s.log.Info("business hours replaced", zap.Int("windows", len(windows)))
	return windows, nil
}
