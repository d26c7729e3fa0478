package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	calendardomain "github.com/smallbiznis/sellerflow/internal/calendar/domain"
	"github.com/smallbiznis/sellerflow/internal/calendar/repository"
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (calendardomain.Service, *clock.FakeClock) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS business_hours (
		id BIGINT PRIMARY KEY,
		day_of_week INTEGER NOT NULL UNIQUE,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		is_open BOOLEAN NOT NULL DEFAULT true,
		updated_at TIMESTAMP NOT NULL
	)`).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC))

	svc, err := NewService(Params{
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Cfg:      config.Config{Business: config.BusinessConfig{Timezone: "UTC"}},
		Defaults: config.NewStaticPricingDefaultsHolder(config.DefaultPricingDefaults()),
		Repo:     repository.NewRepository(db),
	})
	require.NoError(t, err)
	return svc, clk
}

func TestServiceFallsBackToDefaults(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	windows, err := svc.ListWindows(ctx)
	require.NoError(t, err)
	assert.Len(t, windows, 7)

	// Friday 19:00 UTC + 2h
	got, err := svc.AddBusinessHours(ctx, time.Date(2026, time.October, 16, 19, 0, 0, 0, time.UTC), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)), "got %s", got)
}

func TestServiceReplaceWindows(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := make([]calendardomain.WindowRequest, 0, 7)
	for day := 0; day < 7; day++ {
		req = append(req, calendardomain.WindowRequest{DayOfWeek: day, StartTime: "10:00", EndTime: "16:00", IsOpen: day != 0})
	}
	stored, err := svc.ReplaceWindows(ctx, req)
	require.NoError(t, err)
	assert.Len(t, stored, 7)

	open, err := svc.IsOpen(ctx, time.Date(2026, time.October, 17, 11, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, open, "saturday is open after replacement")

	open, err = svc.IsOpen(ctx, time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, open)
}

func TestServiceReplaceWindowsRejectsAllClosed(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := []calendardomain.WindowRequest{{DayOfWeek: 1, StartTime: "08:00", EndTime: "18:00", IsOpen: false}}
	_, err := svc.ReplaceWindows(ctx, req)
	assert.ErrorIs(t, err, calendardomain.ErrNoOpenWindows)

	windows, err := svc.ListWindows(ctx)
	require.NoError(t, err)
	assert.Len(t, windows, 7, "defaults remain after a rejected replacement")
}
