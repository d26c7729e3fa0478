package repository

import (
	"context"

	calendardomain "github.com/smallbiznis/sellerflow/internal/calendar/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) calendardomain.Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]calendardomain.BusinessHourWindow, error) {
	var items []calendardomain.BusinessHourWindow
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, day_of_week, start_time, end_time, is_open, updated_at
		 FROM business_hours
		 ORDER BY day_of_week ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ReplaceAll(ctx context.Context, windows []calendardomain.BusinessHourWindow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM business_hours`).Error; err != nil {
			return err
		}
		for _, w := range windows {
			if err := tx.Exec(
				`INSERT INTO business_hours (id, day_of_week, start_time, end_time, is_open, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				w.ID,
				w.DayOfWeek,
				w.StartTime,
				w.EndTime,
				w.IsOpen,
				w.UpdatedAt,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
