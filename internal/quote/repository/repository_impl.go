package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellerflow/internal/quote/domain"
	"gorm.io/gorm"
)

const quoteColumns = `id, quote_number, customer_id, region, is_inter_lab, created_by, status,
	payment_condition_id, valid_until, subtotal, total_offered, total_discount, total_margin_value,
	total_margin_percent, coupon_value, is_authorized, requires_approval, required_approver_role,
	governing_rule_id, approval_cycle, version, notes, created_at, updated_at`

const itemColumns = `id, quote_id, position, product_id, product_name, quantity, base_cost,
	list_price_override, list_price, offered_unit_price, discount_percent, offered_price,
	minimum_price, margin_value, margin_percent, band, is_authorized, required_approver_role,
	matched_rule_id, notes, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, q *domain.Quote) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`INSERT INTO quotes (`+quoteColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, q.QuoteNumber, q.CustomerID, q.Region, q.IsInterLab, q.CreatedBy, q.Status,
			q.PaymentConditionID, q.ValidUntil,
			q.Totals.Subtotal, q.Totals.TotalOffered, q.Totals.TotalDiscount, q.Totals.TotalMarginValue,
			q.Totals.TotalMarginPercent, q.Totals.CouponValue,
			q.IsAuthorized, q.RequiresApproval, q.RequiredApproverRole, q.GoverningRuleID,
			q.ApprovalCycle, q.Version, q.Notes, q.CreatedAt, q.UpdatedAt,
		).Error; err != nil {
			return err
		}
		return insertItems(tx, q.Items)
	})
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Quote, error) {
	var q domain.Quote
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = ? LIMIT 1`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}
	if err := db.WithContext(ctx).Raw(query, id).Scan(&q).Error; err != nil {
		return nil, err
	}
	if q.ID == 0 {
		return nil, nil
	}

	var items []domain.QuoteItem
	if err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM quote_items WHERE quote_id = ? ORDER BY position ASC, id ASC`,
		id,
	).Scan(&items).Error; err != nil {
		return nil, err
	}
	q.Items = items
	return &q, nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, q *domain.Quote, withItems bool) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`UPDATE quotes SET
				status = ?, payment_condition_id = ?, valid_until = ?,
				subtotal = ?, total_offered = ?, total_discount = ?, total_margin_value = ?,
				total_margin_percent = ?, coupon_value = ?,
				is_authorized = ?, requires_approval = ?, required_approver_role = ?,
				governing_rule_id = ?, approval_cycle = ?, notes = ?, updated_at = ?,
				version = version + 1
			 WHERE id = ? AND version = ?`,
			q.Status, q.PaymentConditionID, q.ValidUntil,
			q.Totals.Subtotal, q.Totals.TotalOffered, q.Totals.TotalDiscount, q.Totals.TotalMarginValue,
			q.Totals.TotalMarginPercent, q.Totals.CouponValue,
			q.IsAuthorized, q.RequiresApproval, q.RequiredApproverRole,
			q.GoverningRuleID, q.ApprovalCycle, q.Notes, q.UpdatedAt,
			q.ID, q.Version,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrVersionConflict
		}
		q.Version++

		if !withItems {
			return nil
		}
		if err := tx.Exec(`DELETE FROM quote_items WHERE quote_id = ?`, q.ID).Error; err != nil {
			return err
		}
		return insertItems(tx, q.Items)
	})
}

func (r *repo) CountNumbersWithPrefix(ctx context.Context, db *gorm.DB, prefix string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM quotes WHERE quote_number LIKE ?`,
		prefix+"%",
	).Scan(&count).Error
	return count, err
}

func (r *repo) ListExpirable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM quotes
		 WHERE valid_until < ? AND status IN ?
		 ORDER BY valid_until ASC, id ASC
		 LIMIT ?`,
		now,
		[]domain.Status{domain.StatusDraft, domain.StatusCalculated, domain.StatusApproved, domain.StatusSent},
		limit,
	).Scan(&ids).Error
	return ids, err
}

func insertItems(tx *gorm.DB, items []domain.QuoteItem) error {
	for _, item := range items {
		if err := tx.Exec(
			`INSERT INTO quote_items (`+itemColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.QuoteID, item.Position, item.ProductID, item.ProductName, item.Quantity,
			item.BaseCost, item.ListPriceOverride, item.ListPrice, item.OfferedUnitPrice,
			item.DiscountPercent, item.OfferedPrice, item.MinimumPrice, item.MarginValue,
			item.MarginPercent, item.Band, item.IsAuthorized, item.RequiredApproverRole,
			item.MatchedRuleID, item.Notes, item.CreatedAt, item.UpdatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}
