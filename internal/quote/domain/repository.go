package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, q *Quote) error
	// FindByID loads the quote and its items. forUpdate locks the row on
	// databases that support it.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Quote, error)
	// Save writes q when its stored version still equals q.Version and bumps
	// the version. Items are replaced when withItems is set.
	Save(ctx context.Context, db *gorm.DB, q *Quote, withItems bool) error
	CountNumbersWithPrefix(ctx context.Context, db *gorm.DB, prefix string) (int64, error)
	ListExpirable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error)
}

type Service interface {
	Create(ctx context.Context, req CreateQuoteRequest) (*Quote, error)
	Get(ctx context.Context, id string) (*Quote, error)
	AddItem(ctx context.Context, id string, req ItemRequest) (*Quote, error)
	UpdateItem(ctx context.Context, id string, itemID string, req UpdateItemRequest) (*Quote, error)
	RemoveItem(ctx context.Context, id string, itemID string) (*Quote, error)
	Reset(ctx context.Context, id string) (*Quote, error)
	Send(ctx context.Context, id string) (*Quote, error)
	Convert(ctx context.Context, id string, req ConvertRequest) (*Quote, error)
	// ExpireStale moves quotes past their validity date to expired.
	ExpireStale(ctx context.Context) (int, error)

	// Pricer resolves the configuration snapshot and rule set for region.
	Pricer(ctx context.Context, quote *Quote) (Pricer, error)
}

type CreateQuoteRequest struct {
	CustomerID         string        `json:"customer_id"`
	Region             string        `json:"region"`
	IsInterLab         bool          `json:"is_inter_lab"`
	PaymentConditionID *string       `json:"payment_condition_id,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	Items              []ItemRequest `json:"items,omitempty"`
}

type ItemRequest struct {
	ProductID        string           `json:"product_id"`
	ProductName      string           `json:"product_name"`
	Quantity         int64            `json:"quantity"`
	BaseCost         decimal.Decimal  `json:"base_cost"`
	ListPrice        *decimal.Decimal `json:"list_price,omitempty"`
	OfferedUnitPrice decimal.Decimal  `json:"offered_unit_price"`
	DiscountPercent  decimal.Decimal  `json:"discount_percent"`
	Notes            string           `json:"notes,omitempty"`
}

func (r ItemRequest) Input() ItemInput {
	return ItemInput{
		ProductID:        r.ProductID,
		ProductName:      r.ProductName,
		Quantity:         r.Quantity,
		BaseCost:         r.BaseCost,
		ListPrice:        r.ListPrice,
		OfferedUnitPrice: r.OfferedUnitPrice,
		DiscountPercent:  r.DiscountPercent,
		Notes:            r.Notes,
	}
}

type UpdateItemRequest struct {
	ProductName      *string          `json:"product_name,omitempty"`
	Quantity         *int64           `json:"quantity,omitempty"`
	BaseCost         *decimal.Decimal `json:"base_cost,omitempty"`
	ListPrice        *decimal.Decimal `json:"list_price,omitempty"`
	ClearListPrice   bool             `json:"clear_list_price,omitempty"`
	OfferedUnitPrice *decimal.Decimal `json:"offered_unit_price,omitempty"`
	DiscountPercent  *decimal.Decimal `json:"discount_percent,omitempty"`
	Notes            *string          `json:"notes,omitempty"`
}

func (r UpdateItemRequest) Patch() ItemPatch {
	return ItemPatch{
		ProductName:      r.ProductName,
		Quantity:         r.Quantity,
		BaseCost:         r.BaseCost,
		ListPrice:        r.ListPrice,
		ClearListPrice:   r.ClearListPrice,
		OfferedUnitPrice: r.OfferedUnitPrice,
		DiscountPercent:  r.DiscountPercent,
		Notes:            r.Notes,
	}
}

type ConvertRequest struct {
	OrderReference string `json:"order_reference,omitempty"`
}
