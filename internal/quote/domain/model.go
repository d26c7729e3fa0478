package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/sellerflow/internal/pricing/domain"
)

type Totals struct {
	Subtotal           decimal.Decimal `gorm:"column:subtotal;type:numeric(18,2);not null" json:"subtotal"`
	TotalOffered       decimal.Decimal `gorm:"column:total_offered;type:numeric(18,2);not null" json:"total_offered"`
	TotalDiscount      decimal.Decimal `gorm:"column:total_discount;type:numeric(18,2);not null" json:"total_discount"`
	TotalMarginValue   decimal.Decimal `gorm:"column:total_margin_value;type:numeric(18,2);not null" json:"total_margin_value"`
	TotalMarginPercent decimal.Decimal `gorm:"column:total_margin_percent;type:numeric(9,2);not null" json:"total_margin_percent"`
	CouponValue        decimal.Decimal `gorm:"column:coupon_value;type:numeric(18,2);not null" json:"coupon_value"`
}

type Quote struct {
	ID                   snowflake.ID         `gorm:"primaryKey" json:"id"`
	QuoteNumber          string               `gorm:"column:quote_number;type:text;not null;uniqueIndex" json:"quote_number"`
	CustomerID           string               `gorm:"column:customer_id;type:text;not null" json:"customer_id"`
	Region               pricingdomain.Region `gorm:"type:text;not null" json:"region"`
	IsInterLab           bool                 `gorm:"column:is_inter_lab;not null" json:"is_inter_lab"`
	CreatedBy            string               `gorm:"column:created_by;type:text;not null" json:"created_by"`
	Status               Status               `gorm:"type:text;not null" json:"status"`
	PaymentConditionID   *string              `gorm:"column:payment_condition_id;type:text" json:"payment_condition_id,omitempty"`
	ValidUntil           time.Time            `gorm:"column:valid_until;not null" json:"valid_until"`
	Totals               Totals               `gorm:"embedded" json:"totals"`
	IsAuthorized         bool                 `gorm:"column:is_authorized;not null" json:"is_authorized"`
	RequiresApproval     bool                 `gorm:"column:requires_approval;not null" json:"requires_approval"`
	RequiredApproverRole *string              `gorm:"column:required_approver_role;type:text" json:"required_approver_role,omitempty"`
	GoverningRuleID      *snowflake.ID        `gorm:"column:governing_rule_id" json:"governing_rule_id,omitempty"`
	ApprovalCycle        int                  `gorm:"column:approval_cycle;not null" json:"approval_cycle"`
	Version              int                  `gorm:"not null" json:"version"`
	Notes                string               `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt            time.Time            `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time            `gorm:"not null" json:"updated_at"`

	Items []QuoteItem `gorm:"-" json:"items"`
}

func (Quote) TableName() string { return "quotes" }

// QuoteItem stores the rounded result of the last calculation next to the
// seller's raw inputs.
type QuoteItem struct {
	ID                   snowflake.ID     `gorm:"primaryKey" json:"id"`
	QuoteID              snowflake.ID     `gorm:"column:quote_id;not null" json:"quote_id"`
	Position             int              `gorm:"not null" json:"position"`
	ProductID            string           `gorm:"column:product_id;type:text;not null" json:"product_id"`
	ProductName          string           `gorm:"column:product_name;type:text;not null" json:"product_name"`
	Quantity             int64            `gorm:"not null" json:"quantity"`
	BaseCost             decimal.Decimal  `gorm:"column:base_cost;type:numeric(18,4);not null" json:"base_cost"`
	ListPriceOverride    *decimal.Decimal `gorm:"column:list_price_override;type:numeric(18,4)" json:"list_price_override,omitempty"`
	ListPrice            decimal.Decimal  `gorm:"column:list_price;type:numeric(18,2);not null" json:"list_price"`
	OfferedUnitPrice     decimal.Decimal  `gorm:"column:offered_unit_price;type:numeric(18,4);not null" json:"offered_unit_price"`
	DiscountPercent      decimal.Decimal  `gorm:"column:discount_percent;type:numeric(9,4);not null" json:"discount_percent"`
	OfferedPrice         decimal.Decimal  `gorm:"column:offered_price;type:numeric(18,2);not null" json:"offered_price"`
	MinimumPrice         decimal.Decimal  `gorm:"column:minimum_price;type:numeric(18,2);not null" json:"minimum_price"`
	MarginValue          decimal.Decimal  `gorm:"column:margin_value;type:numeric(18,2);not null" json:"margin_value"`
	MarginPercent        decimal.Decimal  `gorm:"column:margin_percent;type:numeric(9,2);not null" json:"margin_percent"`
	Band                 string           `gorm:"type:text;not null" json:"band"`
	IsAuthorized         bool             `gorm:"column:is_authorized;not null" json:"is_authorized"`
	RequiredApproverRole *string          `gorm:"column:required_approver_role;type:text" json:"required_approver_role,omitempty"`
	MatchedRuleID        *snowflake.ID    `gorm:"column:matched_rule_id" json:"matched_rule_id,omitempty"`
	Notes                string           `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt            time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"not null" json:"updated_at"`
}

func (QuoteItem) TableName() string { return "quote_items" }

// Item returns the item with id, or nil.
func (q *Quote) Item(id snowflake.ID) *QuoteItem {
	for i := range q.Items {
		if q.Items[i].ID == id {
			return &q.Items[i]
		}
	}
	return nil
}

// ItemInput is the seller-controlled part of a line.
type ItemInput struct {
	ProductID        string
	ProductName      string
	Quantity         int64
	BaseCost         decimal.Decimal
	ListPrice        *decimal.Decimal
	OfferedUnitPrice decimal.Decimal
	DiscountPercent  decimal.Decimal
	Notes            string
}
