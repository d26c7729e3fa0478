package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	pricingdomain "github.com/smallbiznis/sellerflow/internal/pricing/domain"
)

var hundred = decimal.NewFromInt(100)

// CalculateTotals derives the quote figures from its stored lines. It reads
// nothing else, so calling it twice yields the same result.
func CalculateTotals(items []QuoteItem) Totals {
	t := Totals{
		Subtotal:           decimal.Zero,
		TotalOffered:       decimal.Zero,
		TotalDiscount:      decimal.Zero,
		TotalMarginValue:   decimal.Zero,
		TotalMarginPercent: decimal.Zero,
		CouponValue:        decimal.Zero,
	}
	lines := make([]pricingdomain.Line, 0, len(items))
	for _, item := range items {
		qty := decimal.NewFromInt(item.Quantity)
		t.Subtotal = t.Subtotal.Add(item.ListPrice.Mul(qty))
		t.TotalOffered = t.TotalOffered.Add(item.OfferedPrice.Mul(qty))
		t.TotalDiscount = t.TotalDiscount.Add(item.OfferedUnitPrice.Sub(item.OfferedPrice).Mul(qty))
		t.TotalMarginValue = t.TotalMarginValue.Add(item.MarginValue.Mul(qty))
		lines = append(lines, pricingdomain.Line{
			Quantity:     item.Quantity,
			ListPrice:    item.ListPrice,
			OfferedPrice: item.OfferedPrice,
		})
	}
	if t.TotalOffered.IsPositive() {
		t.TotalMarginPercent = t.TotalMarginValue.Div(t.TotalOffered).Mul(hundred)
	}
	t.CouponValue = pricingdomain.CouponValue(lines)

	t.Subtotal = pricingdomain.RoundCurrency(t.Subtotal)
	t.TotalOffered = pricingdomain.RoundCurrency(t.TotalOffered)
	t.TotalDiscount = pricingdomain.RoundCurrency(t.TotalDiscount)
	t.TotalMarginValue = pricingdomain.RoundCurrency(t.TotalMarginValue)
	t.TotalMarginPercent = pricingdomain.RoundCurrency(t.TotalMarginPercent)
	t.CouponValue = pricingdomain.RoundCurrency(t.CouponValue)
	return t
}

// Authorization is the quote-level view of the item decisions.
type Authorization struct {
	IsAuthorized bool
	RequiredRole *string
	RuleID       *snowflake.ID
}

// ResolveAuthorization requires approval when any line does. The required
// role is the most senior one among unauthorized lines and the governing
// rule is that line's rule (first such line on ties).
func ResolveAuthorization(items []QuoteItem) Authorization {
	out := Authorization{IsAuthorized: true}
	best := authorization.Role("")
	for _, item := range items {
		if item.IsAuthorized {
			continue
		}
		out.IsAuthorized = false
		role := authorization.Role("")
		if item.RequiredApproverRole != nil {
			role = authorization.Role(*item.RequiredApproverRole)
		}
		if out.RequiredRole == nil || role.Rank() > best.Rank() {
			best = role
			r := string(role)
			out.RequiredRole = &r
			out.RuleID = item.MatchedRuleID
		}
	}
	return out
}
