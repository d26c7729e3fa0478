package domain

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// Calculate prices a single line. It is pure: identical inputs always yield
// identical output and nothing is rounded, callers round when persisting.
func Calculate(in MarginInput, region RegionPricingConfig, engine EngineConfig, auth Authorizer) (MarginCalculation, error) {
	if in.Quantity <= 0 {
		return MarginCalculation{}, ErrInvalidQuantity
	}
	if in.BaseCost.IsNegative() {
		return MarginCalculation{}, ErrNegativeBaseCost
	}
	if in.OfferedUnitPrice.IsNegative() {
		return MarginCalculation{}, ErrNegativePrice
	}

	listPrice := in.BaseCost.Mul(engine.Markup(region.Region))
	if in.ListPrice != nil {
		if in.ListPrice.IsNegative() {
			return MarginCalculation{}, ErrNegativePrice
		}
		listPrice = *in.ListPrice
	}

	interLab := decimal.Zero
	if in.IsInterLab {
		interLab = region.InterLabDiscountPercent
	}
	clusterPrice := listPrice.Mul(one.Sub(interLab.Div(hundred)))

	grossOverhead := region.OverheadPercent()
	credit := decimal.Min(interLab, grossOverhead)
	overhead := grossOverhead.Sub(credit)
	if overhead.GreaterThanOrEqual(hundred) {
		return MarginCalculation{}, ErrOverheadTooHigh
	}

	minimumPrice := in.BaseCost.Div(one.Sub(overhead.Div(hundred)))
	targetPrice := minimumPrice
	if target := overhead.Add(engine.MinimumPriceMarginTarget); target.LessThan(hundred) {
		targetPrice = in.BaseCost.Div(one.Sub(target.Div(hundred)))
	}

	discount := clampPercent(in.DiscountPercent)
	effective := in.OfferedUnitPrice.Mul(one.Sub(discount.Div(hundred)))

	marginValue := effective.Sub(in.BaseCost)
	marginPercent := percentOf(marginValue, effective)

	breakdown := breakdownFor(in.BaseCost, effective, region, credit)
	netMargin := effective.Sub(breakdown.Total)

	qty := decimal.NewFromInt(in.Quantity)
	calc := MarginCalculation{
		Region:           region.Region,
		Quantity:         in.Quantity,
		ListPrice:        listPrice,
		ClusterPrice:     clusterPrice,
		MinimumPrice:     minimumPrice,
		TargetPrice:      targetPrice,
		OfferedUnitPrice: in.OfferedUnitPrice,
		OfferedPrice:     effective,
		OverheadPercent:  overhead,
		CostBreakdown:    breakdown,
		MarginValue:      marginValue,
		MarginPercent:    marginPercent,
		NetMarginValue:   netMargin,
		NetMarginPercent: percentOf(netMargin, effective),
		LineListTotal:    listPrice.Mul(qty),
		LineOfferedTotal: effective.Mul(qty),
		LineMarginValue:  marginValue.Mul(qty),
		Band:             engine.Band(marginPercent),
		IsAuthorized:     true,
	}

	if auth != nil {
		zeroPrice := effective.IsZero() && in.BaseCost.IsPositive()
		decision := auth.Decide(marginPercent, zeroPrice)
		calc.IsAuthorized = decision.IsAuthorized
		calc.RequiredApprover = decision.RequiredRole
		calc.MatchedRuleID = decision.RuleID
	}
	return calc, nil
}

func breakdownFor(baseCost, effective decimal.Decimal, region RegionPricingConfig, creditPercent decimal.Decimal) CostBreakdown {
	share := func(pct decimal.Decimal) decimal.Decimal {
		return effective.Mul(pct).Div(hundred)
	}
	b := CostBreakdown{
		BaseCost:       baseCost,
		AdminCost:      share(region.AdminPercent),
		LogisticsCost:  share(region.LogisticsPercent),
		TaxCost:        share(region.TaxPercent),
		OtherTaxCost:   share(region.OtherTaxPercent),
		InterLabCredit: share(creditPercent),
	}
	b.Total = b.BaseCost.Add(b.AdminCost).Add(b.LogisticsCost).Add(b.TaxCost).Add(b.OtherTaxCost).Sub(b.InterLabCredit)
	return b
}

func percentOf(value, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	return value.Div(base).Mul(hundred)
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

// Line is the minimal view of a priced item needed for quote-level figures.
type Line struct {
	Quantity     int64
	ListPrice    decimal.Decimal
	OfferedPrice decimal.Decimal
}

// CouponValue sums the per-unit discount below list price across lines.
// Lines priced above list contribute nothing.
func CouponValue(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		diff := l.ListPrice.Sub(l.OfferedPrice)
		if diff.IsPositive() {
			total = total.Add(diff.Mul(decimal.NewFromInt(l.Quantity)))
		}
	}
	return total
}

// RoundCurrency rounds a monetary figure for persistence and display.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Rounded returns a copy suitable for persistence with every figure at two places.
func (m MarginCalculation) Rounded() MarginCalculation {
	r := m
	for _, p := range []*decimal.Decimal{
		&r.ListPrice, &r.ClusterPrice, &r.MinimumPrice, &r.TargetPrice, &r.OfferedUnitPrice,
		&r.OfferedPrice, &r.OverheadPercent, &r.MarginValue, &r.MarginPercent, &r.NetMarginValue,
		&r.NetMarginPercent, &r.LineListTotal, &r.LineOfferedTotal, &r.LineMarginValue,
		&r.CostBreakdown.BaseCost, &r.CostBreakdown.AdminCost, &r.CostBreakdown.LogisticsCost,
		&r.CostBreakdown.TaxCost, &r.CostBreakdown.OtherTaxCost, &r.CostBreakdown.InterLabCredit,
		&r.CostBreakdown.Total,
	} {
		*p = RoundCurrency(*p)
	}
	return r
}
