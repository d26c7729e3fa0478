package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateTotals(t *testing.T) {
	items := []QuoteItem{
		{Quantity: 2, ListPrice: d("150"), OfferedUnitPrice: d("150"), OfferedPrice: d("135"), MarginValue: d("35")},
		{Quantity: 1, ListPrice: d("80"), OfferedUnitPrice: d("100"), OfferedPrice: d("100"), MarginValue: d("20")},
	}

	totals := CalculateTotals(items)
	assert.Equal(t, "380.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "370.00", totals.TotalOffered.StringFixed(2))
	assert.Equal(t, "30.00", totals.TotalDiscount.StringFixed(2))
	assert.Equal(t, "90.00", totals.TotalMarginValue.StringFixed(2))
	assert.Equal(t, "24.32", totals.TotalMarginPercent.StringFixed(2))
	// the line priced above list contributes nothing
	assert.Equal(t, "30.00", totals.CouponValue.StringFixed(2))

	assert.Equal(t, totals, CalculateTotals(items))
}

func TestCalculateTotalsEmpty(t *testing.T) {
	totals := CalculateTotals(nil)
	assert.True(t, totals.TotalOffered.IsZero())
	assert.True(t, totals.TotalMarginPercent.IsZero())
}

func TestResolveAuthorization(t *testing.T) {
	coord, dir := "coordenador", "diretor"
	items := []QuoteItem{
		{IsAuthorized: true},
		{IsAuthorized: false, RequiredApproverRole: &coord},
		{IsAuthorized: false, RequiredApproverRole: &dir},
	}
	auth := ResolveAuthorization(items)
	assert.False(t, auth.IsAuthorized)
	assert.Equal(t, dir, *auth.RequiredRole)

	auth = ResolveAuthorization(items[:1])
	assert.True(t, auth.IsAuthorized)
	assert.Nil(t, auth.RequiredRole)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusDraft.CanTransition(StatusCalculated))
	assert.True(t, StatusPendingApproval.CanTransition(StatusApproved))
	assert.True(t, StatusRejected.CanTransition(StatusDraft))
	assert.False(t, StatusRejected.CanTransition(StatusApproved))
	assert.False(t, StatusConverted.CanTransition(StatusDraft))
	assert.False(t, StatusSent.CanTransition(StatusApproved))
	assert.True(t, StatusConverted.Terminal())
}
