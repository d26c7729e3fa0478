package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/sellerflow/internal/pricing/domain"
)

// Pricer is the configuration a commit prices against.
type Pricer struct {
	Snapshot   pricingdomain.Snapshot
	Authorizer pricingdomain.Authorizer
}

type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// Change is one item mutation applied to a draft. Before is the committed
// state of the item prior to the edit, nil for additions.
type Change struct {
	Kind   ChangeKind
	ItemID snowflake.ID
	Before *QuoteItem
}

type Transition struct {
	From   Status
	To     Status
	Reason string
}

type ItemPatch struct {
	ProductName      *string
	Quantity         *int64
	BaseCost         *decimal.Decimal
	ListPrice        *decimal.Decimal
	ClearListPrice   bool
	OfferedUnitPrice *decimal.Decimal
	DiscountPercent  *decimal.Decimal
	Notes            *string
}

// Draft collects edits on a copy of a quote. Nothing it holds is trusted
// until Commit reprices every line.
type Draft struct {
	quote       Quote
	now         time.Time
	newID       func() snowflake.ID
	changes     []Change
	transitions []Transition
}

// NewDraft opens q for editing. A rejected or expired quote is reset to
// draft, which starts a new approval cycle.
func NewDraft(q Quote, now time.Time, newID func() snowflake.ID) (*Draft, error) {
	if !q.Status.Editable() {
		return nil, ErrNotEditable
	}
	d := &Draft{quote: q, now: now, newID: newID}
	d.quote.Items = append([]QuoteItem(nil), q.Items...)
	if q.Status.NeedsReset() {
		d.reset("edited after " + string(q.Status))
	}
	return d, nil
}

func (d *Draft) reset(reason string) {
	d.transitions = append(d.transitions, Transition{From: d.quote.Status, To: StatusDraft, Reason: reason})
	d.quote.Status = StatusDraft
	d.quote.ApprovalCycle++
	d.quote.IsAuthorized = false
	d.quote.RequiresApproval = false
	d.quote.RequiredApproverRole = nil
	d.quote.GoverningRuleID = nil
}

func (d *Draft) AddItem(in ItemInput) (snowflake.ID, error) {
	if err := validateInput(in.ProductID, in.ProductName, in.Quantity); err != nil {
		return 0, err
	}
	item := QuoteItem{
		ID:                d.newID(),
		QuoteID:           d.quote.ID,
		Position:          d.nextPosition(),
		ProductID:         strings.TrimSpace(in.ProductID),
		ProductName:       strings.TrimSpace(in.ProductName),
		Quantity:          in.Quantity,
		BaseCost:          in.BaseCost,
		ListPriceOverride: in.ListPrice,
		OfferedUnitPrice:  in.OfferedUnitPrice,
		DiscountPercent:   in.DiscountPercent,
		Notes:             in.Notes,
		CreatedAt:         d.now,
		UpdatedAt:         d.now,
	}
	d.quote.Items = append(d.quote.Items, item)
	d.changes = append(d.changes, Change{Kind: ChangeAdded, ItemID: item.ID})
	return item.ID, nil
}

func (d *Draft) UpdateItem(id snowflake.ID, patch ItemPatch) error {
	item := d.quote.Item(id)
	if item == nil {
		return ErrItemNotFound
	}
	before := *item

	if patch.ProductName != nil {
		item.ProductName = strings.TrimSpace(*patch.ProductName)
	}
	if patch.Quantity != nil {
		item.Quantity = *patch.Quantity
	}
	if patch.BaseCost != nil {
		item.BaseCost = *patch.BaseCost
	}
	if patch.ClearListPrice {
		item.ListPriceOverride = nil
	} else if patch.ListPrice != nil {
		lp := *patch.ListPrice
		item.ListPriceOverride = &lp
	}
	if patch.OfferedUnitPrice != nil {
		item.OfferedUnitPrice = *patch.OfferedUnitPrice
	}
	if patch.DiscountPercent != nil {
		item.DiscountPercent = *patch.DiscountPercent
	}
	if patch.Notes != nil {
		item.Notes = *patch.Notes
	}
	if err := validateInput(item.ProductID, item.ProductName, item.Quantity); err != nil {
		*item = before
		return err
	}
	item.UpdatedAt = d.now
	d.changes = append(d.changes, Change{Kind: ChangeUpdated, ItemID: id, Before: &before})
	return nil
}

func (d *Draft) RemoveItem(id snowflake.ID) error {
	for i := range d.quote.Items {
		if d.quote.Items[i].ID != id {
			continue
		}
		before := d.quote.Items[i]
		d.quote.Items = append(d.quote.Items[:i], d.quote.Items[i+1:]...)
		d.changes = append(d.changes, Change{Kind: ChangeRemoved, ItemID: id, Before: &before})
		return nil
	}
	return ErrItemNotFound
}

// Commit reprices every line against p and returns the quote to persist.
// Draft and calculated quotes become calculated once they hold items.
func (d *Draft) Commit(p Pricer) (Quote, error) {
	q := d.quote
	q.Items = append([]QuoteItem(nil), d.quote.Items...)
	if err := Reprice(&q, p); err != nil {
		return Quote{}, err
	}

	next := StatusDraft
	if len(q.Items) > 0 {
		next = StatusCalculated
	}
	if next != q.Status {
		d.transitions = append(d.transitions, Transition{From: q.Status, To: next, Reason: "items changed"})
		q.Status = next
	}
	q.UpdatedAt = d.now
	return q, nil
}

// Current returns the draft state without repricing.
func (d *Draft) Current() Quote {
	q := d.quote
	q.Items = append([]QuoteItem(nil), d.quote.Items...)
	return q
}

func (d *Draft) Changes() []Change {
	return append([]Change(nil), d.changes...)
}

func (d *Draft) Transitions() []Transition {
	return append([]Transition(nil), d.transitions...)
}

// Reprice recomputes every line, the totals and the quote authorization in place.
func Reprice(q *Quote, p Pricer) error {
	for i := range q.Items {
		item := &q.Items[i]
		calc, err := pricingdomain.Calculate(pricingdomain.MarginInput{
			BaseCost:         item.BaseCost,
			Quantity:         item.Quantity,
			OfferedUnitPrice: item.OfferedUnitPrice,
			DiscountPercent:  item.DiscountPercent,
			IsInterLab:       q.IsInterLab,
			ListPrice:        item.ListPriceOverride,
		}, p.Snapshot.Region, p.Snapshot.Engine, p.Authorizer)
		if err != nil {
			return err
		}
		applyCalculation(item, calc.Rounded())
	}

	q.Totals = CalculateTotals(q.Items)
	auth := ResolveAuthorization(q.Items)
	q.IsAuthorized = auth.IsAuthorized
	q.RequiresApproval = !auth.IsAuthorized
	q.RequiredApproverRole = auth.RequiredRole
	q.GoverningRuleID = auth.RuleID
	return nil
}

func applyCalculation(item *QuoteItem, calc pricingdomain.MarginCalculation) {
	item.ListPrice = calc.ListPrice
	item.OfferedPrice = calc.OfferedPrice
	item.MinimumPrice = calc.MinimumPrice
	item.MarginValue = calc.MarginValue
	item.MarginPercent = calc.MarginPercent
	item.Band = string(calc.Band)
	item.IsAuthorized = calc.IsAuthorized
	item.RequiredApproverRole = nil
	if calc.RequiredApprover != "" {
		role := calc.RequiredApprover
		item.RequiredApproverRole = &role
	}
	item.MatchedRuleID = calc.MatchedRuleID
}

func (d *Draft) nextPosition() int {
	last := 0
	for _, item := range d.quote.Items {
		if item.Position > last {
			last = item.Position
		}
	}
	return last + 1
}

func validateInput(productID, productName string, quantity int64) error {
	if strings.TrimSpace(productID) == "" || strings.TrimSpace(productName) == "" {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return pricingdomain.ErrInvalidQuantity
	}
	return nil
}
