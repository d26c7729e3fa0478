package domain

import (
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	pricingdomain "github.com/smallbiznis/sellerflow/internal/pricing/domain"
)

// RuleSet is an immutable, ordered snapshot of the active rules.
type RuleSet struct {
	rules []ApprovalRule
}

// NewRuleSet keeps the active rules ordered by precedence: lowest MarginMin
// first (nil sorts first), then most senior role, then lowest id.
func NewRuleSet(rules []ApprovalRule) RuleSet {
	active := make([]ApprovalRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		switch {
		case a.MarginMin == nil && b.MarginMin != nil:
			return true
		case a.MarginMin != nil && b.MarginMin == nil:
			return false
		case a.MarginMin != nil && b.MarginMin != nil && !a.MarginMin.Equal(*b.MarginMin):
			return a.MarginMin.LessThan(*b.MarginMin)
		}
		if ra, rb := a.ChainRole().Rank(), b.ChainRole().Rank(); ra != rb {
			return ra > rb
		}
		return a.ID < b.ID
	})
	return RuleSet{rules: active}
}

func (s RuleSet) Rules() []ApprovalRule {
	out := make([]ApprovalRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Match returns the governing rule for marginPercent, or nil when the margin
// is self-authorized.
func (s RuleSet) Match(marginPercent decimal.Decimal) *ApprovalRule {
	for i := range s.rules {
		if s.rules[i].Matches(marginPercent) {
			rule := s.rules[i]
			return &rule
		}
	}
	return nil
}

// Find returns the active rule with id.
func (s RuleSet) Find(id snowflake.ID) *ApprovalRule {
	for i := range s.rules {
		if s.rules[i].ID == id {
			rule := s.rules[i]
			return &rule
		}
	}
	return nil
}

// MostSenior returns the rule whose chain ends at the highest role.
func (s RuleSet) MostSenior() *ApprovalRule {
	var best *ApprovalRule
	for i := range s.rules {
		r := s.rules[i]
		if best == nil || r.ChainRole().Rank() > best.ChainRole().Rank() ||
			(r.ChainRole() == best.ChainRole() && r.ID < best.ID) {
			best = &r
		}
	}
	return best
}

// Decide implements the pricing authorizer. A zero offered price on a
// costed product always escalates to the most senior configured role.
func (s RuleSet) Decide(marginPercent decimal.Decimal, zeroOfferedPrice bool) pricingdomain.Decision {
	if zeroOfferedPrice {
		if rule := s.MostSenior(); rule != nil {
			id := rule.ID
			return pricingdomain.Decision{RequiredRole: string(rule.ChainRole()), RuleID: &id}
		}
		return pricingdomain.Decision{RequiredRole: string(authorization.RoleDiretor)}
	}

	rule := s.Match(marginPercent)
	if rule == nil {
		return pricingdomain.Decision{IsAuthorized: true}
	}
	id := rule.ID
	return pricingdomain.Decision{RequiredRole: string(rule.ChainRole()), RuleID: &id}
}
