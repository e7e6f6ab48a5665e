package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

// RenewalRule bounds how far a loan of one category can be pushed out.
type RenewalRule struct {
	MaxRenewals      int
	ExtensionDays    int
	RequiresApproval bool
}

var fallbackRenewalRule = RenewalRule{MaxRenewals: 2, ExtensionDays: 7}

// RenewalRules maps resource categories to their renewal policy.
type RenewalRules struct {
	rules map[entity.ResourceCategory]RenewalRule
}

func NewRenewalRules() *RenewalRules {
	return &RenewalRules{rules: map[entity.ResourceCategory]RenewalRule{
		entity.CategoryAcademic:   {MaxRenewals: 3, ExtensionDays: 10},
		entity.CategoryFiction:    {MaxRenewals: 2, ExtensionDays: 7},
		entity.CategoryHistorical: {MaxRenewals: 1, ExtensionDays: 5, RequiresApproval: true},
		entity.CategoryReference:  {MaxRenewals: 1, ExtensionDays: 3},
		entity.CategoryMultimedia: {MaxRenewals: 2, ExtensionDays: 5},
		entity.CategoryResearch:   {MaxRenewals: 3, ExtensionDays: 14, RequiresApproval: true},
	}}
}

// SetRule overrides the policy for one category.
func (r *RenewalRules) SetRule(category entity.ResourceCategory, rule RenewalRule) {
	r.rules[category] = rule
}

func (r *RenewalRules) RuleFor(category entity.ResourceCategory) RenewalRule {
	rule, ok := r.rules[category]
	if !ok {
		return fallbackRenewalRule
	}
	return rule
}

// validateRenewal collects every reason a renewal cannot go through and
// reports them all at once, wrapped in ErrRenewalRejected.
func validateRenewal(loan *entity.Loan, rule RenewalRule, hasWaiters bool, now time.Time) error {
	if !loan.Active() {
		return entity.ErrLoanNotActive
	}

	var reasons []string
	if loan.Overdue(now) {
		reasons = append(reasons, "loan is overdue")
	}
	if loan.Renewals >= rule.MaxRenewals {
		reasons = append(reasons, "renewal limit reached")
	}
	if hasWaiters {
		reasons = append(reasons, "other users are waiting for this resource")
	}
	if rule.RequiresApproval {
		reasons = append(reasons, "this category requires librarian approval")
	}

	if len(reasons) > 0 {
		return fmt.Errorf("%w: %s", entity.ErrRenewalRejected, strings.Join(reasons, "; "))
	}
	return nil
}
