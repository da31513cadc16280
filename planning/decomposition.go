/*
Package planning decomposes a monthly revenue target into funnel targets.

PURPOSE:
  Works the funnel backwards from a revenue goal: how many sales, offers,
  conducted meetings and leads the month needs, what that costs at the
  expected cost per lead, and the ROI the plan implies.

CALCULATION:
  sales     = ceil(revenue / avgTicket)
  offers    = ceil(sales / (crOfferToSale / 100))
  conducted = ceil(offers / (crConductedToOffer / 100))
  leads     = ceil(conducted / (crLeadToConducted / 100))
  budget    = leads * cpl
  roi       = round(revenue / budget * 100)

  Every step is 0 when its divisor is 0, and so is everything after it.

STORAGE:
  One document per month label in the decomposition collection. Saving
  merges the given targets over the stored ones.

SEE ALSO:
  - metrics/funnel.go: The actual funnel these targets are compared with
*/
package planning

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/sales-payroll/generic"
)

// Targets are the inputs of a month's plan.
type Targets struct {
	Month              string          `json:"month"`
	TargetRevenue      decimal.Decimal `json:"targetRevenue"`
	AvgTicket          decimal.Decimal `json:"avgTicket"`
	CROfferToSale      decimal.Decimal `json:"crOfferToSale"`
	CRConductedToOffer decimal.Decimal `json:"crConductedToOffer"`
	CRLeadToConducted  decimal.Decimal `json:"crLeadToConducted"`
	CPL                decimal.Decimal `json:"cpl"`
}

// Patch is a partial update of Targets; nil fields keep their value.
type Patch struct {
	TargetRevenue      *decimal.Decimal `json:"targetRevenue,omitempty"`
	AvgTicket          *decimal.Decimal `json:"avgTicket,omitempty"`
	CROfferToSale      *decimal.Decimal `json:"crOfferToSale,omitempty"`
	CRConductedToOffer *decimal.Decimal `json:"crConductedToOffer,omitempty"`
	CRLeadToConducted  *decimal.Decimal `json:"crLeadToConducted,omitempty"`
	CPL                *decimal.Decimal `json:"cpl,omitempty"`
}

// Apply merges p over t. Negative values clamp to zero.
func (p Patch) Apply(t Targets) Targets {
	set := func(dst *decimal.Decimal, v *decimal.Decimal) {
		if v != nil {
			*dst = generic.ClampAmount(*v)
		}
	}
	set(&t.TargetRevenue, p.TargetRevenue)
	set(&t.AvgTicket, p.AvgTicket)
	set(&t.CROfferToSale, p.CROfferToSale)
	set(&t.CRConductedToOffer, p.CRConductedToOffer)
	set(&t.CRLeadToConducted, p.CRLeadToConducted)
	set(&t.CPL, p.CPL)
	return t
}

// Decomposition is a plan with its derived targets.
type Decomposition struct {
	Targets
	SalesNeeded     int64           `json:"salesNeeded"`
	OffersNeeded    int64           `json:"offersNeeded"`
	ConductedNeeded int64           `json:"conductedNeeded"`
	LeadsNeeded     int64           `json:"leadsNeeded"`
	BudgetNeeded    decimal.Decimal `json:"budgetNeeded"`
	ROI             decimal.Decimal `json:"roi"`
}

// Calculate derives the funnel targets.
func Calculate(t Targets) Decomposition {
	d := Decomposition{Targets: t, BudgetNeeded: decimal.Zero, ROI: decimal.Zero}

	d.SalesNeeded = ceilDiv(decimal.NewFromInt(1), t.TargetRevenue, t.AvgTicket)
	d.OffersNeeded = ceilRate(d.SalesNeeded, t.CROfferToSale)
	d.ConductedNeeded = ceilRate(d.OffersNeeded, t.CRConductedToOffer)
	d.LeadsNeeded = ceilRate(d.ConductedNeeded, t.CRLeadToConducted)

	d.BudgetNeeded = decimal.NewFromInt(d.LeadsNeeded).Mul(t.CPL)
	if d.BudgetNeeded.IsPositive() {
		d.ROI = t.TargetRevenue.Div(d.BudgetNeeded).Mul(generic.Hundred()).Round(0)
	}
	return d
}

// ceilRate is ceil(n / (percent / 100)).
func ceilRate(n int64, percent decimal.Decimal) int64 {
	return ceilDiv(generic.Hundred(), decimal.NewFromInt(n), percent)
}

// ceilDiv is ceil(scale * num / den), 0 when den is not positive.
func ceilDiv(scale, num, den decimal.Decimal) int64 {
	if !den.IsPositive() {
		return 0
	}
	return scale.Mul(num).Div(den).Ceil().IntPart()
}

// =============================================================================
// PLANNER - Decompositions by month label
// =============================================================================

// Planner stores targets per month.
type Planner struct {
	store generic.Store
}

func NewPlanner(s generic.Store) *Planner {
	return &Planner{store: s}
}

// canonical normalises a label so "Январь 2026" and "январь 2026 г."
// address the same plan.
func canonical(label string) (string, error) {
	p, err := generic.ParseMonthLabel(label)
	if err != nil {
		return "", err
	}
	return generic.LabelOf(p), nil
}

// Get returns the month's decomposition, with zero targets when none were
// saved.
func (p *Planner) Get(ctx context.Context, label string) (Decomposition, error) {
	t, err := p.targets(ctx, label)
	if err != nil {
		return Decomposition{}, err
	}
	return Calculate(t), nil
}

// Save merges patch into the month's targets and returns the result.
func (p *Planner) Save(ctx context.Context, label string, patch Patch) (Decomposition, error) {
	t, err := p.targets(ctx, label)
	if err != nil {
		return Decomposition{}, err
	}
	t = patch.Apply(t)

	body, err := json.Marshal(t)
	if err != nil {
		return Decomposition{}, fmt.Errorf("encode decomposition %s: %w", t.Month, err)
	}
	if err := p.store.Put(ctx, generic.CollDecomposition, generic.Document{Key: t.Month, Body: body}); err != nil {
		return Decomposition{}, err
	}
	return Calculate(t), nil
}

func (p *Planner) targets(ctx context.Context, label string) (Targets, error) {
	month, err := canonical(label)
	if err != nil {
		return Targets{}, err
	}
	t := Targets{Month: month}

	doc, err := p.store.Get(ctx, generic.CollDecomposition, month)
	if err != nil {
		return Targets{}, err
	}
	if doc == nil {
		return t, nil
	}
	if err := json.Unmarshal(doc.Body, &t); err != nil {
		return Targets{}, fmt.Errorf("decode decomposition %s: %w", month, err)
	}
	t.Month = month
	return t, nil
}
