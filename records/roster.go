package records

import (
	"context"
	"strings"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/payroll"
)

// =============================================================================
// ROSTER CRUD - Deleting an entity never touches its reports
// =============================================================================

func rosterCollection(role payroll.Role) (generic.Collection, error) {
	switch role {
	case payroll.RoleManager:
		return generic.CollManagers, nil
	case payroll.RoleExpert:
		return generic.CollExperts, nil
	case payroll.RoleMarketer:
		return generic.CollMarketers, nil
	}
	return "", payroll.ErrUnknownRole
}

func (r *Repository) id(given string) string {
	if id := strings.TrimSpace(given); id != "" {
		return id
	}
	return r.newID()
}

// AddManager stores a new manager. An empty ID is generated.
func (r *Repository) AddManager(ctx context.Context, m payroll.Manager) (payroll.Manager, error) {
	m.ID = r.id(m.ID)
	m.MonthPlan = generic.ClampCount(m.MonthPlan)
	return m, put(ctx, r.store, generic.CollManagers, m.ID, m)
}

func (r *Repository) AddExpert(ctx context.Context, e payroll.Expert) (payroll.Expert, error) {
	e.ID = r.id(e.ID)
	e.MonthPlan = generic.ClampAmount(e.MonthPlan)
	return e, put(ctx, r.store, generic.CollExperts, e.ID, e)
}

func (r *Repository) AddMarketer(ctx context.Context, m payroll.Marketer) (payroll.Marketer, error) {
	m.ID = r.id(m.ID)
	if m.BaseFix != nil {
		base := generic.ClampAmount(*m.BaseFix)
		m.BaseFix = &base
	}
	return m, put(ctx, r.store, generic.CollMarketers, m.ID, m)
}

// UpdateManager replaces an existing manager.
func (r *Repository) UpdateManager(ctx context.Context, m payroll.Manager) error {
	if err := r.mustExist(ctx, generic.CollManagers, "manager", m.ID); err != nil {
		return err
	}
	m.MonthPlan = generic.ClampCount(m.MonthPlan)
	return put(ctx, r.store, generic.CollManagers, m.ID, m)
}

func (r *Repository) UpdateExpert(ctx context.Context, e payroll.Expert) error {
	if err := r.mustExist(ctx, generic.CollExperts, "expert", e.ID); err != nil {
		return err
	}
	e.MonthPlan = generic.ClampAmount(e.MonthPlan)
	return put(ctx, r.store, generic.CollExperts, e.ID, e)
}

func (r *Repository) UpdateMarketer(ctx context.Context, m payroll.Marketer) error {
	if err := r.mustExist(ctx, generic.CollMarketers, "marketer", m.ID); err != nil {
		return err
	}
	if m.BaseFix != nil {
		base := generic.ClampAmount(*m.BaseFix)
		m.BaseFix = &base
	}
	return put(ctx, r.store, generic.CollMarketers, m.ID, m)
}

// Manager returns one manager.
func (r *Repository) Manager(ctx context.Context, id string) (payroll.Manager, error) {
	m, err := get[payroll.Manager](ctx, r.store, generic.CollManagers, id)
	if err != nil {
		return payroll.Manager{}, err
	}
	if m == nil {
		return payroll.Manager{}, &generic.NotFoundError{Kind: "manager", Key: id}
	}
	return *m, nil
}

// DeleteEntity removes a roster entity. Its reports stay in place.
func (r *Repository) DeleteEntity(ctx context.Context, role payroll.Role, id string) error {
	coll, err := rosterCollection(role)
	if err != nil {
		return err
	}
	if err := r.mustExist(ctx, coll, string(role), id); err != nil {
		return err
	}
	return r.store.Delete(ctx, coll, id)
}

// RecordBestMonth increments a manager's best-of-month counter.
func (r *Repository) RecordBestMonth(ctx context.Context, managerID string) error {
	m, err := r.Manager(ctx, managerID)
	if err != nil {
		return err
	}
	m.BestMonthCount++
	return put(ctx, r.store, generic.CollManagers, m.ID, m)
}

// ApplyPromotion sets the promoted flag when eligible approves the manager.
// It reports whether the flag was changed.
func (r *Repository) ApplyPromotion(ctx context.Context, managerID string, eligible func(payroll.Manager) bool) (payroll.Manager, bool, error) {
	m, err := r.Manager(ctx, managerID)
	if err != nil {
		return payroll.Manager{}, false, err
	}
	if m.Promoted || !eligible(m) {
		return m, false, nil
	}
	m.Promoted = true
	if err := put(ctx, r.store, generic.CollManagers, m.ID, m); err != nil {
		return payroll.Manager{}, false, err
	}
	r.log.Info().Str("manager_id", m.ID).Int("best_months", m.BestMonthCount).Msg("manager promoted")
	return m, true, nil
}

func (r *Repository) mustExist(ctx context.Context, coll generic.Collection, kind, id string) error {
	d, err := r.store.Get(ctx, coll, id)
	if err != nil {
		return err
	}
	if d == nil {
		return &generic.NotFoundError{Kind: kind, Key: id}
	}
	return nil
}
