/*
Package metrics is the Metrics Engine: pure aggregation of daily reports.

PURPOSE:
  Turns the reports of a payroll.Scope into per-entity statistics, ranked
  role lists, and the cross-role marketing funnel. Nothing here reads a
  store or a clock: the Scope carries both the record source and the
  period.

RATIOS:
  Every conversion is generic.Percent: numerator / denominator * 100,
  rounded to 2 places, and 0 when the denominator is 0. Cost metrics
  (CPL, CPK, CAC) are generic.Ratio with the same zero rule.

RANKING:
  AllManagers / AllExperts omit entities with no reports in the period
  and sort descending by the role's primary metric (completed
  appointments, local-currency revenue). The sort is stable, so equal
  entities keep roster order.

SEE ALSO:
  - funnel.go: SyncedDailyView and Funnel
  - salary/: Compensation built on these aggregates
*/
package metrics

import (
	"fmt"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/payroll"
)

// ForEntity aggregates one roster entity of the given role. It returns
// *ManagerMetrics, *ExpertMetrics or *MarketerMetrics.
func ForEntity(s payroll.Scope, role payroll.Role, id string) (any, error) {
	switch role {
	case payroll.RoleManager:
		m, ok := s.Data.Manager(id)
		if !ok {
			return nil, &generic.NotFoundError{Kind: "manager", Key: id}
		}
		out := Manager(s, m)
		return &out, nil
	case payroll.RoleExpert:
		e, ok := s.Data.Expert(id)
		if !ok {
			return nil, &generic.NotFoundError{Kind: "expert", Key: id}
		}
		out := Expert(s, e)
		return &out, nil
	case payroll.RoleMarketer:
		m, ok := s.Data.Marketer(id)
		if !ok {
			return nil, &generic.NotFoundError{Kind: "marketer", Key: id}
		}
		out := Marketer(s, m)
		return &out, nil
	}
	return nil, fmt.Errorf("%w: %q", payroll.ErrUnknownRole, role)
}
