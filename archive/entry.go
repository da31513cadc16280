/*
entry.go - ArchiveEntry: a closed month and its frozen summary

PURPOSE:
  An Entry is one closed calendar month. Its Stats carry the headline
  totals shown in the history list, the per-role metric and salary rows
  as they were at close, and RawData: a verbatim copy of the month's
  reports plus the roster. RawData is what makes an archive replayable:
  it has the same shape as the live store, so every engine runs on it
  unchanged.

PERSISTED FORM:
  {
    "id": "…", "month": "январь 2026", "createdAt": "…",
    "stats": {
      "totalRevenue": …, "totalRevenueUsd": …, "totalSales": …,
      "totalManagers": …, "totalExperts": …,
      "mStats": [...], "eStats": [...], "kStats": [...],
      "marketing": {...},
      "rawData": {"managers": [...], "managerReports": [...], ...}
    }
  }

  Entries written before detail was archived have no rawData. They are
  listed (hasDetail=false) but cannot be opened.

SEE ALSO:
  - manager.go: Close, heal and migrate
  - session.go: Replay an entry as the active record source
*/
package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/metrics"
	"github.com/warp/sales-payroll/payroll"
	"github.com/warp/sales-payroll/salary"
)

// =============================================================================
// STATS
// =============================================================================

// ManagerRow is a manager's metrics with the salary computed at close.
type ManagerRow struct {
	metrics.ManagerMetrics
	Salary salary.ManagerPay `json:"salary"`
}

// ExpertRow is an expert's metrics with the salary computed at close.
type ExpertRow struct {
	metrics.ExpertMetrics
	Salary salary.ExpertPay `json:"salary"`
}

// Stats is the frozen summary of a month.
type Stats struct {
	metrics.Totals
	MStats    []ManagerRow         `json:"mStats"`
	EStats    []ExpertRow          `json:"eStats"`
	KStats    []salary.MarketerPay `json:"kStats"`
	Marketing *metrics.Funnel      `json:"marketing,omitempty"`
	RawData   *payroll.Dataset     `json:"rawData,omitempty"`
}

// Summarize runs the metrics and salary engines over data for p. RawData
// keeps the reports dated in p and the whole roster.
func Summarize(calc *salary.Calculator, data payroll.Dataset, p generic.Period) Stats {
	raw := data.Within(p).Clone()
	scope := payroll.NewScope(raw, p)

	managers := metrics.AllManagers(scope)
	experts := metrics.AllExperts(scope)

	st := Stats{
		Totals:  metrics.Summarize(managers, experts),
		RawData: &scope.Data,
	}
	for _, mm := range managers {
		m, _ := scope.Data.Manager(mm.ManagerID)
		st.MStats = append(st.MStats, ManagerRow{ManagerMetrics: mm, Salary: calc.Manager(scope, m)})
	}
	for _, em := range experts {
		e, _ := scope.Data.Expert(em.ExpertID)
		st.EStats = append(st.EStats, ExpertRow{ExpertMetrics: em, Salary: calc.Expert(scope, e)})
	}

	funnel := metrics.FunnelMetrics(scope)
	funnel.Days = nil
	st.Marketing = &funnel
	st.KStats = calc.AllMarketers(scope)
	return st
}

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one archived month.
type Entry struct {
	ID        string    `json:"id"`
	Label     string    `json:"month"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Stats     Stats     `json:"stats"`
}

// HasDetail reports whether the entry can be replayed.
func (e Entry) HasDetail() bool { return e.Stats.RawData != nil }

// Period re-parses the entry's label. Recomputation always uses this
// period, never the caller's.
func (e Entry) Period() (generic.Period, error) {
	return generic.ParseMonthLabel(e.Label)
}

// Summary is the listing form of an entry.
type Summary struct {
	ID        string    `json:"id"`
	Label     string    `json:"month"`
	CreatedAt time.Time `json:"createdAt"`
	metrics.Totals
	HasDetail bool `json:"hasDetail"`
}

func (e Entry) Summary() Summary {
	return Summary{
		ID:        e.ID,
		Label:     e.Label,
		CreatedAt: e.CreatedAt,
		Totals:    e.Stats.Totals,
		HasDetail: e.HasDetail(),
	}
}

func (e Entry) record() (generic.ArchiveRecord, error) {
	stats, err := json.Marshal(e.Stats)
	if err != nil {
		return generic.ArchiveRecord{}, fmt.Errorf("encode archive %s: %w", e.ID, err)
	}
	return generic.ArchiveRecord{
		ID:        e.ID,
		Label:     e.Label,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		Stats:     stats,
	}, nil
}

func fromRecord(rec generic.ArchiveRecord) (Entry, error) {
	e := Entry{
		ID:        rec.ID,
		Label:     rec.Label,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if len(rec.Stats) > 0 && string(rec.Stats) != "null" {
		if err := json.Unmarshal(rec.Stats, &e.Stats); err != nil {
			return Entry{}, fmt.Errorf("decode archive %s: %w", rec.ID, err)
		}
	}
	return e, nil
}
