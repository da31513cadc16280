package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/payroll"
)

// ManagerMetrics aggregates one manager over a period.
type ManagerMetrics struct {
	ManagerID        string          `json:"managerId"`
	ManagerName      string          `json:"managerName"`
	Reports          int             `json:"reports"`
	CallsTotal       int             `json:"totalCalls"`
	CallsConnected   int             `json:"totalConnected"`
	MinutesOnLine    int             `json:"totalQuality"`
	AppointmentsSet  int             `json:"totalSet"`
	AppointmentsDone int             `json:"totalDone"`
	DisciplinedDays  int             `json:"disciplinedDays"`
	ConvCallsToSet   decimal.Decimal `json:"conversionCallsToSet"`
	ConvSetToDone    decimal.Decimal `json:"conversionSetToDone"`
	MonthPlan        int             `json:"monthPlan"`
	PlanPercent      decimal.Decimal `json:"planPercent"`
}

// Manager aggregates m's reports in the scope.
func Manager(s payroll.Scope, m payroll.Manager) ManagerMetrics {
	out := ManagerMetrics{
		ManagerID:   m.ID,
		ManagerName: m.Name,
		MonthPlan:   m.MonthPlan,
	}
	for _, r := range s.ManagerReports(m.ID) {
		out.Reports++
		out.CallsTotal += r.CallsTotal
		out.CallsConnected += r.CallsConnected
		out.MinutesOnLine += r.CallsQuality
		out.AppointmentsSet += r.AppointmentsSet
		out.AppointmentsDone += r.AppointmentsDone
		if r.Discipline {
			out.DisciplinedDays++
		}
	}
	out.ConvCallsToSet = generic.PercentInt(out.AppointmentsSet, out.CallsTotal)
	out.ConvSetToDone = generic.PercentInt(out.AppointmentsDone, out.AppointmentsSet)
	out.PlanPercent = generic.PercentInt(out.AppointmentsDone, m.MonthPlan)
	return out
}

// AllManagers ranks managers with at least one report by completed
// appointments, highest first.
func AllManagers(s payroll.Scope) []ManagerMetrics {
	var out []ManagerMetrics
	for _, m := range s.Data.Managers {
		mm := Manager(s, m)
		if mm.Reports == 0 {
			continue
		}
		out = append(out, mm)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AppointmentsDone > out[j].AppointmentsDone
	})
	return out
}

// DailyKPI is the per-day conversion pair shown next to a manager's row.
type DailyKPI struct {
	ConvAttendance  decimal.Decimal `json:"conversionAttendance"`
	ConvAppointment decimal.Decimal `json:"conversionAppointment"`
}

// ManagerDay computes the day-level conversions of one report.
func ManagerDay(r payroll.ManagerReport) DailyKPI {
	return DailyKPI{
		ConvAttendance:  generic.PercentInt(r.AppointmentsDone, r.AppointmentsSet),
		ConvAppointment: generic.PercentInt(r.AppointmentsSet, r.CallsConnected),
	}
}
