package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/warp/sales-payroll/generic"
)

// =============================================================================
// ROSTER ENTITIES
// =============================================================================

// Manager is an SDR. MonthPlan is the completed-appointments target.
type Manager struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	HireDate       string `json:"hireDate,omitempty"`
	MonthPlan      int    `json:"monthPlan"`
	Promoted       bool   `json:"promoted"`
	BestMonthCount int    `json:"bestMonthCount"`
}

// Hired returns the parsed hire date, or false when it is absent or invalid.
func (m Manager) Hired() (generic.TimePoint, bool) {
	if m.HireDate == "" {
		return generic.TimePoint{}, false
	}
	tp, err := generic.ParseDate(m.HireDate)
	if err != nil {
		return generic.TimePoint{}, false
	}
	return tp, true
}

// Expert is a closer. MonthPlan is the local-currency revenue target.
type Expert struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	MonthPlan decimal.Decimal `json:"monthPlan"`
}

// Marketer is paid a fixed base plus a shared ROI bonus.
type Marketer struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	BaseFix *decimal.Decimal `json:"baseFix,omitempty"`
}

// Base returns the marketer's fixed pay, or def when unset or zero.
func (m Marketer) Base(def decimal.Decimal) decimal.Decimal {
	if m.BaseFix == nil || m.BaseFix.IsZero() {
		return def
	}
	return *m.BaseFix
}

// Roster is the set of entities reports are attributed to.
type Roster struct {
	Managers  []Manager  `json:"managers"`
	Experts   []Expert   `json:"experts"`
	Marketers []Marketer `json:"marketers"`
}

func (r Roster) Manager(id string) (Manager, bool) {
	for _, m := range r.Managers {
		if m.ID == id {
			return m, true
		}
	}
	return Manager{}, false
}

func (r Roster) Expert(id string) (Expert, bool) {
	for _, e := range r.Experts {
		if e.ID == id {
			return e, true
		}
	}
	return Expert{}, false
}

func (r Roster) Marketer(id string) (Marketer, bool) {
	for _, m := range r.Marketers {
		if m.ID == id {
			return m, true
		}
	}
	return Marketer{}, false
}

// HasEntity reports whether id is on the roster for role.
func (r Roster) HasEntity(role Role, id string) bool {
	var ok bool
	switch role {
	case RoleManager:
		_, ok = r.Manager(id)
	case RoleExpert:
		_, ok = r.Expert(id)
	case RoleMarketer:
		_, ok = r.Marketer(id)
	}
	return ok
}
