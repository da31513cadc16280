package payroll

import (
	"github.com/warp/sales-payroll/generic"
)

// =============================================================================
// DATASET - One consistent record source
// =============================================================================

// Dataset is every collection the engines read: the live store, or the
// frozen copy inside an archive (stats.rawData). Both have the same shape,
// which is what makes an archive replayable.
type Dataset struct {
	Roster
	ManagerReports   []ManagerReport   `json:"managerReports"`
	ExpertSales      []ExpertSale      `json:"expertSales"`
	MarketingReports []MarketingReport `json:"marketingReports"`
}

// Clone returns a deep copy. Reports are plain values except CRMOk.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Roster: Roster{
			Managers:  append([]Manager(nil), d.Managers...),
			Experts:   append([]Expert(nil), d.Experts...),
			Marketers: append([]Marketer(nil), d.Marketers...),
		},
		ManagerReports:   make([]ManagerReport, len(d.ManagerReports)),
		ExpertSales:      append([]ExpertSale(nil), d.ExpertSales...),
		MarketingReports: append([]MarketingReport(nil), d.MarketingReports...),
	}
	for i, r := range d.ManagerReports {
		if r.CRMOk != nil {
			ok := *r.CRMOk
			r.CRMOk = &ok
		}
		out.ManagerReports[i] = r
	}
	for i, m := range out.Marketers {
		if m.BaseFix != nil {
			base := *m.BaseFix
			out.Marketers[i].BaseFix = &base
		}
	}
	return out
}

// Dedup collapses reports sharing a natural key. The last write wins and
// takes the slot of the first occurrence.
func (d Dataset) Dedup() Dataset {
	d.ManagerReports = dedup(d.ManagerReports, ManagerReport.Key)
	d.ExpertSales = dedup(d.ExpertSales, ExpertSale.Key)
	d.MarketingReports = dedup(d.MarketingReports, MarketingReport.Key)
	return d
}

func dedup[T any](items []T, key func(T) string) []T {
	if len(items) == 0 {
		return items
	}
	index := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if i, ok := index[k]; ok {
			out[i] = it
			continue
		}
		index[k] = len(out)
		out = append(out, it)
	}
	return out
}

// Within keeps the reports dated inside p. The roster is kept whole.
func (d Dataset) Within(p generic.Period) Dataset {
	return d.filter(func(date string) bool { return p.ContainsDate(date) })
}

// Outside keeps the reports dated outside p, including unparseable dates.
func (d Dataset) Outside(p generic.Period) Dataset {
	return d.filter(func(date string) bool { return !p.ContainsDate(date) })
}

func (d Dataset) filter(keep func(date string) bool) Dataset {
	out := Dataset{Roster: d.Roster}
	for _, r := range d.ManagerReports {
		if keep(r.Date) {
			out.ManagerReports = append(out.ManagerReports, r)
		}
	}
	for _, s := range d.ExpertSales {
		if keep(s.Date) {
			out.ExpertSales = append(out.ExpertSales, s)
		}
	}
	for _, r := range d.MarketingReports {
		if keep(r.Date) {
			out.MarketingReports = append(out.MarketingReports, r)
		}
	}
	return out
}

// IsEmpty reports whether the dataset holds no reports at all.
func (d Dataset) IsEmpty() bool {
	return len(d.ManagerReports) == 0 && len(d.ExpertSales) == 0 && len(d.MarketingReports) == 0
}

// ReportMonths returns the distinct calendar months that reports fall in,
// in order of first appearance.
func (d Dataset) ReportMonths() []generic.Period {
	seen := make(map[generic.Period]bool)
	var out []generic.Period
	add := func(date string) {
		tp, err := generic.ParseDate(date)
		if err != nil {
			return
		}
		p := generic.MonthOf(tp)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, r := range d.ManagerReports {
		add(r.Date)
	}
	for _, s := range d.ExpertSales {
		add(s.Date)
	}
	for _, r := range d.MarketingReports {
		add(r.Date)
	}
	return out
}

// =============================================================================
// SCOPE - Explicit record source + period
// =============================================================================

// Scope is what every metric and salary computation reads: a record source
// and the period to aggregate over. It replaces any notion of a global
// "current mode".
type Scope struct {
	Data   Dataset
	Period generic.Period
}

// NewScope deduplicates data before it is aggregated.
func NewScope(data Dataset, period generic.Period) Scope {
	return Scope{Data: data.Dedup(), Period: period}
}

// ManagerReports returns one manager's reports in the period.
func (s Scope) ManagerReports(managerID string) []ManagerReport {
	var out []ManagerReport
	for _, r := range s.Data.ManagerReports {
		if r.ManagerID == managerID && s.Period.ContainsDate(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// ExpertSales returns one expert's sales in the period.
func (s Scope) ExpertSales(expertID string) []ExpertSale {
	var out []ExpertSale
	for _, r := range s.Data.ExpertSales {
		if r.ExpertID == expertID && s.Period.ContainsDate(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// MarketingReports returns the marketing reports in the period.
func (s Scope) MarketingReports() []MarketingReport {
	var out []MarketingReport
	for _, r := range s.Data.MarketingReports {
		if s.Period.ContainsDate(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// CELLS - Tagged variant, one per report kind
// =============================================================================

// Cell is a single field edit. Apply finds or creates the record for the
// cell's natural key and assigns the field.
type Cell interface {
	Role() Role
	EntityID() string
	Day() string
	Apply(d *Dataset)
}

type ManagerCell struct {
	ManagerID string
	Date      string
	Field     ManagerField
	Value     CellValue
}

func (c ManagerCell) Role() Role       { return RoleManager }
func (c ManagerCell) EntityID() string { return c.ManagerID }
func (c ManagerCell) Day() string      { return c.Date }

func (c ManagerCell) Apply(d *Dataset) {
	key := ReportKey(c.ManagerID, c.Date)
	for i := range d.ManagerReports {
		if d.ManagerReports[i].Key() == key {
			d.ManagerReports[i].Set(c.Field, c.Value)
			return
		}
	}
	r := NewManagerReport(c.ManagerID, c.Date)
	r.Set(c.Field, c.Value)
	d.ManagerReports = append(d.ManagerReports, r)
}

type ExpertCell struct {
	ExpertID string
	Date     string
	Field    ExpertField
	Value    CellValue
}

func (c ExpertCell) Role() Role       { return RoleExpert }
func (c ExpertCell) EntityID() string { return c.ExpertID }
func (c ExpertCell) Day() string      { return c.Date }

func (c ExpertCell) Apply(d *Dataset) {
	key := ReportKey(c.ExpertID, c.Date)
	for i := range d.ExpertSales {
		if d.ExpertSales[i].Key() == key {
			d.ExpertSales[i].Set(c.Field, c.Value)
			return
		}
	}
	s := NewExpertSale(c.ExpertID, c.Date)
	s.Set(c.Field, c.Value)
	d.ExpertSales = append(d.ExpertSales, s)
}

type MarketingCell struct {
	Date  string
	Field MarketingField
	Value CellValue
}

func (c MarketingCell) Role() Role       { return RoleMarketer }
func (c MarketingCell) EntityID() string { return "" }
func (c MarketingCell) Day() string      { return c.Date }

func (c MarketingCell) Apply(d *Dataset) {
	for i := range d.MarketingReports {
		if d.MarketingReports[i].Date == c.Date {
			d.MarketingReports[i].Set(c.Field, c.Value)
			return
		}
	}
	r := NewMarketingReport(c.Date)
	r.Set(c.Field, c.Value)
	d.MarketingReports = append(d.MarketingReports, r)
}

// ParseCell builds the typed cell for a role from wire names.
func ParseCell(role Role, entityID, date, field string, value CellValue) (Cell, error) {
	if _, err := generic.ParseDate(date); err != nil {
		return nil, err
	}
	switch role {
	case RoleManager:
		f, err := ParseManagerField(field)
		if err != nil {
			return nil, err
		}
		return ManagerCell{ManagerID: entityID, Date: date, Field: f, Value: value}, nil
	case RoleExpert:
		f, err := ParseExpertField(field)
		if err != nil {
			return nil, err
		}
		return ExpertCell{ExpertID: entityID, Date: date, Field: f, Value: value}, nil
	case RoleMarketer:
		f, err := ParseMarketingField(field)
		if err != nil {
			return nil, err
		}
		return MarketingCell{Date: date, Field: f, Value: value}, nil
	}
	return nil, ErrUnknownRole
}
