package payroll

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/sales-payroll/generic"
)

// =============================================================================
// DAILY REPORTS
// =============================================================================

// ManagerReport is one manager's day. CallsQuality is minutes on line.
// CRMOk is nil on records written before the flag existed; nil means
// compliant.
type ManagerReport struct {
	ManagerID        string `json:"managerId"`
	Date             string `json:"date"`
	CallsTotal       int    `json:"callsTotal"`
	CallsConnected   int    `json:"callsConnected"`
	CallsQuality     int    `json:"callsQuality"`
	AppointmentsSet  int    `json:"appointmentsSet"`
	AppointmentsDone int    `json:"appointmentsDone"`
	Discipline       bool   `json:"discipline"`
	CRMOk            *bool  `json:"crmOk,omitempty"`
}

// NewManagerReport returns the defaulted record created on first edit.
func NewManagerReport(managerID, date string) ManagerReport {
	ok := true
	return ManagerReport{ManagerID: managerID, Date: date, CRMOk: &ok}
}

func (r ManagerReport) Key() string { return ReportKey(r.ManagerID, r.Date) }

// CRMCompliant treats an absent flag as compliant.
func (r ManagerReport) CRMCompliant() bool { return r.CRMOk == nil || *r.CRMOk }

// ExpertSale is one expert's day. Amount is local currency.
type ExpertSale struct {
	ExpertID          string          `json:"expertId"`
	Date              string          `json:"date"`
	ConductedMeetings int             `json:"conductedMeetings"`
	Offers            int             `json:"offers"`
	DealsCount        int             `json:"dealsCount"`
	Amount            decimal.Decimal `json:"amount"`
	AmountUSD         decimal.Decimal `json:"amountUSD"`
	Discipline        bool            `json:"discipline"`
}

func NewExpertSale(expertID, date string) ExpertSale {
	return ExpertSale{ExpertID: expertID, Date: date}
}

func (s ExpertSale) Key() string { return ReportKey(s.ExpertID, s.Date) }

// MarketingReport is the organisation's marketing day. Appointments,
// meetings, offers, sales and revenue are never entered here: they are
// derived from manager and expert records (see metrics.SyncedDailyView).
type MarketingReport struct {
	Date      string          `json:"date"`
	Expenses  decimal.Decimal `json:"expenses"`
	Views     int             `json:"views"`
	Clicks    int             `json:"clicks"`
	Leads     int             `json:"leads"`
	QualLeads int             `json:"qualLeads"`
}

func NewMarketingReport(date string) MarketingReport {
	return MarketingReport{Date: date}
}

func (r MarketingReport) Key() string { return r.Date }

// ReportKey is the natural key of an entity-owned report.
func ReportKey(entityID, date string) string { return entityID + "|" + date }

// =============================================================================
// CELL VALUES - What a user typed into a cell
// =============================================================================

// CellValue is either free text (numeric fields) or a flag (boolean
// fields). Numeric text is clamped on assignment, never rejected.
type CellValue struct {
	Text string
	Flag *bool
}

func Text(s string) CellValue { return CellValue{Text: s} }

func Flag(b bool) CellValue { return CellValue{Flag: &b} }

// AsFlag reads the value as a boolean. Text is accepted as strconv.ParseBool
// does; anything unparseable is false.
func (v CellValue) AsFlag() bool {
	if v.Flag != nil {
		return *v.Flag
	}
	b, _ := strconv.ParseBool(strings.TrimSpace(v.Text))
	return b
}

func (v CellValue) count() int {
	if v.Flag != nil {
		return 0
	}
	return generic.ParseCount(v.Text)
}

func (v CellValue) amount() decimal.Decimal {
	if v.Flag != nil {
		return decimal.Zero
	}
	return generic.ParseAmount(v.Text)
}

// =============================================================================
// TYPED FIELDS - One enum per report kind
// =============================================================================

type ManagerField string

const (
	MFCallsTotal       ManagerField = "callsTotal"
	MFCallsConnected   ManagerField = "callsConnected"
	MFCallsQuality     ManagerField = "callsQuality"
	MFAppointmentsSet  ManagerField = "appointmentsSet"
	MFAppointmentsDone ManagerField = "appointmentsDone"
	MFDiscipline       ManagerField = "discipline"
	MFCRMOk            ManagerField = "crmOk"
)

var managerFields = []ManagerField{
	MFCallsTotal, MFCallsConnected, MFCallsQuality,
	MFAppointmentsSet, MFAppointmentsDone, MFDiscipline, MFCRMOk,
}

func ParseManagerField(s string) (ManagerField, error) {
	for _, f := range managerFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: manager %q", ErrUnknownField, s)
}

// Set assigns one field.
func (r *ManagerReport) Set(f ManagerField, v CellValue) {
	switch f {
	case MFCallsTotal:
		r.CallsTotal = v.count()
	case MFCallsConnected:
		r.CallsConnected = v.count()
	case MFCallsQuality:
		r.CallsQuality = v.count()
	case MFAppointmentsSet:
		r.AppointmentsSet = v.count()
	case MFAppointmentsDone:
		r.AppointmentsDone = v.count()
	case MFDiscipline:
		r.Discipline = v.AsFlag()
	case MFCRMOk:
		ok := v.AsFlag()
		r.CRMOk = &ok
	}
}

type ExpertField string

const (
	EFConductedMeetings ExpertField = "conductedMeetings"
	EFOffers            ExpertField = "offers"
	EFDealsCount        ExpertField = "dealsCount"
	EFAmount            ExpertField = "amount"
	EFAmountUSD         ExpertField = "amountUSD"
	EFDiscipline        ExpertField = "discipline"
)

var expertFields = []ExpertField{
	EFConductedMeetings, EFOffers, EFDealsCount, EFAmount, EFAmountUSD, EFDiscipline,
}

func ParseExpertField(s string) (ExpertField, error) {
	for _, f := range expertFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: expert %q", ErrUnknownField, s)
}

func (s *ExpertSale) Set(f ExpertField, v CellValue) {
	switch f {
	case EFConductedMeetings:
		s.ConductedMeetings = v.count()
	case EFOffers:
		s.Offers = v.count()
	case EFDealsCount:
		s.DealsCount = v.count()
	case EFAmount:
		s.Amount = v.amount()
	case EFAmountUSD:
		s.AmountUSD = v.amount()
	case EFDiscipline:
		s.Discipline = v.AsFlag()
	}
}

type MarketingField string

const (
	KFExpenses  MarketingField = "expenses"
	KFViews     MarketingField = "views"
	KFClicks    MarketingField = "clicks"
	KFLeads     MarketingField = "leads"
	KFQualLeads MarketingField = "qualLeads"
)

var marketingFields = []MarketingField{KFExpenses, KFViews, KFClicks, KFLeads, KFQualLeads}

func ParseMarketingField(s string) (MarketingField, error) {
	for _, f := range marketingFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: marketing %q", ErrUnknownField, s)
}

func (r *MarketingReport) Set(f MarketingField, v CellValue) {
	switch f {
	case KFExpenses:
		r.Expenses = v.amount()
	case KFViews:
		r.Views = v.count()
	case KFClicks:
		r.Clicks = v.count()
	case KFLeads:
		r.Leads = v.count()
	case KFQualLeads:
		r.QualLeads = v.count()
	}
}
