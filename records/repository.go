/*
repository.go - Record Store: typed access to the live collections

PURPOSE:
  Maps payroll types onto generic.Store documents. Reports are stored one
  document per natural key, so a store cannot hold two rows for the same
  (entity, day). Reads still deduplicate: data imported from older
  sources (or merged from a remote mirror) may carry duplicates inside a
  single collection payload.

OPERATIONS:
  Dataset / Roster / *Reports:   Reads, always deduplicated
  *ByPeriod:                     Entity + inclusive date range filters
  Upsert:                        Find-or-create one record, set one field
  Add/Update/Delete*:            Roster CRUD, never cascades to reports
  DeleteReportsWithin:           Month close trims the live range
  LastMonth / SetLastMonth:      Rollover marker

FAILURE SEMANTICS:
  Malformed cell input is clamped by payroll.CellValue, never rejected.
  Lookups of missing entities return *generic.NotFoundError.

SEE ALSO:
  - migrate.go: Versioned schema upgrade chain
  - archive/session.go: Mode-aware wrapper (live vs archive)
*/
package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/logger"
	"github.com/warp/sales-payroll/payroll"
)

// Repository is the Record Store over a generic.Store.
type Repository struct {
	store generic.Store
	log   zerolog.Logger
	newID func() string
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the repository logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// WithIDGenerator replaces uuid generation for new roster entities.
func WithIDGenerator(fn func() string) Option {
	return func(r *Repository) { r.newID = fn }
}

func New(s generic.Store, opts ...Option) *Repository {
	r := &Repository{
		store: s,
		log:   logger.Component("records"),
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying store.
func (r *Repository) Store() generic.Store { return r.store }

// With returns a repository bound to s (typically a transaction view)
// sharing r's settings.
func (r *Repository) With(s generic.Store) *Repository {
	cp := *r
	cp.store = s
	return &cp
}

// =============================================================================
// DOCUMENT CODEC
// =============================================================================

func list[T any](ctx context.Context, s generic.Store, coll generic.Collection) ([]T, error) {
	docs, err := s.List(ctx, coll)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", coll, err)
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Body, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", coll, d.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func get[T any](ctx context.Context, s generic.Store, coll generic.Collection, key string) (*T, error) {
	d, err := s.Get(ctx, coll, key)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", coll, key, err)
	}
	if d == nil {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(d.Body, &v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", coll, key, err)
	}
	return &v, nil
}

func encode(key string, v any) (generic.Document, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return generic.Document{}, fmt.Errorf("encode %s: %w", key, err)
	}
	return generic.Document{Key: key, Body: body}, nil
}

func put(ctx context.Context, s generic.Store, coll generic.Collection, key string, v any) error {
	doc, err := encode(key, v)
	if err != nil {
		return err
	}
	return s.Put(ctx, coll, doc)
}

// =============================================================================
// READS
// =============================================================================

// Roster returns every entity.
func (r *Repository) Roster(ctx context.Context) (payroll.Roster, error) {
	var (
		roster payroll.Roster
		err    error
	)
	if roster.Managers, err = list[payroll.Manager](ctx, r.store, generic.CollManagers); err != nil {
		return payroll.Roster{}, err
	}
	if roster.Experts, err = list[payroll.Expert](ctx, r.store, generic.CollExperts); err != nil {
		return payroll.Roster{}, err
	}
	if roster.Marketers, err = list[payroll.Marketer](ctx, r.store, generic.CollMarketers); err != nil {
		return payroll.Roster{}, err
	}
	return roster, nil
}

// Dataset returns the whole live store, deduplicated.
func (r *Repository) Dataset(ctx context.Context) (payroll.Dataset, error) {
	roster, err := r.Roster(ctx)
	if err != nil {
		return payroll.Dataset{}, err
	}
	d := payroll.Dataset{Roster: roster}
	if d.ManagerReports, err = list[payroll.ManagerReport](ctx, r.store, generic.CollManagerReports); err != nil {
		return payroll.Dataset{}, err
	}
	if d.ExpertSales, err = list[payroll.ExpertSale](ctx, r.store, generic.CollExpertSales); err != nil {
		return payroll.Dataset{}, err
	}
	if d.MarketingReports, err = list[payroll.MarketingReport](ctx, r.store, generic.CollMarketingReports); err != nil {
		return payroll.Dataset{}, err
	}
	return d.Dedup(), nil
}

// ManagerReports returns the live manager reports, deduplicated.
func (r *Repository) ManagerReports(ctx context.Context) ([]payroll.ManagerReport, error) {
	reports, err := list[payroll.ManagerReport](ctx, r.store, generic.CollManagerReports)
	if err != nil {
		return nil, err
	}
	return payroll.Dataset{ManagerReports: reports}.Dedup().ManagerReports, nil
}

// ExpertSales returns the live expert sales, deduplicated.
func (r *Repository) ExpertSales(ctx context.Context) ([]payroll.ExpertSale, error) {
	sales, err := list[payroll.ExpertSale](ctx, r.store, generic.CollExpertSales)
	if err != nil {
		return nil, err
	}
	return payroll.Dataset{ExpertSales: sales}.Dedup().ExpertSales, nil
}

// MarketingReports returns the live marketing reports, deduplicated.
func (r *Repository) MarketingReports(ctx context.Context) ([]payroll.MarketingReport, error) {
	reports, err := list[payroll.MarketingReport](ctx, r.store, generic.CollMarketingReports)
	if err != nil {
		return nil, err
	}
	return payroll.Dataset{MarketingReports: reports}.Dedup().MarketingReports, nil
}

// ManagerReportsByPeriod returns one manager's live reports in p.
func (r *Repository) ManagerReportsByPeriod(ctx context.Context, managerID string, p generic.Period) ([]payroll.ManagerReport, error) {
	reports, err := r.ManagerReports(ctx)
	if err != nil {
		return nil, err
	}
	return payroll.NewScope(payroll.Dataset{ManagerReports: reports}, p).ManagerReports(managerID), nil
}

// ExpertSalesByPeriod returns one expert's live sales in p.
func (r *Repository) ExpertSalesByPeriod(ctx context.Context, expertID string, p generic.Period) ([]payroll.ExpertSale, error) {
	sales, err := r.ExpertSales(ctx)
	if err != nil {
		return nil, err
	}
	return payroll.NewScope(payroll.Dataset{ExpertSales: sales}, p).ExpertSales(expertID), nil
}

// MarketingReportsByPeriod returns the live marketing reports in p.
func (r *Repository) MarketingReportsByPeriod(ctx context.Context, p generic.Period) ([]payroll.MarketingReport, error) {
	reports, err := r.MarketingReports(ctx)
	if err != nil {
		return nil, err
	}
	return payroll.NewScope(payroll.Dataset{MarketingReports: reports}, p).MarketingReports(), nil
}

// =============================================================================
// CELL UPSERT
// =============================================================================

// Upsert finds or creates the record addressed by the cell, assigns the
// field and persists the record.
func (r *Repository) Upsert(ctx context.Context, cell payroll.Cell) error {
	switch c := cell.(type) {
	case payroll.ManagerCell:
		key := payroll.ReportKey(c.ManagerID, c.Date)
		existing, err := get[payroll.ManagerReport](ctx, r.store, generic.CollManagerReports, key)
		if err != nil {
			return err
		}
		d := payroll.Dataset{}
		if existing != nil {
			d.ManagerReports = []payroll.ManagerReport{*existing}
		}
		c.Apply(&d)
		return put(ctx, r.store, generic.CollManagerReports, key, d.ManagerReports[0])

	case payroll.ExpertCell:
		key := payroll.ReportKey(c.ExpertID, c.Date)
		existing, err := get[payroll.ExpertSale](ctx, r.store, generic.CollExpertSales, key)
		if err != nil {
			return err
		}
		d := payroll.Dataset{}
		if existing != nil {
			d.ExpertSales = []payroll.ExpertSale{*existing}
		}
		c.Apply(&d)
		return put(ctx, r.store, generic.CollExpertSales, key, d.ExpertSales[0])

	case payroll.MarketingCell:
		existing, err := get[payroll.MarketingReport](ctx, r.store, generic.CollMarketingReports, c.Date)
		if err != nil {
			return err
		}
		d := payroll.Dataset{}
		if existing != nil {
			d.MarketingReports = []payroll.MarketingReport{*existing}
		}
		c.Apply(&d)
		return put(ctx, r.store, generic.CollMarketingReports, c.Date, d.MarketingReports[0])
	}
	return fmt.Errorf("%w: %T", payroll.ErrUnknownField, cell)
}

// =============================================================================
// BULK WRITES - Month close and archive replay
// =============================================================================

// DeleteReportsWithin removes every live report dated inside p and returns
// how many were removed. Reports outside p survive.
func (r *Repository) DeleteReportsWithin(ctx context.Context, p generic.Period) (int, error) {
	removed := 0

	mr, err := list[payroll.ManagerReport](ctx, r.store, generic.CollManagerReports)
	if err != nil {
		return 0, err
	}
	var mKeys []string
	for _, rep := range mr {
		if p.ContainsDate(rep.Date) {
			mKeys = append(mKeys, rep.Key())
		}
	}

	es, err := list[payroll.ExpertSale](ctx, r.store, generic.CollExpertSales)
	if err != nil {
		return 0, err
	}
	var eKeys []string
	for _, s := range es {
		if p.ContainsDate(s.Date) {
			eKeys = append(eKeys, s.Key())
		}
	}

	kr, err := list[payroll.MarketingReport](ctx, r.store, generic.CollMarketingReports)
	if err != nil {
		return 0, err
	}
	var kKeys []string
	for _, rep := range kr {
		if p.ContainsDate(rep.Date) {
			kKeys = append(kKeys, rep.Key())
		}
	}

	for coll, keys := range map[generic.Collection][]string{
		generic.CollManagerReports:   mKeys,
		generic.CollExpertSales:      eKeys,
		generic.CollMarketingReports: kKeys,
	} {
		if len(keys) == 0 {
			continue
		}
		if err := r.store.Delete(ctx, coll, keys...); err != nil {
			return removed, fmt.Errorf("trim %s: %w", coll, err)
		}
		removed += len(keys)
	}
	return removed, nil
}

// PutReports writes every report of d (roster excluded).
func (r *Repository) PutReports(ctx context.Context, d payroll.Dataset) error {
	var docs []generic.Document
	for _, rep := range d.ManagerReports {
		doc, err := encode(rep.Key(), rep)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if len(docs) > 0 {
		if err := r.store.Put(ctx, generic.CollManagerReports, docs...); err != nil {
			return err
		}
	}

	docs = nil
	for _, s := range d.ExpertSales {
		doc, err := encode(s.Key(), s)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if len(docs) > 0 {
		if err := r.store.Put(ctx, generic.CollExpertSales, docs...); err != nil {
			return err
		}
	}

	docs = nil
	for _, rep := range d.MarketingReports {
		doc, err := encode(rep.Key(), rep)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if len(docs) > 0 {
		return r.store.Put(ctx, generic.CollMarketingReports, docs...)
	}
	return nil
}

// =============================================================================
// MARKER
// =============================================================================

// LastMonth returns the last-known month label.
func (r *Repository) LastMonth(ctx context.Context) (string, bool, error) {
	return r.store.Setting(ctx, generic.SettingLastMonth)
}

func (r *Repository) SetLastMonth(ctx context.Context, label string) error {
	return r.store.PutSetting(ctx, generic.SettingLastMonth, label)
}
