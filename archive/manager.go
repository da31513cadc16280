/*
manager.go - Archive Manager: month-close lifecycle

PURPOSE:
  Freezes a month into an Entry and clears it from the live store, heals
  months that were never closed, upgrades legacy entries, and recomputes
  an entry's stats after its rawData was edited.

CLOSE IS ONE TRANSACTION:
  1. Refuse when the month already has an archive (check, then create)
  2. Summarize the live data for the month (metrics + salary + rawData)
  3. Save the entry
  4. Delete the live reports dated in the month; other months survive
  5. Credit the best manager's bestMonthCount
  6. Advance the last-month marker (rollover only)

  On a TxStore the steps commit or roll back together.

STARTUP CHECKS:
  MigrateLegacyArchives and DetectOrphanedMonth are idempotent and run on
  every start; CheckRollover also runs on the scheduler.

SEE ALSO:
  - entry.go: Entry and Stats
  - session.go: LIVE / ARCHIVE_VIEW state machine
  - generic/store.go: Atomically
*/
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/logger"
	"github.com/warp/sales-payroll/payroll"
	"github.com/warp/sales-payroll/records"
	"github.com/warp/sales-payroll/salary"
)

// Reason records why a month was closed.
type Reason string

const (
	ReasonManual   Reason = "manual"   // Admin closed the month
	ReasonRollover Reason = "rollover" // Marker moved past the month
	ReasonOrphaned Reason = "orphaned" // Live data found for a past month
)

// Manager runs the archive lifecycle over a Record Store.
type Manager struct {
	records *records.Repository
	calc    *salary.Calculator
	clock   generic.Clock
	log     zerolog.Logger
	newID   func() string
}

// Option configures a Manager.
type Option func(*Manager)

func WithClock(c generic.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithIDGenerator replaces uuid generation for archive ids.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

func NewManager(repo *records.Repository, calc *salary.Calculator, opts ...Option) *Manager {
	m := &Manager{
		records: repo,
		calc:    calc,
		clock:   generic.SystemClock{},
		log:     logger.Component("archive"),
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Records returns the live Record Store.
func (m *Manager) Records() *records.Repository { return m.records }

// Calculator returns the salary engine used for stats.
func (m *Manager) Calculator() *salary.Calculator { return m.calc }

// Clock returns the manager's clock.
func (m *Manager) Clock() generic.Clock { return m.clock }

// CurrentPeriod is the calendar month containing today.
func (m *Manager) CurrentPeriod() generic.Period {
	return generic.MonthOf(m.clock.Today())
}

// =============================================================================
// LOOKUP
// =============================================================================

// List returns every archive in creation order.
func (m *Manager) List(ctx context.Context) ([]Summary, error) {
	entries, err := m.entries(ctx, m.records.Store())
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Summary())
	}
	return out, nil
}

// Get returns one archive or a *generic.NotFoundError.
func (m *Manager) Get(ctx context.Context, id string) (*Entry, error) {
	rec, err := m.records.Store().Archive(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &generic.NotFoundError{Kind: "archive", Key: id}
	}
	e, err := fromRecord(*rec)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// FindByLabel resolves a typed month label. An exact label wins, then an
// entry for the same calendar month, then the first case-insensitive
// substring match. A miss returns nil, not an error.
func (m *Manager) FindByLabel(ctx context.Context, query string) (*Entry, error) {
	entries, err := m.entries(ctx, m.records.Store())
	if err != nil {
		return nil, err
	}
	return findByLabel(entries, query), nil
}

func findByLabel(entries []Entry, query string) *Entry {
	for i := range entries {
		if generic.SameLabel(entries[i].Label, query) {
			return &entries[i]
		}
	}
	if p, err := generic.ParseMonthLabel(query); err == nil {
		if e := findByPeriod(entries, p); e != nil {
			return e
		}
	}
	for i := range entries {
		if generic.LabelMatches(entries[i].Label, query) {
			return &entries[i]
		}
	}
	return nil
}

func findByPeriod(entries []Entry, p generic.Period) *Entry {
	for i := range entries {
		if ep, err := entries[i].Period(); err == nil && ep.Start.Equal(p.Start) {
			return &entries[i]
		}
	}
	return nil
}

// ForPeriod returns the archive covering p, or nil.
func (m *Manager) ForPeriod(ctx context.Context, p generic.Period) (*Entry, error) {
	entries, err := m.entries(ctx, m.records.Store())
	if err != nil {
		return nil, err
	}
	return findByPeriod(entries, p), nil
}

func (m *Manager) entries(ctx context.Context, s generic.Store) ([]Entry, error) {
	recs, err := s.Archives(ctx)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	out := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		e, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// =============================================================================
// CLOSE
// =============================================================================

// ArchiveCurrentMonth closes the calendar month containing today.
func (m *Manager) ArchiveCurrentMonth(ctx context.Context) (*Entry, error) {
	return m.close(ctx, m.CurrentPeriod(), ReasonManual, "")
}

// ArchiveMonth closes the month named by label, typically a past month
// that was never closed. The stored label is the canonical form.
func (m *Manager) ArchiveMonth(ctx context.Context, label string) (*Entry, error) {
	p, err := generic.ParseMonthLabel(label)
	if err != nil {
		return nil, err
	}
	return m.close(ctx, p, ReasonManual, "")
}

// ArchivePeriod closes month p.
func (m *Manager) ArchivePeriod(ctx context.Context, p generic.Period) (*Entry, error) {
	return m.close(ctx, p, ReasonManual, "")
}

func (m *Manager) close(ctx context.Context, p generic.Period, reason Reason, advanceMarker string) (*Entry, error) {
	label := generic.LabelOf(p)

	if existing, err := m.ForPeriod(ctx, p); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, &ExistsError{Label: existing.Label, ID: existing.ID}
	}

	var (
		entry   Entry
		removed int
		best    string
	)
	err := generic.Atomically(ctx, m.records.Store(), func(s generic.Store) error {
		repo := m.records.With(s)

		data, err := repo.Dataset(ctx)
		if err != nil {
			return err
		}
		entry = Entry{
			ID:    m.newID(),
			Label: label,
			Stats: Summarize(m.calc, data, p),
		}

		rec, err := entry.record()
		if err != nil {
			return err
		}
		if err := s.SaveArchive(ctx, rec); err != nil {
			if errors.Is(err, generic.ErrDuplicateLabel) {
				return &ExistsError{Label: label}
			}
			return fmt.Errorf("save archive: %w", err)
		}

		if removed, err = repo.DeleteReportsWithin(ctx, p); err != nil {
			return err
		}

		if id, ok := salary.BestManager(payroll.NewScope(*entry.Stats.RawData, p)); ok {
			if err := repo.RecordBestMonth(ctx, id); err != nil && !generic.IsNotFound(err) {
				return err
			}
			best = id
		}

		if advanceMarker != "" {
			return repo.SetLastMonth(ctx, advanceMarker)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info().
		Str("month", label).
		Str("archive_id", entry.ID).
		Str("reason", string(reason)).
		Int("removed", removed).
		Str("best_manager", best).
		Msg("month archived")

	return m.Get(ctx, entry.ID)
}

// =============================================================================
// STARTUP & ROLLOVER
// =============================================================================

// DetectOrphanedMonth closes every past month that still has live reports
// and no archive, oldest first, and returns the labels it closed. Months
// that already have an archive are left alone: their live rows were
// entered after the close and are reported in the log.
func (m *Manager) DetectOrphanedMonth(ctx context.Context) ([]string, error) {
	data, err := m.records.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	current := m.CurrentPeriod()

	months := data.ReportMonths()
	sort.Slice(months, func(i, j int) bool { return months[i].Start.Before(months[j].Start) })

	var healed []string
	for _, p := range months {
		if !p.Start.Before(current.Start) {
			continue
		}
		existing, err := m.ForPeriod(ctx, p)
		if err != nil {
			return healed, err
		}
		if existing != nil {
			m.log.Warn().
				Str("month", existing.Label).
				Str("archive_id", existing.ID).
				Msg("live reports found for an archived month")
			continue
		}
		entry, err := m.close(ctx, p, ReasonOrphaned, "")
		if err != nil {
			return healed, fmt.Errorf("heal %s: %w", generic.LabelOf(p), err)
		}
		healed = append(healed, entry.Label)
	}
	return healed, nil
}

// CheckRollover compares the last-month marker with the current month.
// When the marker names a past month without an archive, that month is
// closed and the marker advanced in the same transaction. A first run
// only records the current month. Returns the entry it created, if any.
func (m *Manager) CheckRollover(ctx context.Context) (*Entry, error) {
	current := m.CurrentPeriod()
	currentLabel := generic.LabelOf(current)

	marker, ok, err := m.records.LastMonth(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || generic.SameLabel(marker, currentLabel) {
		if !ok {
			m.log.Info().Str("month", currentLabel).Msg("month marker initialised")
			return nil, m.records.SetLastMonth(ctx, currentLabel)
		}
		return nil, nil
	}

	p, err := generic.ParseMonthLabel(marker)
	if err != nil || !p.Start.Before(current.Start) {
		m.log.Warn().
			Str("marker", marker).
			Str("month", currentLabel).
			Msg("unusable month marker, resetting")
		return nil, m.records.SetLastMonth(ctx, currentLabel)
	}

	entry, err := m.close(ctx, p, ReasonRollover, currentLabel)
	if errors.Is(err, ErrArchiveExists) {
		return nil, m.records.SetLastMonth(ctx, currentLabel)
	}
	return entry, err
}

// MigrateLegacyArchives gives every entry without rawData an empty-history
// stub built from the current roster. Unknown legacy stats fields are kept
// verbatim. Returns how many entries were upgraded; a second run returns 0.
func (m *Manager) MigrateLegacyArchives(ctx context.Context) (int, error) {
	roster, err := m.records.Roster(ctx)
	if err != nil {
		return 0, err
	}
	stub, err := json.Marshal(payroll.Dataset{
		Roster:           roster,
		ManagerReports:   []payroll.ManagerReport{},
		ExpertSales:      []payroll.ExpertSale{},
		MarketingReports: []payroll.MarketingReport{},
	})
	if err != nil {
		return 0, err
	}

	recs, err := m.records.Store().Archives(ctx)
	if err != nil {
		return 0, err
	}

	upgraded := 0
	for _, rec := range recs {
		stats := map[string]json.RawMessage{}
		if len(rec.Stats) > 0 && string(rec.Stats) != "null" {
			if err := json.Unmarshal(rec.Stats, &stats); err != nil {
				return upgraded, fmt.Errorf("decode archive %s: %w", rec.ID, err)
			}
		}
		if raw, ok := stats["rawData"]; ok && string(raw) != "null" {
			continue
		}
		stats["rawData"] = stub
		if rec.Stats, err = json.Marshal(stats); err != nil {
			return upgraded, err
		}
		if err := m.records.Store().SaveArchive(ctx, rec); err != nil {
			return upgraded, fmt.Errorf("upgrade archive %s: %w", rec.ID, err)
		}
		upgraded++
		m.log.Info().
			Str("month", rec.Label).
			Str("archive_id", rec.ID).
			Msg("legacy archive upgraded")
	}
	return upgraded, nil
}

// =============================================================================
// EDIT & DELETE
// =============================================================================

// Recompute re-runs the engines over an entry's rawData for the month its
// label names and persists the result.
func (m *Manager) Recompute(ctx context.Context, id string) (*Entry, error) {
	e, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.HasDetail() {
		return nil, &NoDetailError{ID: e.ID, Label: e.Label}
	}
	return m.Replace(ctx, *e, *e.Stats.RawData)
}

// Replace stores data as e's rawData and recomputes its stats.
func (m *Manager) Replace(ctx context.Context, e Entry, data payroll.Dataset) (*Entry, error) {
	p, err := e.Period()
	if err != nil {
		return nil, err
	}
	e.Stats = Summarize(m.calc, data, p)

	rec, err := e.record()
	if err != nil {
		return nil, err
	}
	if err := m.records.Store().SaveArchive(ctx, rec); err != nil {
		return nil, fmt.Errorf("save archive %s: %w", e.ID, err)
	}
	m.log.Debug().
		Str("month", e.Label).
		Str("archive_id", e.ID).
		Msg("archive stats recomputed")
	return m.Get(ctx, e.ID)
}

// Delete removes an archive. Only administrators may delete.
func (m *Manager) Delete(ctx context.Context, actor payroll.Actor, id string) error {
	if actor == nil || !actor.IsAdministrator() {
		return ErrNotAdministrator
	}
	e, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.records.Store().DeleteArchive(ctx, id); err != nil {
		return err
	}
	m.log.Info().
		Str("month", e.Label).
		Str("archive_id", e.ID).
		Msg("archive deleted")
	return nil
}
