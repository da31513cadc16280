/*
session.go - LIVE / ARCHIVE_VIEW state machine

PURPOSE:
  A Session is the explicit replacement for a process-wide "mode" flag.
  It owns the active record source and the active period, and every read
  or write goes through it:

    LIVE:          source = live Record Store,   period = any month
    ARCHIVE_VIEW:  source = entry.Stats.RawData, period = entry's month

TRANSITIONS:
  Open / OpenByLabel / SelectMonth   LIVE -> ARCHIVE_VIEW (or stay LIVE on a miss)
  Exit                               ARCHIVE_VIEW -> LIVE, current month
  Upsert (admin, archive view)       ARCHIVE_VIEW -> ARCHIVE_VIEW, recompute + persist

PERMISSIONS:
  In archive view a non-administrator's write is dropped: Upsert returns
  Applied=false and no error. An administrator's write dated outside the
  archived month fails with ErrOutsideArchiveMonth.

SEE ALSO:
  - manager.go: Archive lifecycle
  - payroll/dataset.go: Scope
*/
package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/logger"
	"github.com/warp/sales-payroll/payroll"
)

// Mode is the active record source.
type Mode string

const (
	ModeLive    Mode = "live"
	ModeArchive Mode = "archive"
)

// State describes a session.
type State struct {
	Mode      Mode           `json:"mode"`
	Period    generic.Period `json:"period"`
	Label     string         `json:"month"`
	ArchiveID string         `json:"archiveId,omitempty"`
	ReadOnly  bool           `json:"readOnly"`
}

// WriteResult reports what a cell write did.
type WriteResult struct {
	Applied bool `json:"applied"`
	Mode    Mode `json:"mode"`
}

// Session holds the active record source and period.
type Session struct {
	archives *Manager
	log      zerolog.Logger

	mu     sync.RWMutex
	entry  *Entry
	period generic.Period
}

// NewSession starts LIVE on the current month.
func NewSession(m *Manager) *Session {
	return &Session{
		archives: m,
		log:      logger.Component("session"),
		period:   m.CurrentPeriod(),
	}
}

// State returns the session state as seen by actor.
func (s *Session) State(actor payroll.Actor) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked(actor)
}

func (s *Session) stateLocked(actor payroll.Actor) State {
	st := State{Mode: ModeLive, Period: s.period, Label: generic.LabelOf(s.period)}
	if s.entry != nil {
		st.Mode = ModeArchive
		st.Label = s.entry.Label
		st.ArchiveID = s.entry.ID
		st.ReadOnly = actor == nil || !actor.IsAdministrator()
	}
	return st
}

// ArchiveID returns the open archive, or ErrNotInArchive.
func (s *Session) ArchiveID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entry == nil {
		return "", ErrNotInArchive
	}
	return s.entry.ID, nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Open enters ARCHIVE_VIEW on the archive id. Entries without rawData are
// refused with *NoDetailError and the session is left unchanged.
func (s *Session) Open(ctx context.Context, id string) (State, error) {
	e, err := s.archives.Get(ctx, id)
	if err != nil {
		return State{}, err
	}
	return s.enter(*e)
}

func (s *Session) enter(e Entry) (State, error) {
	if !e.HasDetail() {
		return State{}, &NoDetailError{ID: e.ID, Label: e.Label}
	}
	p, err := e.Period()
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = &e
	s.period = p
	s.log.Debug().Str("month", e.Label).Str("archive_id", e.ID).Msg("archive opened")
	return s.stateLocked(payroll.System), nil
}

// OpenByLabel opens the archive matching a typed month label. On a miss
// the session goes LIVE on the month the label names.
func (s *Session) OpenByLabel(ctx context.Context, query string) (State, error) {
	e, err := s.archives.FindByLabel(ctx, query)
	if err != nil {
		return State{}, err
	}
	if e != nil {
		return s.enter(*e)
	}
	p, err := generic.ParseMonthLabel(query)
	if err != nil {
		return State{}, err
	}
	return s.goLive(p), nil
}

// SelectMonth is the administrator month picker: the month's archive when
// there is one, the live store otherwise.
func (s *Session) SelectMonth(ctx context.Context, year int, month time.Month) (State, error) {
	p := generic.MonthPeriod(year, month)
	e, err := s.archives.ForPeriod(ctx, p)
	if err != nil {
		return State{}, err
	}
	if e != nil && e.HasDetail() {
		return s.enter(*e)
	}
	return s.goLive(p), nil
}

// Exit returns to LIVE on the current month.
func (s *Session) Exit() State {
	return s.goLive(s.archives.CurrentPeriod())
}

func (s *Session) goLive(p generic.Period) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry != nil {
		s.log.Debug().Str("month", s.entry.Label).Msg("archive closed")
	}
	s.entry = nil
	s.period = p
	return s.stateLocked(payroll.System)
}

// Forget leaves ARCHIVE_VIEW when id is the open archive. Used after the
// archive was deleted.
func (s *Session) Forget(id string) {
	s.mu.RLock()
	open := s.entry != nil && s.entry.ID == id
	s.mu.RUnlock()
	if open {
		s.Exit()
	}
}

// =============================================================================
// READS
// =============================================================================

// Scope returns the active record source and period.
func (s *Session) Scope(ctx context.Context) (payroll.Scope, error) {
	s.mu.RLock()
	entry, period := s.entry, s.period
	var data payroll.Dataset
	if entry != nil {
		data = entry.Stats.RawData.Clone()
	}
	s.mu.RUnlock()

	if entry == nil {
		live, err := s.archives.Records().Dataset(ctx)
		if err != nil {
			return payroll.Scope{}, err
		}
		data = live
	}
	return payroll.NewScope(data, period), nil
}

// =============================================================================
// WRITES
// =============================================================================

// Upsert applies a cell edit to the active source. In archive view only
// administrators write: the rawData copy is edited, stats are recomputed
// for the archive's own month and the entry is persisted before the
// session adopts it.
func (s *Session) Upsert(ctx context.Context, actor payroll.Actor, cell payroll.Cell) (WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry == nil {
		if err := s.archives.Records().Upsert(ctx, cell); err != nil {
			return WriteResult{Mode: ModeLive}, err
		}
		return WriteResult{Applied: true, Mode: ModeLive}, nil
	}

	if actor == nil || !actor.IsAdministrator() {
		s.log.Debug().
			Str("archive_id", s.entry.ID).
			Str("role", string(cell.Role())).
			Msg("archive write dropped for non-administrator")
		return WriteResult{Mode: ModeArchive}, nil
	}

	if !s.period.ContainsDate(cell.Day()) {
		return WriteResult{Mode: ModeArchive}, fmt.Errorf("%s in %q: %w", cell.Day(), s.entry.Label, ErrOutsideArchiveMonth)
	}

	data := s.entry.Stats.RawData.Clone()
	cell.Apply(&data)
	updated, err := s.archives.Replace(ctx, *s.entry, data)
	if err != nil {
		return WriteResult{Mode: ModeArchive}, err
	}
	s.entry = updated
	return WriteResult{Applied: true, Mode: ModeArchive}, nil
}

// ArchiveActiveMonth closes the month the session is on. In archive view
// that month is already archived.
func (s *Session) ArchiveActiveMonth(ctx context.Context) (*Entry, error) {
	s.mu.RLock()
	entry, period := s.entry, s.period
	s.mu.RUnlock()

	if entry != nil {
		return nil, &ExistsError{Label: entry.Label, ID: entry.ID}
	}
	return s.archives.ArchivePeriod(ctx, period)
}
