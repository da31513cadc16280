/*
scheduler.go - Automated month rollover

PURPOSE:
  Runs the archive manager's rollover check on a cron schedule so a month
  is closed shortly after it ends even when nobody presses the button.

DESIGN:
  - robfig/cron with a standard 5-field spec (default "5 0 * * *")
  - Every run: CheckRollover, then DetectOrphanedMonth for months the
    marker never named
  - After a close, a LIVE session is moved to the new current month
  - Runs never overlap (SkipIfStillRunning)

USAGE:
  scheduler := NewRolloverScheduler(archives, session, "5 0 * * *")
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - archive/manager.go: CheckRollover, DetectOrphanedMonth
  - handlers.go: CloseMonth endpoint (manual close)
*/
package api

import (
	"context"
	"errors"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/warp/sales-payroll/archive"
	"github.com/warp/sales-payroll/logger"
)

// RolloverScheduler closes finished months in the background.
type RolloverScheduler struct {
	Archives *archive.Manager
	Session  *archive.Session
	Spec     string

	log  zerolog.Logger
	cron *cron.Cron
	mu   sync.Mutex
}

// NewRolloverScheduler creates a scheduler. session may be nil.
func NewRolloverScheduler(archives *archive.Manager, session *archive.Session, spec string) *RolloverScheduler {
	return &RolloverScheduler{
		Archives: archives,
		Session:  session,
		Spec:     spec,
		log:      logger.Component("scheduler"),
	}
}

// Start registers the job and starts the cron loop.
func (rs *RolloverScheduler) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron != nil {
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(rs.Spec, func() { rs.RunOnce(context.Background()) }); err != nil {
		return err
	}
	c.Start()
	rs.cron = c
	rs.log.Info().Str("spec", rs.Spec).Msg("rollover scheduler started")
	return nil
}

// Stop stops the cron loop and waits for a running check.
func (rs *RolloverScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron == nil {
		return
	}
	<-rs.cron.Stop().Done()
	rs.cron = nil
	rs.log.Info().Msg("rollover scheduler stopped")
}

// RunOnce performs one rollover check. It returns the labels of every
// month it closed.
func (rs *RolloverScheduler) RunOnce(ctx context.Context) []string {
	var closed []string

	entry, err := rs.Archives.CheckRollover(ctx)
	if err != nil {
		rs.log.Error().Err(err).Msg("rollover check failed")
	} else if entry != nil {
		closed = append(closed, entry.Label)
	}

	healed, err := rs.Archives.DetectOrphanedMonth(ctx)
	if err != nil {
		rs.log.Error().Err(err).Msg("orphaned month check failed")
	}
	closed = append(closed, healed...)

	if len(closed) > 0 {
		rs.followCurrentMonth()
		rs.log.Info().Strs("months", closed).Msg("months closed")
	}
	return closed
}

func (rs *RolloverScheduler) followCurrentMonth() {
	if rs.Session == nil {
		return
	}
	if _, err := rs.Session.ArchiveID(); errors.Is(err, archive.ErrNotInArchive) {
		rs.Session.Exit()
	}
}
