/*
handlers.go - HTTP API handlers for the sales payroll engine

PURPOSE:
  Exposes the record store, metrics, salaries and archives via REST.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic. Every read goes through the archive Session, so the same
  endpoint serves live data or an archived month depending on the mode.

ENDPOINTS:
  Session:
    GET    /api/session                      Mode, period, month label
    POST   /api/session/month                {year, month} month picker (admin)
    POST   /api/session/archive/{id}         Enter archive view
    POST   /api/session/open                 {label} open by label
    POST   /api/session/exit                 Back to LIVE

  Per role (managers | experts | marketers):
    GET    /api/{role}/reports               Reports in the active period
    PUT    /api/{role}/cells                 {entityId, date, field, value}
    GET    /api/{role}/metrics               Ranked aggregates
    GET    /api/{role}/metrics/{id}          One entity
    GET    /api/{role}/salary                Salaries

  Marketing:
    GET    /api/marketing/daily/{date}       Synced daily view
    GET    /api/marketing/funnel             Funnel metrics

  Roster:
    GET    /api/roster/{role}                List
    POST   /api/roster/{role}                Add (admin)
    PUT    /api/roster/{role}/{id}           Update (admin)
    DELETE /api/roster/{role}/{id}           Delete, reports are kept (admin)
    POST   /api/roster/managers/{id}/promote Promotion check + apply (admin)

  Archives:
    GET    /api/archives                     History
    GET    /api/archives/{id}                One entry with stats
    POST   /api/archives/close               {label?} close a month (admin)
    DELETE /api/archives/{id}                Delete (admin)

  Decomposition:
    GET    /api/decomposition/{label}        Targets and needed volumes
    PUT    /api/decomposition/{label}        Merge targets (admin)

PERMISSIONS:
  The actor comes from ActorMiddleware. A non-administrator's cell write
  in archive view is not an error: the response is 200 with
  applied=false. Non-administrators linked to an entity only see their
  own rows in report listings.

ERROR HANDLING:
  Errors are returned as JSON {"error", "details"}, see writeDomainError.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/sales-payroll/archive"
	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/logger"
	"github.com/warp/sales-payroll/metrics"
	"github.com/warp/sales-payroll/payroll"
	"github.com/warp/sales-payroll/planning"
	"github.com/warp/sales-payroll/records"
	"github.com/warp/sales-payroll/salary"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Session  *archive.Session
	Archives *archive.Manager
	Planner  *planning.Planner

	log zerolog.Logger
}

// NewHandler creates a handler with a fresh LIVE session.
func NewHandler(archives *archive.Manager, planner *planning.Planner) *Handler {
	return &Handler{
		Session:  archive.NewSession(archives),
		Archives: archives,
		Planner:  planner,
		log:      logger.Component("api"),
	}
}

func (h *Handler) records() *records.Repository { return h.Archives.Records() }
func (h *Handler) calc() *salary.Calculator     { return h.Archives.Calculator() }

func roleParam(r *http.Request) (payroll.Role, error) {
	return payroll.ParseRole(chi.URLParam(r, "role"))
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if actorFrom(r).IsAdministrator() {
		return true
	}
	writeDomainError(w, "Administrator required", archive.ErrNotAdministrator)
	return false
}

// scope resolves the active record source or writes the error.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (payroll.Scope, bool) {
	s, err := h.Session.Scope(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to load records", err)
		return payroll.Scope{}, false
	}
	return s, true
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// GetSession returns the session state as seen by the caller.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.State(actorFrom(r)))
}

// SelectMonth switches to a month's archive, or LIVE on that month.
func (h *Handler) SelectMonth(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var req SelectMonthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 1 {
		writeError(w, http.StatusBadRequest, "Invalid month", generic.ErrInvalidPeriod)
		return
	}
	if _, err := h.Session.SelectMonth(r.Context(), req.Year, time.Month(req.Month)); err != nil {
		writeDomainError(w, "Failed to select month", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Session.State(actorFrom(r)))
}

// OpenArchive enters archive view on an archive id.
func (h *Handler) OpenArchive(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Session.Open(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to open archive", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Session.State(actorFrom(r)))
}

// OpenByLabel opens the archive matching a typed month label.
func (h *Handler) OpenByLabel(w http.ResponseWriter, r *http.Request) {
	var req OpenLabelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, err := h.Session.OpenByLabel(r.Context(), req.Label); err != nil {
		writeDomainError(w, "Failed to open month", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Session.State(actorFrom(r)))
}

// ExitArchive returns to LIVE on the current month.
func (h *Handler) ExitArchive(w http.ResponseWriter, r *http.Request) {
	h.Session.Exit()
	writeJSON(w, http.StatusOK, h.Session.State(actorFrom(r)))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// ListReports returns the active period's reports of a role.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		writeDomainError(w, "Unknown role", err)
		return
	}
	s, ok := h.scope(w, r)
	if !ok {
		return
	}
	actor := actorFrom(r)

	resp := ReportsResponse{Session: h.Session.State(actor)}
	switch role {
	case payroll.RoleManager:
		rows := []ManagerReportRow{}
		for _, rep := range s.Data.ManagerReports {
			if !s.Period.ContainsDate(rep.Date) || !payroll.Visible(actor, rep.ManagerID) {
				continue
			}
			m, _ := s.Data.Manager(rep.ManagerID)
			rows = append(rows, ManagerReportRow{
				ManagerReport: rep,
				DailyKPI:      metrics.ManagerDay(rep),
				NormViolated:  h.calc().IsDailyNormViolated(rep),
				Name:          m.Name,
			})
		}
		resp.Reports = rows
	case payroll.RoleExpert:
		rows := []ExpertSaleRow{}
		for _, sale := range s.Data.ExpertSales {
			if !s.Period.ContainsDate(sale.Date) || !payroll.Visible(actor, sale.ExpertID) {
				continue
			}
			e, _ := s.Data.Expert(sale.ExpertID)
			rows = append(rows, ExpertSaleRow{ExpertSale: sale, Name: e.Name})
		}
		resp.Reports = rows
	case payroll.RoleMarketer:
		rows := s.MarketingReports()
		if rows == nil {
			rows = []payroll.MarketingReport{}
		}
		resp.Reports = rows
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpsertCell applies one cell edit to the active source.
func (h *Handler) UpsertCell(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		writeDomainError(w, "Unknown role", err)
		return
	}
	var req CellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	cell, err := payroll.ParseCell(role, req.EntityID, req.Date, req.Field, req.CellValue())
	if err != nil {
		writeDomainError(w, "Invalid cell", err)
		return
	}

	res, err := h.Session.Upsert(r.Context(), actorFrom(r), cell)
	if err != nil {
		writeDomainError(w, "Failed to save cell", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// METRICS & SALARY HANDLERS
// =============================================================================

// ListMetrics returns the ranked aggregates of a role.
func (h *Handler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		writeDomainError(w, "Unknown role", err)
		return
	}
	s, ok := h.scope(w, r)
	if !ok {
		return
	}
	switch role {
	case payroll.RoleManager:
		writeJSON(w, http.StatusOK, nonNil(metrics.AllManagers(s)))
	case payroll.RoleExpert:
		writeJSON(w, http.StatusOK, nonNil(metrics.AllExperts(s)))
	default:
		writeJSON(w, http.StatusOK, nonNil(metrics.AllMarketers(s)))
	}
}

// GetEntityMetrics aggregates one entity, reported or not.
func (h *Handler) GetEntityMetrics(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		writeDomainError(w, "Unknown role", err)
		return
	}
	s, ok := h.scope(w, r)
	if !ok {
		return
	}
	out, err := metrics.ForEntity(s, role, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to compute metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ListSalaries returns every salary of a role for the active period.
func (h *Handler) ListSalaries(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		writeDomainError(w, "Unknown role", err)
		return
	}
	s, ok := h.scope(w, r)
	if !ok {
		return
	}
	switch role {
	case payroll.RoleManager:
		writeJSON(w, http.StatusOK, h.calc().AllManagers(s))
	case payroll.RoleExpert:
		writeJSON(w, http.StatusOK, h.calc().AllExperts(s))
	default:
		writeJSON(w, http.StatusOK, h.calc().AllMarketers(s))
	}
}

// GetDailyView returns the synced marketing row of one date.
func (h *Handler) GetDailyView(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := generic.ParseDate(date); err != nil {
		writeDomainError(w, "Invalid date", err)
		return
	}
	s, ok := h.scope(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, metrics.SyncedDailyView(s.Data, date))
}

// GetFunnel returns the funnel of the active period.
func (h *Handler) GetFunnel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.scope(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, metrics.FunnelMetrics(s))
}

// =============================================================================
// ROSTER HANDLERS
// =============================================================================

// ListRoster returns the live roster of a role.
func (h *Handler) ListRoster(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		writeDomainError(w, "Unknown role", err)
		return
	}
	roster, err := h.records().Roster(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list roster", err)
		return
	}
	switch role {
	case payroll.RoleManager:
		writeJSON(w, http.StatusOK, nonNil(roster.Managers))
	case payroll.RoleExpert:
		writeJSON(w, http.StatusOK, nonNil(roster.Experts))
	default:
		writeJSON(w, http.StatusOK, nonNil(roster.Marketers))
	}
}

// AddEntity creates a roster entity. An empty id is generated.
func (h *Handler) AddEntity(w http.ResponseWriter, r *http.Request) {
	h.saveEntity(w, r, "")
}

// UpdateEntity replaces a roster entity.
func (h *Handler) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	h.saveEntity(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) saveEntity(w http.ResponseWriter, r *http.Request, id string) {
	if !requireAdmin(w, r) {
		return
	}
	role, err := roleParam(r)
	if err != nil {
		writeDomainError(w, "Unknown role", err)
		return
	}
	ctx := r.Context()
	repo := h.records()
	status := http.StatusCreated
	if id != "" {
		status = http.StatusOK
	}

	var out any
	switch role {
	case payroll.RoleManager:
		var m payroll.Manager
		if err := decodeJSON(r, &m); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if id == "" {
			out, err = repo.AddManager(ctx, m)
		} else {
			m.ID = id
			out, err = m, repo.UpdateManager(ctx, m)
		}
	case payroll.RoleExpert:
		var e payroll.Expert
		if err := decodeJSON(r, &e); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if id == "" {
			out, err = repo.AddExpert(ctx, e)
		} else {
			e.ID = id
			out, err = e, repo.UpdateExpert(ctx, e)
		}
	default:
		var m payroll.Marketer
		if err := decodeJSON(r, &m); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if id == "" {
			out, err = repo.AddMarketer(ctx, m)
		} else {
			m.ID = id
			out, err = m, repo.UpdateMarketer(ctx, m)
		}
	}
	if err != nil {
		writeDomainError(w, "Failed to save "+string(role), err)
		return
	}
	writeJSON(w, status, out)
}

// DeleteEntity removes a roster entity. Its reports stay.
func (h *Handler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	role, err := roleParam(r)
	if err != nil {
		writeDomainError(w, "Unknown role", err)
		return
	}
	if err := h.records().DeleteEntity(r.Context(), role, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete "+string(role), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PromoteManager promotes a manager when the promotion rules allow it.
func (h *Handler) PromoteManager(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	today := h.Archives.Clock().Today()
	eligible := false
	m, promoted, err := h.records().ApplyPromotion(r.Context(), chi.URLParam(r, "id"), func(m payroll.Manager) bool {
		eligible = h.calc().PromotionEligible(m, today)
		return eligible
	})
	if err != nil {
		writeDomainError(w, "Failed to promote manager", err)
		return
	}
	writeJSON(w, http.StatusOK, PromotionResponse{Manager: m, Eligible: eligible, Promoted: promoted})
}

// =============================================================================
// ARCHIVE HANDLERS
// =============================================================================

// ListArchives returns the history without stats payloads.
func (h *Handler) ListArchives(w http.ResponseWriter, r *http.Request) {
	list, err := h.Archives.List(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list archives", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// GetArchive returns one archive with its stats.
func (h *Handler) GetArchive(w http.ResponseWriter, r *http.Request) {
	e, err := h.Archives.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get archive", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// CloseMonth archives the current month, or the month in the body.
func (h *Handler) CloseMonth(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var req CloseMonthRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var (
		e   *archive.Entry
		err error
	)
	if req.Label == "" {
		e, err = h.Session.ArchiveActiveMonth(r.Context())
	} else {
		e, err = h.Archives.ArchiveMonth(r.Context(), req.Label)
	}
	if err != nil {
		writeDomainError(w, "Failed to close month", err)
		return
	}
	writeJSON(w, http.StatusCreated, e.Summary())
}

// DeleteArchive removes an archive and leaves archive view if it was open.
func (h *Handler) DeleteArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Archives.Delete(r.Context(), actorFrom(r), id); err != nil {
		writeDomainError(w, "Failed to delete archive", err)
		return
	}
	h.Session.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// DECOMPOSITION HANDLERS
// =============================================================================

func labelParam(r *http.Request) string {
	raw := chi.URLParam(r, "label")
	if label, err := url.PathUnescape(raw); err == nil {
		return label
	}
	return raw
}

// GetDecomposition returns the month's targets and needed volumes.
func (h *Handler) GetDecomposition(w http.ResponseWriter, r *http.Request) {
	d, err := h.Planner.Get(r.Context(), labelParam(r))
	if err != nil {
		writeDomainError(w, "Failed to load decomposition", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// SaveDecomposition merges the body into the month's targets.
func (h *Handler) SaveDecomposition(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var patch planning.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	d, err := h.Planner.Save(r.Context(), labelParam(r), patch)
	if err != nil {
		writeDomainError(w, "Failed to save decomposition", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// =============================================================================
// HELPERS
// =============================================================================

// nonNil keeps empty lists as [] on the wire.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
