/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types from
  payroll/, metrics/, salary/ and archive/ already carry their wire
  names and are returned directly; the types here cover request bodies
  and the few responses that wrap several domain values.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
  Numeric cell text is never rejected: it is clamped by the record store.

SEE ALSO:
  - handlers.go: Uses these types
  - archive/session.go: State, WriteResult
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/warp/sales-payroll/archive"
	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/metrics"
	"github.com/warp/sales-payroll/payroll"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CellRequest is one spreadsheet cell edit.
type CellRequest struct {
	EntityID string          `json:"entityId"`
	Date     string          `json:"date"`
	Field    string          `json:"field"`
	Value    json.RawMessage `json:"value"`
}

// CellValue converts the raw JSON value. Booleans become flags; strings
// and numbers become text for the clamping parsers.
func (c CellRequest) CellValue() payroll.CellValue {
	raw := strings.TrimSpace(string(c.Value))
	switch raw {
	case "", "null":
		return payroll.Text("")
	case "true":
		return payroll.Flag(true)
	case "false":
		return payroll.Flag(false)
	}
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		return payroll.Text(s)
	}
	return payroll.Text(raw)
}

// SelectMonthRequest drives the administrator month picker.
type SelectMonthRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// OpenLabelRequest opens an archive by (partial) month label.
type OpenLabelRequest struct {
	Label string `json:"label"`
}

// CloseMonthRequest closes the current month, or the labelled one.
type CloseMonthRequest struct {
	Label string `json:"label,omitempty"`
}

// LoadScenarioRequest loads a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ReportsResponse lists the active period's reports of one role.
type ReportsResponse struct {
	Session archive.State `json:"session"`
	Reports any           `json:"reports"`
}

// ManagerReportRow is a manager report with its day-level figures. Name
// is empty when the manager is no longer on the roster.
type ManagerReportRow struct {
	payroll.ManagerReport
	metrics.DailyKPI
	NormViolated bool   `json:"normViolated"`
	Name         string `json:"name"`
}

// ExpertSaleRow is an expert's day with the expert's display name.
type ExpertSaleRow struct {
	payroll.ExpertSale
	Name string `json:"name"`
}

// PromotionResponse is the outcome of a promotion check.
type PromotionResponse struct {
	Manager  payroll.Manager `json:"manager"`
	Eligible bool            `json:"eligible"`
	Promoted bool            `json:"promoted"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// WRITERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP status codes:
//
//	403  not an administrator
//	422  archive without detail
//	404  lookup miss
//	409  duplicate month / existing archive
//	400  malformed date, label, role or field; archive edit off its month
//	500  everything else
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, archive.ErrNotAdministrator):
		return http.StatusForbidden
	case errors.Is(err, archive.ErrNoDetail):
		return http.StatusUnprocessableEntity
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err), errors.Is(err, archive.ErrArchiveExists):
		return http.StatusConflict
	case generic.IsClientError(err),
		errors.Is(err, payroll.ErrUnknownRole),
		errors.Is(err, payroll.ErrUnknownField),
		errors.Is(err, archive.ErrNotInArchive),
		errors.Is(err, archive.ErrOutsideArchiveMonth):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return io.EOF
	}
	return json.NewDecoder(r.Body).Decode(v)
}
