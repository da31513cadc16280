/*
Package payroll holds the domain types of the sales payroll engine.

PURPOSE:
  Roster entities, per-role daily reports, and the Dataset that bundles
  one consistent record source (either the live store or an archive's
  frozen copy). Every computation in metrics/ and salary/ reads a Scope,
  never global state.

ROLES:
  manager:  SDR, books appointments from calls
  expert:   closer, conducts meetings and sells
  marketer: paid acquisition, one shared marketing report per day

RECORD KEYS:
  manager report   (managerId, date)
  expert sale      (expertId, date)
  marketing report (date)

  Dates are ISO YYYY-MM-DD strings and compare bit-exact.

SEE ALSO:
  - report.go: Report types and typed field setters
  - dataset.go: Dataset, dedup, Scope
  - actor.go: Auth collaborator interface
*/
package payroll

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies one of the three report-producing roles.
type Role string

const (
	RoleManager  Role = "manager"
	RoleExpert   Role = "expert"
	RoleMarketer Role = "marketer"
)

// Roles returns every role in display order.
func Roles() []Role { return []Role{RoleManager, RoleExpert, RoleMarketer} }

var (
	// ErrUnknownRole is returned when a role name cannot be resolved.
	ErrUnknownRole = errors.New("unknown role")

	// ErrUnknownField is returned when a cell names a field the role's
	// report does not have.
	ErrUnknownField = errors.New("unknown report field")
)

// ParseRole accepts singular and plural names ("managers", "expert",
// "marketing").
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manager", "managers":
		return RoleManager, nil
	case "expert", "experts":
		return RoleExpert, nil
	case "marketer", "marketers", "marketing":
		return RoleMarketer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Plural returns the collection-style name used in URLs.
func (r Role) Plural() string { return string(r) + "s" }
