package payroll

// =============================================================================
// ACTOR - The authentication collaborator, consumed not implemented
// =============================================================================

// Actor is who is calling. Archive edits require an administrator; a linked
// entity scopes "my data only" views.
type Actor interface {
	IsAdministrator() bool
	LinkedEntityID() (string, bool)
}

// Principal is a plain Actor.
type Principal struct {
	Admin    bool
	Role     Role
	EntityID string
}

func (p Principal) IsAdministrator() bool { return p.Admin }

func (p Principal) LinkedEntityID() (string, bool) {
	return p.EntityID, p.EntityID != ""
}

// System is the administrator identity used by startup and scheduled jobs.
var System Actor = Principal{Admin: true}

// Visible reports whether actor may see rows owned by entityID.
// Administrators and unlinked actors see everything.
func Visible(actor Actor, entityID string) bool {
	if actor == nil || actor.IsAdministrator() {
		return true
	}
	linked, ok := actor.LinkedEntityID()
	return !ok || linked == entityID
}
