package policy

import (
	"github.com/spec-kit/listing-service/internal/domain"
)

// Reason codes attached to authorization decisions. Denial is a normal
// outcome, never an error.
const (
	ReasonAllowed          = "ALLOWED"
	ReasonOwner            = "OWNER"
	ReasonRoleSufficient   = "ROLE_SUFFICIENT"
	ReasonMissingActor     = "MISSING_ACTOR"
	ReasonMissingOwner     = "MISSING_OWNER"
	ReasonRoleInsufficient = "ROLE_INSUFFICIENT"
	ReasonUnknownRole      = "UNKNOWN_ROLE"
)

// Escalation bars for comment moderation. Deletion deliberately sits
// below editing: admins can remove but not rewrite others' content.
const (
	CommentEditEscalation   = domain.RoleSuperAdmin
	CommentDeleteEscalation = domain.RoleAdmin
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Subsumes reports whether having `have` satisfies a requirement of
// `need`, per the fixed total role order.
func Subsumes(have, need domain.Role) bool {
	haveRank, ok := have.Rank()
	if !ok {
		return false
	}
	needRank, ok := need.Rank()
	if !ok {
		return false
	}
	return haveRank >= needRank
}

// CanPerform authorizes an action gated by requiredRole. A nil
// requiredRole means the action is public. An absent actor role always
// denies; anonymous callers never gain elevation.
func CanPerform(actorRole *domain.Role, requiredRole *domain.Role) Decision {
	if requiredRole == nil {
		return allow(ReasonAllowed)
	}
	if actorRole == nil {
		return deny(ReasonMissingActor)
	}
	if !actorRole.Valid() || !requiredRole.Valid() {
		return deny(ReasonUnknownRole)
	}
	if Subsumes(*actorRole, *requiredRole) {
		return allow(ReasonRoleSufficient)
	}
	return deny(ReasonRoleInsufficient)
}

// CanEdit authorizes mutation of an owned resource: the owner may
// always act, anyone else needs the escalation role. Ownership must be
// provable; missing ids deny regardless of role.
func CanEdit(actorRole *domain.Role, actorID, resourceOwnerID string, escalation domain.Role) Decision {
	if actorID == "" {
		return deny(ReasonMissingActor)
	}
	if resourceOwnerID == "" {
		return deny(ReasonMissingOwner)
	}
	if actorID == resourceOwnerID {
		return allow(ReasonOwner)
	}
	return CanPerform(actorRole, &escalation)
}

// RequireRole is a convenience wrapper for checks against a known
// minimum role.
func RequireRole(actorRole domain.Role, minimum domain.Role) Decision {
	return CanPerform(&actorRole, &minimum)
}
