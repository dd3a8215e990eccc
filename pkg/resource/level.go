package resource

// Level is one permission rule evaluated against a loaded resource. The set
// is closed; each level maps to exactly one predicate in the controller.
type Level int

const (
	// Public grants access to any authenticated caller and short-circuits
	// every other configured level.
	Public Level = iota
	// Authenticated grants access to any authenticated caller.
	Authenticated
	// ProfileOwner grants access when the caller id equals the resource id
	// itself. Used when the resource is a user profile.
	ProfileOwner
	// HostAdmin grants access when the caller id equals the resource's
	// owner field (the host of an event, the author of a story).
	HostAdmin
	// FamilyMember grants access when the caller's profile belongs to the
	// same family group as the resource.
	FamilyMember
	// TreeOwner grants access when the caller owns the family group the
	// resource belongs to.
	TreeOwner
)

func (l Level) String() string {
	switch l {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case ProfileOwner:
		return "profile_owner"
	case HostAdmin:
		return "host_admin"
	case FamilyMember:
		return "family_member"
	case TreeOwner:
		return "tree_owner"
	default:
		return "unknown"
	}
}
