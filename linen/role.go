package linen

// =============================================================================
// ROLE - Closed set of account roles
// =============================================================================

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
	RoleSupervisor Role = "supervisor"
)

func (r Role) Valid() bool {
	_, ok := capabilityTable[r]
	return ok
}

// =============================================================================
// CAPABILITIES - What each role may see and do
// =============================================================================

// Capabilities is the single place where role-dependent behavior is decided.
// Services consult it instead of branching on the role themselves.
type Capabilities struct {
	// SeeAllROLs lets the role read every ledger record. Without it only
	// records authored by the principal are visible.
	SeeAllROLs bool

	// CreateROL lets the role author new ledger records.
	CreateROL bool

	// ManageReference lets the role create, update and delete units,
	// clothing types and users.
	ManageReference bool

	// SeeReferenceCounts adds entity counts to dashboards.
	SeeReferenceCounts bool
}

var capabilityTable = map[Role]Capabilities{
	RoleAdmin: {
		SeeAllROLs:         true,
		CreateROL:          true,
		ManageReference:    true,
		SeeReferenceCounts: true,
	},
	RoleSupervisor: {
		SeeAllROLs: true,
		CreateROL:  true,
	},
	RoleUser: {
		CreateROL: true,
	},
}

// CapabilitiesOf returns the capability set of a role. Unknown roles get
// the zero set, which grants nothing.
func CapabilitiesOf(r Role) Capabilities {
	return capabilityTable[r]
}

// =============================================================================
// PRINCIPAL - Authenticated context supplied by the identity provider
// =============================================================================

// Principal is the opaque identity context the ledger consumes. The ledger
// never authenticates; it trusts whatever the identity provider hands it.
type Principal struct {
	UserID string
	Role   Role
	UnitID string
	Sector Sector
}

// PrincipalOf builds the principal for a stored user.
func PrincipalOf(u User) Principal {
	return Principal{UserID: u.ID, Role: u.Role, UnitID: u.UnitID, Sector: u.Sector}
}

func (p Principal) Can() Capabilities { return CapabilitiesOf(p.Role) }

// CanSee reports whether the principal may read the given record.
func (p Principal) CanSee(r ROL) bool {
	return p.Can().SeeAllROLs || r.AuthorUserID == p.UserID
}
