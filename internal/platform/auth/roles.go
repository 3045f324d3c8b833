package auth

// Role is the set of known laboratory roles. String-keyed lookups from the
// previous iteration are replaced with a closed type plus total mapping
// functions, so an unhandled role is a compile-time gap instead of a silent
// default.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleEmployee  Role = "employee"
	RoleResidente Role = "residente"
	RoleCitotecno Role = "citotecno"
	RolePatologo  Role = "patologo"

	// RoleTest is the QA god-mode role. It bypasses role guards and inline
	// feature guards but NOT route-level feature guards; the two guard
	// types intentionally differ.
	RoleTest Role = "test"
)

// EntryPath is where unauthenticated or unresolvable sessions land.
const EntryPath = "/login"

// ParseRole maps a raw claim value to a known Role. Unknown values
// (including the legacy "others" bucket) report ok=false and must never be
// granted access by callers.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleOwner, RoleEmployee, RoleResidente, RoleCitotecno, RolePatologo, RoleTest:
		return Role(s), true
	}
	return "", false
}

// DefaultPath returns the role's fixed landing path. A role outside its
// allow-list is redirected here, never to a generic error page.
func (r Role) DefaultPath() string {
	switch r {
	case RoleOwner:
		return "/dashboard"
	case RoleEmployee:
		return "/cases"
	case RoleResidente:
		return "/cases"
	case RoleCitotecno:
		return "/screening"
	case RolePatologo:
		return "/review"
	case RoleTest:
		return "/dashboard"
	}
	return EntryPath
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// AllRoles lists every known role, test role included.
func AllRoles() []Role {
	return []Role{RoleOwner, RoleEmployee, RoleResidente, RoleCitotecno, RolePatologo, RoleTest}
}
