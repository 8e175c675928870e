package models

// Roles recognized by the authorization checks.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Identity is the verified caller supplied by the auth middleware.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the caller holds the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// CanAccess reports whether the caller may act on a record owned by ownerUID:
// owners and admins only.
func (id Identity) CanAccess(ownerUID string) bool {
	return id.IsAdmin() || id.UID == ownerUID
}
