package policy

// Marketplace roles, shared vocabulary for policy checks across call sites.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleSeller    = "seller"
	RoleCustomer  = "customer"
)

// StaffRoles lists the roles with elevated marketplace access.
func StaffRoles() []string {
	return []string{RoleAdmin, RoleModerator}
}
