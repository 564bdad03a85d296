// Package rbac holds the static role/permission table for organization
// members. The table is an explicit enumeration so every grant can be
// audited in one place; nothing is inferred from role ordering.
package rbac

// Role is an organization-level role.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Permission is a named capability checked against a role.
type Permission string

const (
	PermDealCreate    Permission = "deal:create"
	PermDealEdit      Permission = "deal:edit"
	PermDealDelete    Permission = "deal:delete"
	PermContactCreate Permission = "contact:create"
	PermContactEdit   Permission = "contact:edit"
	PermContactDelete Permission = "contact:delete"
	PermCompanyCreate Permission = "company:create"
	PermCompanyEdit   Permission = "company:edit"
	PermCompanyDelete Permission = "company:delete"
	PermTagCreate     Permission = "tag:create"
	PermTagEdit       Permission = "tag:edit"
	PermTagDelete     Permission = "tag:delete"
	PermTaskCreate    Permission = "task:create"
	PermTaskEdit      Permission = "task:edit"
	PermTaskDelete    Permission = "task:delete"
	PermOrgEdit       Permission = "org:edit"
	PermMemberManage  Permission = "member:manage"
)

// Permissions lists every known permission.
var Permissions = []Permission{
	PermDealCreate, PermDealEdit, PermDealDelete,
	PermContactCreate, PermContactEdit, PermContactDelete,
	PermCompanyCreate, PermCompanyEdit, PermCompanyDelete,
	PermTagCreate, PermTagEdit, PermTagDelete,
	PermTaskCreate, PermTaskEdit, PermTaskDelete,
	PermOrgEdit, PermMemberManage,
}

// Roles lists every known role.
var Roles = []Role{RoleOwner, RoleAdmin, RoleMember}

var grants = map[Role]map[Permission]bool{
	RoleOwner: {
		PermDealCreate: true, PermDealEdit: true, PermDealDelete: true,
		PermContactCreate: true, PermContactEdit: true, PermContactDelete: true,
		PermCompanyCreate: true, PermCompanyEdit: true, PermCompanyDelete: true,
		PermTagCreate: true, PermTagEdit: true, PermTagDelete: true,
		PermTaskCreate: true, PermTaskEdit: true, PermTaskDelete: true,
		PermOrgEdit: true, PermMemberManage: true,
	},
	RoleAdmin: {
		PermDealCreate: true, PermDealEdit: true, PermDealDelete: true,
		PermContactCreate: true, PermContactEdit: true, PermContactDelete: true,
		PermCompanyCreate: true, PermCompanyEdit: true, PermCompanyDelete: true,
		PermTagCreate: true, PermTagEdit: true, PermTagDelete: true,
		PermTaskCreate: true, PermTaskEdit: true, PermTaskDelete: true,
		PermOrgEdit: true, PermMemberManage: true,
	},
	RoleMember: {
		PermDealCreate: true, PermDealEdit: true, PermDealDelete: false,
		PermContactCreate: true, PermContactEdit: true, PermContactDelete: false,
		PermCompanyCreate: true, PermCompanyEdit: false, PermCompanyDelete: false,
		PermTagCreate: true, PermTagEdit: false, PermTagDelete: false,
		PermTaskCreate: true, PermTaskEdit: true, PermTaskDelete: true,
		PermOrgEdit: false, PermMemberManage: false,
	},
}

// Can reports whether role holds permission. Pure and total: unknown roles
// or permissions are simply denied.
func Can(role Role, permission Permission) bool {
	perms, ok := grants[role]
	if !ok {
		return false
	}
	return perms[permission]
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	_, ok := grants[r]
	return ok
}
