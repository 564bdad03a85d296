package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanIsPureAndTotal(t *testing.T) {
	// Every (role, permission) pair has a defined answer, and repeated
	// calls with identical inputs agree.
	for _, role := range Roles {
		for _, perm := range Permissions {
			first := Can(role, perm)
			for i := 0; i < 3; i++ {
				assert.Equal(t, first, Can(role, perm), "role=%s perm=%s", role, perm)
			}
		}
	}
}

func TestCanUnknownInputsDeny(t *testing.T) {
	assert.False(t, Can(Role("superuser"), PermDealEdit))
	assert.False(t, Can(RoleOwner, Permission("deal:launch")))
	assert.False(t, Can(Role(""), Permission("")))
}

func TestOwnerHasEveryPermission(t *testing.T) {
	for _, perm := range Permissions {
		assert.True(t, Can(RoleOwner, perm), "owner should hold %s", perm)
	}
}

func TestMemberGrants(t *testing.T) {
	allowed := []Permission{
		PermDealCreate, PermDealEdit,
		PermContactCreate, PermContactEdit,
		PermCompanyCreate,
		PermTagCreate,
		PermTaskCreate, PermTaskEdit, PermTaskDelete,
	}
	denied := []Permission{
		PermDealDelete,
		PermContactDelete,
		PermCompanyEdit, PermCompanyDelete,
		PermTagEdit, PermTagDelete,
		PermOrgEdit, PermMemberManage,
	}
	for _, perm := range allowed {
		assert.True(t, Can(RoleMember, perm), "member should hold %s", perm)
	}
	for _, perm := range denied {
		assert.False(t, Can(RoleMember, perm), "member should not hold %s", perm)
	}
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleOwner))
	assert.True(t, ValidRole(RoleAdmin))
	assert.True(t, ValidRole(RoleMember))
	assert.False(t, ValidRole(Role("viewer")))
}
