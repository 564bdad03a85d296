package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmapi/internal/models"
	"crmapi/internal/org"
	"crmapi/internal/rbac"
)

type fakeResolver struct {
	orgID int
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, userID int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.orgID, nil
}

type fakeMemberships struct {
	rows map[[2]int]*models.Membership
	err  error
}

func (f *fakeMemberships) MembershipByUserOrg(ctx context.Context, userID, orgID int) (*models.Membership, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[[2]int{userID, orgID}], nil
}

func guardWith(orgID int, role string) *Guard {
	memberships := &fakeMemberships{rows: map[[2]int]*models.Membership{}}
	if role != "" {
		memberships.rows[[2]int{7, orgID}] = &models.Membership{
			OrganizationID: orgID,
			UserID:         7,
			Role:           role,
			CreatedAt:      time.Now(),
		}
	}
	return NewGuard(&fakeResolver{orgID: orgID}, memberships)
}

func TestCheckMemberDeniedCompanyEdit(t *testing.T) {
	g := guardWith(1, "member")

	decision, err := g.Check(context.Background(), 7, rbac.PermCompanyEdit)
	require.NoError(t, err)
	assert.False(t, decision.Authorized)
	assert.Equal(t, ReasonInsufficientPermission, decision.Reason)
}

func TestCheckOwnerAllowedCompanyEdit(t *testing.T) {
	g := guardWith(1, "owner")

	decision, err := g.Check(context.Background(), 7, rbac.PermCompanyEdit)
	require.NoError(t, err)
	assert.True(t, decision.Authorized)
	assert.Equal(t, Context{OrgID: 1, UserID: 7, Role: rbac.RoleOwner}, decision.Context)
}

func TestCheckDanglingPointerDeniesNotAMember(t *testing.T) {
	// The resolver trusts a stored pointer to org 1, but the membership
	// there has since been removed. The guard must say "not a member",
	// not silently fall back to another organization.
	g := guardWith(1, "")

	decision, err := g.Check(context.Background(), 7, rbac.PermDealEdit)
	require.NoError(t, err)
	assert.False(t, decision.Authorized)
	assert.Equal(t, ReasonNotAMember, decision.Reason)
}

func TestCheckMembershipBeforePermissionTable(t *testing.T) {
	// Even for a permission every role holds, missing membership wins.
	g := guardWith(1, "")

	for _, perm := range rbac.Permissions {
		decision, err := g.Check(context.Background(), 7, perm)
		require.NoError(t, err)
		assert.False(t, decision.Authorized)
		assert.Equal(t, ReasonNotAMember, decision.Reason, "perm=%s", perm)
	}
}

func TestCheckPropagatesRoutingSignals(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		g := NewGuard(&fakeResolver{err: org.ErrUnauthenticated}, &fakeMemberships{})
		_, err := g.Check(context.Background(), 0, rbac.PermDealEdit)
		assert.ErrorIs(t, err, org.ErrUnauthenticated)
	})

	t.Run("unonboarded", func(t *testing.T) {
		g := NewGuard(&fakeResolver{err: org.ErrNoOrganization}, &fakeMemberships{})
		_, err := g.Check(context.Background(), 7, rbac.PermDealEdit)
		assert.ErrorIs(t, err, org.ErrNoOrganization)
	})
}

func TestCheckStoreFailureIsNotADenial(t *testing.T) {
	g := NewGuard(&fakeResolver{orgID: 1}, &fakeMemberships{err: errors.New("connection refused")})

	_, err := g.Check(context.Background(), 7, rbac.PermDealEdit)
	require.Error(t, err)
	assert.False(t, IsDenied(err))
}

func TestRequireSharesDecisionPath(t *testing.T) {
	t.Run("denial becomes DeniedError with the same reason", func(t *testing.T) {
		g := guardWith(1, "member")

		_, err := g.Require(context.Background(), 7, rbac.PermCompanyEdit)
		require.Error(t, err)
		assert.True(t, IsDenied(err))
		assert.Equal(t, ReasonInsufficientPermission, err.Error())
	})

	t.Run("success returns the same context as Check", func(t *testing.T) {
		g := guardWith(1, "admin")

		authCtx, err := g.Require(context.Background(), 7, rbac.PermMemberManage)
		require.NoError(t, err)
		assert.Equal(t, Context{OrgID: 1, UserID: 7, Role: rbac.RoleAdmin}, authCtx)
	})
}

func TestIsDenied(t *testing.T) {
	assert.True(t, IsDenied(&DeniedError{Reason: ReasonNotAMember}))
	assert.False(t, IsDenied(errors.New("boom")))
	assert.False(t, IsDenied(nil))
}
