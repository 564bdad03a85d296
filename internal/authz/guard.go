// Package authz answers "may this user perform this action in their
// active organization right now?".
package authz

import (
	"context"
	"errors"

	"crmapi/internal/models"
	"crmapi/internal/rbac"
)

// Denial reasons surfaced to users. Denials are data-driven, never
// transient; callers must not retry them.
const (
	ReasonNotAMember             = "you are not a member of this organization"
	ReasonInsufficientPermission = "you don't have permission to perform this action"
)

// Context is the request-scoped result of a successful authorization
// check. It is never persisted.
type Context struct {
	OrgID  int       `json:"org_id"`
	UserID int       `json:"user_id"`
	Role   rbac.Role `json:"role"`
}

// Decision is the outcome of a single authorization check. When
// Authorized is false, Reason carries the human-readable denial.
type Decision struct {
	Authorized bool
	Context    Context
	Reason     string
}

// OrgResolver resolves the user's active organization.
type OrgResolver interface {
	Resolve(ctx context.Context, userID int) (int, error)
}

// MembershipLookup fetches a single membership row, nil when absent.
type MembershipLookup interface {
	MembershipByUserOrg(ctx context.Context, userID, orgID int) (*models.Membership, error)
}

// Guard combines the resolver, the membership lookup, and the permission
// table into one decision path.
type Guard struct {
	resolver    OrgResolver
	memberships MembershipLookup
}

// NewGuard creates a Guard.
func NewGuard(resolver OrgResolver, memberships MembershipLookup) *Guard {
	return &Guard{resolver: resolver, memberships: memberships}
}

// Check is the non-throwing form: it returns a denial Decision for the
// two data-driven failure cases and only errors on resolver routing
// signals or storage failures.
//
// Membership absence is checked before the permission table, so a user
// whose membership was removed is told "not a member" even for
// permissions every role holds.
func (g *Guard) Check(ctx context.Context, userID int, permission rbac.Permission) (Decision, error) {
	orgID, err := g.resolver.Resolve(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	membership, err := g.memberships.MembershipByUserOrg(ctx, userID, orgID)
	if err != nil {
		return Decision{}, err
	}
	if membership == nil {
		return Decision{Authorized: false, Reason: ReasonNotAMember}, nil
	}

	role := rbac.Role(membership.Role)
	if !rbac.Can(role, permission) {
		return Decision{Authorized: false, Reason: ReasonInsufficientPermission}, nil
	}

	return Decision{
		Authorized: true,
		Context:    Context{OrgID: orgID, UserID: userID, Role: role},
	}, nil
}

// Member resolves the caller's membership context in their active
// organization without consulting the permission table. Read paths use
// this; mutations go through Check or Require.
func (g *Guard) Member(ctx context.Context, userID int) (Decision, error) {
	orgID, err := g.resolver.Resolve(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	membership, err := g.memberships.MembershipByUserOrg(ctx, userID, orgID)
	if err != nil {
		return Decision{}, err
	}
	if membership == nil {
		return Decision{Authorized: false, Reason: ReasonNotAMember}, nil
	}

	return Decision{
		Authorized: true,
		Context:    Context{OrgID: orgID, UserID: userID, Role: rbac.Role(membership.Role)},
	}, nil
}

// DeniedError carries a denial reason out of Require.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return e.Reason }

// Require is the error form of Check: a denial becomes a *DeniedError
// with the same reason. Both forms share the single decision path above.
func (g *Guard) Require(ctx context.Context, userID int, permission rbac.Permission) (Context, error) {
	decision, err := g.Check(ctx, userID, permission)
	if err != nil {
		return Context{}, err
	}
	if !decision.Authorized {
		return Context{}, &DeniedError{Reason: decision.Reason}
	}
	return decision.Context, nil
}

// IsDenied reports whether err is an authorization denial.
func IsDenied(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied)
}
