// Package org resolves which organization an authenticated user is
// currently acting within, repairing a missing pointer on the way.
package org

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"crmapi/internal/logger"
	"crmapi/internal/models"
)

// ErrUnauthenticated means no authenticated user was supplied. Callers
// route to the login flow; the condition is never retried.
var ErrUnauthenticated = errors.New("not authenticated")

// ErrNoOrganization means the user belongs to no organization at all.
// This is the normal unonboarded state: callers route to the
// organization-creation flow, it is not a failure.
var ErrNoOrganization = errors.New("no organization membership")

// ResolverStore is the subset of storage the resolver needs.
type ResolverStore interface {
	ActiveOrgID(ctx context.Context, userID int) (int, bool, error)
	SetActiveOrgID(ctx context.Context, userID, orgID int) error
	MembershipsByUser(ctx context.Context, userID int) ([]models.Membership, error)
}

// Resolver determines a user's active organization.
type Resolver struct {
	store ResolverStore
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store ResolverStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the organization id the user is acting within.
//
// A stored pointer is trusted as-is; membership in the pointed-at
// organization is not re-verified here, the guard's membership lookup
// catches a dangling pointer. With no pointer, the earliest membership
// wins and the choice is written back so the next call short-circuits.
// The write-back is best-effort: if it fails the resolved id is still
// returned and the failure only shows up as the absence of healing.
func (r *Resolver) Resolve(ctx context.Context, userID int) (int, error) {
	if userID == 0 {
		return 0, ErrUnauthenticated
	}

	orgID, ok, err := r.store.ActiveOrgID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if ok {
		return orgID, nil
	}

	memberships, err := r.store.MembershipsByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(memberships) == 0 {
		return 0, ErrNoOrganization
	}

	// First organization joined wins.
	chosen := memberships[0].OrganizationID

	if err := r.store.SetActiveOrgID(ctx, userID, chosen); err != nil {
		logger.Get().Warn("active org auto-heal write failed",
			zap.Int("user_id", userID), zap.Int("org_id", chosen), zap.Error(err))
	}

	return chosen, nil
}
