package org

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmapi/internal/models"
)

type fakeStore struct {
	pointers    map[int]int
	memberships map[int][]models.Membership
	readErr     error
	writeErr    error
	writes      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pointers:    make(map[int]int),
		memberships: make(map[int][]models.Membership),
	}
}

func (f *fakeStore) ActiveOrgID(ctx context.Context, userID int) (int, bool, error) {
	if f.readErr != nil {
		return 0, false, f.readErr
	}
	orgID, ok := f.pointers[userID]
	return orgID, ok, nil
}

func (f *fakeStore) SetActiveOrgID(ctx context.Context, userID, orgID int) error {
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.pointers[userID] = orgID
	return nil
}

func (f *fakeStore) MembershipsByUser(ctx context.Context, userID int) ([]models.Membership, error) {
	return f.memberships[userID], nil
}

func membership(orgID, userID int, createdAt time.Time) models.Membership {
	return models.Membership{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           "member",
		CreatedAt:      createdAt,
	}
}

func TestResolveUnauthenticated(t *testing.T) {
	r := NewResolver(newFakeStore())

	_, err := r.Resolve(context.Background(), 0)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolveStoredPointerWins(t *testing.T) {
	store := newFakeStore()
	store.pointers[7] = 42
	// Membership set deliberately disagrees with the pointer: the stored
	// pointer is trusted without a membership re-check.
	store.memberships[7] = []models.Membership{
		membership(99, 7, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	r := NewResolver(store)

	orgID, err := r.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 42, orgID)
	assert.Zero(t, store.writes, "no auto-heal when a pointer exists")
}

func TestResolveNoMembershipsIsTerminal(t *testing.T) {
	r := NewResolver(newFakeStore())

	_, err := r.Resolve(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNoOrganization)
}

func TestResolveEarliestMembershipWinsAndHeals(t *testing.T) {
	store := newFakeStore()
	// Joined org B second, org A first. Store returns rows oldest first.
	store.memberships[7] = []models.Membership{
		membership(1, 7, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), // org A
		membership(2, 7, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), // org B
	}
	r := NewResolver(store)

	orgID, err := r.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, orgID)

	// Convergence: the pointer now holds the resolved id.
	healed, ok := store.pointers[7]
	require.True(t, ok, "auto-heal should persist the pointer")
	assert.Equal(t, 1, healed)
}

func TestResolveIdempotent(t *testing.T) {
	store := newFakeStore()
	store.memberships[7] = []models.Membership{
		membership(3, 7, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		membership(4, 7, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
	}
	r := NewResolver(store)

	first, err := r.Resolve(context.Background(), 7)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.writes, "second call short-circuits on the healed pointer")
}

func TestResolveHealWriteFailureIsSwallowed(t *testing.T) {
	store := newFakeStore()
	store.writeErr = errors.New("connection reset")
	store.memberships[7] = []models.Membership{
		membership(5, 7, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	r := NewResolver(store)

	orgID, err := r.Resolve(context.Background(), 7)
	require.NoError(t, err, "read path must not fail on a heal write failure")
	assert.Equal(t, 5, orgID)

	// Without healing, the next call walks memberships again and still
	// converges to the same organization.
	orgID, err = r.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 5, orgID)
	assert.Equal(t, 2, store.writes)
}

func TestResolveReadFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.readErr = errors.New("connection refused")
	r := NewResolver(store)

	_, err := r.Resolve(context.Background(), 7)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoOrganization)
}
