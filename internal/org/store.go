package org

import (
	"context"
	"database/sql"
	"fmt"

	"crmapi/internal/models"
)

// Store runs the membership and active-organization queries the resolver
// and guard depend on.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ActiveOrgID returns the user's stored active-organization pointer, or
// (0, false) when the user has none set.
func (s *Store) ActiveOrgID(ctx context.Context, userID int) (int, bool, error) {
	var orgID sql.NullInt32
	err := s.db.QueryRowContext(ctx,
		"SELECT active_org_id FROM users WHERE id = $1", userID).Scan(&orgID)
	if err == sql.ErrNoRows {
		return 0, false, fmt.Errorf("user %d not found", userID)
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read active org: %w", err)
	}
	if !orgID.Valid {
		return 0, false, nil
	}
	return int(orgID.Int32), true, nil
}

// SetActiveOrgID persists the user's active-organization pointer.
func (s *Store) SetActiveOrgID(ctx context.Context, userID, orgID int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET active_org_id = $1 WHERE id = $2", orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to set active org: %w", err)
	}
	return nil
}

// MembershipsByUser returns the user's memberships ordered by creation time
// ascending, oldest first. The id tie-break keeps the order deterministic
// when two rows share a timestamp.
func (s *Store) MembershipsByUser(ctx context.Context, userID int) ([]models.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, user_id, role, created_at
		 FROM memberships
		 WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// MembershipByUserOrg returns the membership for (user, organization), or
// nil when no such row exists.
func (s *Store) MembershipByUserOrg(ctx context.Context, userID, orgID int) (*models.Membership, error) {
	var m models.Membership
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, user_id, role, created_at
		 FROM memberships
		 WHERE user_id = $1 AND organization_id = $2`, userID, orgID).
		Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}
