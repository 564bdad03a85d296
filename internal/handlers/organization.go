package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"crmapi/internal/database"
	"crmapi/internal/logger"
	"crmapi/internal/middleware"
	"crmapi/internal/models"
	"crmapi/internal/rbac"
)

type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

// CreateOrganization is the onboarding entry point: it creates the
// organization, an owner membership for the caller, and points the
// caller's active organization at it, in one transaction.
func CreateOrganization(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == 0 {
		SendError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req CreateOrganizationRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Name == "" {
		SendError(w, http.StatusBadRequest, "name is required")
		return
	}

	tx, err := database.DB.BeginTx(r.Context(), nil)
	if err != nil {
		SendError(w, http.StatusInternalServerError, "Error creating organization")
		return
	}
	defer tx.Rollback()

	var o models.Organization
	err = tx.QueryRowContext(r.Context(),
		"INSERT INTO organizations (name) VALUES ($1) RETURNING id, name, created_at",
		req.Name).Scan(&o.ID, &o.Name, &o.CreatedAt)
	if err != nil {
		logger.Get().Error("error creating organization", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error creating organization")
		return
	}

	_, err = tx.ExecContext(r.Context(),
		"INSERT INTO memberships (organization_id, user_id, role) VALUES ($1, $2, $3)",
		o.ID, userID, string(rbac.RoleOwner))
	if err != nil {
		logger.Get().Error("error creating owner membership", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error creating organization")
		return
	}

	_, err = tx.ExecContext(r.Context(),
		"UPDATE users SET active_org_id=$1 WHERE id=$2", o.ID, userID)
	if err != nil {
		logger.Get().Error("error setting active organization", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error creating organization")
		return
	}

	if err := tx.Commit(); err != nil {
		SendError(w, http.StatusInternalServerError, "Error creating organization")
		return
	}

	SendSuccess(w, http.StatusCreated, "Organization created successfully", o)
}

// GetOrganizations lists the organizations the caller belongs to,
// oldest membership first. Feeds the org switcher.
func GetOrganizations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == 0 {
		SendError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	rows, err := database.DB.QueryContext(r.Context(),
		`SELECT o.id, o.name, o.created_at, m.role
		 FROM organizations o
		 INNER JOIN memberships m ON m.organization_id = o.id
		 WHERE m.user_id = $1
		 ORDER BY m.created_at ASC, m.id ASC`, userID)
	if err != nil {
		logger.Get().Error("error fetching organizations", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error fetching organizations")
		return
	}
	defer rows.Close()

	type OrgWithRole struct {
		models.Organization
		Role string `json:"role"`
	}

	var orgs []OrgWithRole
	for rows.Next() {
		var o OrgWithRole
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt, &o.Role); err != nil {
			SendError(w, http.StatusInternalServerError, "Error scanning organization")
			return
		}
		orgs = append(orgs, o)
	}

	SendSuccess(w, http.StatusOK, "Organizations retrieved successfully", orgs)
}

type SwitchOrganizationRequest struct {
	OrganizationID int `json:"organization_id"`
}

// SwitchOrganization sets the caller's active organization. Unlike the
// resolver's trust of an already-stored pointer, switching verifies the
// membership first.
func SwitchOrganization(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == 0 {
		SendError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req SwitchOrganizationRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.OrganizationID == 0 {
		SendError(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	membership, err := OrgStore.MembershipByUserOrg(r.Context(), userID, req.OrganizationID)
	if err != nil {
		logger.Get().Error("error checking membership", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error switching organization")
		return
	}
	if membership == nil {
		SendError(w, http.StatusForbidden, "you are not a member of this organization")
		return
	}

	if err := OrgStore.SetActiveOrgID(r.Context(), userID, req.OrganizationID); err != nil {
		logger.Get().Error("error switching organization", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error switching organization")
		return
	}

	SendSuccessNoData(w, http.StatusOK, "Organization switched successfully")
}

type UpdateOrganizationRequest struct {
	Name string `json:"name"`
}

// UpdateOrganization renames the caller's active organization.
func UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermOrgEdit)
	if !ok {
		return
	}

	var req UpdateOrganizationRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Name == "" {
		SendError(w, http.StatusBadRequest, "name is required")
		return
	}

	_, err = database.DB.ExecContext(r.Context(),
		"UPDATE organizations SET name=$1 WHERE id=$2", req.Name, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error updating organization", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error updating organization")
		return
	}

	SendSuccessNoData(w, http.StatusOK, "Organization updated successfully")
}
