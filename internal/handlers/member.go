package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"crmapi/internal/database"
	"crmapi/internal/logger"
	"crmapi/internal/metrics"
	"crmapi/internal/rbac"
)

type Member struct {
	ID        int    `json:"id"`
	UserID    int    `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// GetMembers lists the active organization's members, oldest first.
func GetMembers(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireMember(w, r)
	if !ok {
		return
	}

	rows, err := database.DB.QueryContext(r.Context(),
		`SELECT m.id, m.user_id, u.name, u.email, m.role, m.created_at
		 FROM memberships m
		 INNER JOIN users u ON u.id = m.user_id
		 WHERE m.organization_id = $1
		 ORDER BY m.created_at ASC, m.id ASC`, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error fetching members", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error fetching members")
		return
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Email, &m.Role, &m.CreatedAt); err != nil {
			SendError(w, http.StatusInternalServerError, "Error scanning member")
			return
		}
		members = append(members, m)
	}

	SendSuccess(w, http.StatusOK, "Members retrieved successfully", members)
}

type AddMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AddMember attaches an existing user to the active organization by
// email. Invite delivery is out of scope; the account must already exist.
func AddMember(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermMemberManage)
	if !ok {
		return
	}

	var req AddMemberRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Email == "" {
		SendError(w, http.StatusBadRequest, "email is required")
		return
	}
	if !rbac.ValidRole(rbac.Role(req.Role)) {
		SendError(w, http.StatusBadRequest, "role must be one of owner, admin, member")
		return
	}

	var invitedID int
	err = database.DB.QueryRowContext(r.Context(),
		"SELECT id FROM users WHERE email=$1", req.Email).Scan(&invitedID)
	if err != nil {
		SendError(w, http.StatusNotFound, "No user with that email")
		return
	}

	_, err = database.DB.ExecContext(r.Context(),
		`INSERT INTO memberships (organization_id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (organization_id, user_id) DO NOTHING`,
		authCtx.OrgID, invitedID, req.Role)
	if err != nil {
		logger.Get().Error("error adding member", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error adding member")
		return
	}

	metrics.MutationCounter.WithLabelValues("member", "create").Inc()
	SendSuccessNoData(w, http.StatusCreated, "Member added successfully")
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role"`
}

// UpdateMemberRole changes a member's role. The last owner cannot be
// demoted, otherwise the organization would be unmanageable.
func UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermMemberManage)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	targetID, err := strconv.Atoi(vars["userId"])
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req UpdateMemberRoleRequest
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil || !rbac.ValidRole(rbac.Role(req.Role)) {
		SendError(w, http.StatusBadRequest, "role must be one of owner, admin, member")
		return
	}

	if req.Role != string(rbac.RoleOwner) {
		lastOwner, err := isLastOwner(r, authCtx.OrgID, targetID)
		if err != nil {
			SendError(w, http.StatusInternalServerError, "Error updating member")
			return
		}
		if lastOwner {
			SendError(w, http.StatusConflict, "Cannot demote the only owner")
			return
		}
	}

	result, err := database.DB.ExecContext(r.Context(),
		"UPDATE memberships SET role=$1 WHERE organization_id=$2 AND user_id=$3",
		req.Role, authCtx.OrgID, targetID)
	if err != nil {
		logger.Get().Error("error updating member role", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error updating member")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Member not found")
		return
	}

	metrics.MutationCounter.WithLabelValues("member", "update").Inc()
	SendSuccessNoData(w, http.StatusOK, "Member role updated successfully")
}

// RemoveMember removes a user from the active organization. The last
// owner cannot be removed. If the removed member's active organization
// pointed here, the pointer is cleared so their next request re-resolves.
func RemoveMember(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermMemberManage)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	targetID, err := strconv.Atoi(vars["userId"])
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	lastOwner, err := isLastOwner(r, authCtx.OrgID, targetID)
	if err != nil {
		SendError(w, http.StatusInternalServerError, "Error removing member")
		return
	}
	if lastOwner {
		SendError(w, http.StatusConflict, "Cannot remove the only owner")
		return
	}

	result, err := database.DB.ExecContext(r.Context(),
		"DELETE FROM memberships WHERE organization_id=$1 AND user_id=$2",
		authCtx.OrgID, targetID)
	if err != nil {
		logger.Get().Error("error removing member", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error removing member")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Member not found")
		return
	}

	// Best-effort, mirrors the resolver's auto-heal tolerance.
	_, err = database.DB.ExecContext(r.Context(),
		"UPDATE users SET active_org_id=NULL WHERE id=$1 AND active_org_id=$2",
		targetID, authCtx.OrgID)
	if err != nil {
		logger.Get().Warn("error clearing removed member's active org",
			zap.Int("user_id", targetID), zap.Error(err))
	}

	metrics.MutationCounter.WithLabelValues("member", "delete").Inc()
	SendSuccessNoData(w, http.StatusOK, "Member removed successfully")
}

// isLastOwner reports whether userID is an owner of orgID and no other
// owner exists.
func isLastOwner(r *http.Request, orgID, userID int) (bool, error) {
	var role string
	err := database.DB.QueryRowContext(r.Context(),
		"SELECT role FROM memberships WHERE organization_id=$1 AND user_id=$2",
		orgID, userID).Scan(&role)
	if err != nil {
		// Missing membership falls through to the caller's not-found path.
		return false, nil
	}
	if role != string(rbac.RoleOwner) {
		return false, nil
	}

	var owners int
	err = database.DB.QueryRowContext(r.Context(),
		"SELECT COUNT(*) FROM memberships WHERE organization_id=$1 AND role=$2",
		orgID, string(rbac.RoleOwner)).Scan(&owners)
	if err != nil {
		return false, err
	}
	return owners <= 1, nil
}
