package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"crmapi/internal/database"
	"crmapi/internal/logger"
	"crmapi/internal/middleware"
	"crmapi/internal/models"
	"crmapi/internal/org"
)

type MeResponse struct {
	User               models.User          `json:"user"`
	Organization       *models.Organization `json:"organization,omitempty"`
	Role               string               `json:"role,omitempty"`
	OnboardingRequired bool                 `json:"onboarding_required,omitempty"`
}

// GetMe returns the caller's profile and resolved active organization.
// A user with no memberships gets onboarding_required instead of an
// error: that is the normal unonboarded state.
func GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == 0 {
		SendError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var user models.User
	err := database.DB.QueryRowContext(r.Context(),
		"SELECT id, name, email, active_org_id, created_at FROM users WHERE id=$1", userID).
		Scan(&user.ID, &user.Name, &user.Email, &user.ActiveOrgID, &user.CreatedAt)
	if err != nil {
		// An authenticated user without a row is a programmer error, not
		// a routing condition.
		logger.Get().Error("profile missing for authenticated user", zap.Int("user_id", userID), zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error fetching profile")
		return
	}

	orgID, err := Resolver.Resolve(r.Context(), userID)
	if errors.Is(err, org.ErrNoOrganization) {
		SendSuccess(w, http.StatusOK, "Profile retrieved successfully", MeResponse{
			User:               user,
			OnboardingRequired: true,
		})
		return
	}
	if err != nil {
		writeAuthzError(w, err)
		return
	}

	resp := MeResponse{User: user}

	var o models.Organization
	err = database.DB.QueryRowContext(r.Context(),
		"SELECT id, name, created_at FROM organizations WHERE id=$1", orgID).
		Scan(&o.ID, &o.Name, &o.CreatedAt)
	if err == nil {
		resp.Organization = &o
	}

	membership, err := OrgStore.MembershipByUserOrg(r.Context(), userID, orgID)
	if err == nil && membership != nil {
		resp.Role = membership.Role
	}

	SendSuccess(w, http.StatusOK, "Profile retrieved successfully", resp)
}

type UpdateMeRequest struct {
	Name string `json:"name"`
}

// UpdateMe updates the caller's own profile fields. Self-scoped, so no
// organization permission applies.
func UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == 0 {
		SendError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req UpdateMeRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Name == "" {
		SendError(w, http.StatusBadRequest, "name is required")
		return
	}

	_, err = database.DB.ExecContext(r.Context(),
		"UPDATE users SET name=$1 WHERE id=$2", req.Name, userID)
	if err != nil {
		logger.Get().Error("error updating profile", zap.Int("user_id", userID), zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error updating profile")
		return
	}

	SendSuccessNoData(w, http.StatusOK, "Profile updated successfully")
}
